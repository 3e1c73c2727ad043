package mongo

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// Server error codes whose occurrence during a transaction means another
// writer touched the same documents first. Anything outside this set is a
// programming or integrity bug and must propagate unchanged.
const (
	codeWriteConflict = 112
	codeLockTimeout   = 24
)

const transientTransactionLabel = "TransientTransactionError"

// IsWriteRace reports whether err is the storage engine's signature for a
// concurrency race: a duplicate key on a unique index (two inserts of the same
// slot lock), a write conflict between overlapping transactions, or a commit
// aborted with the transient-transaction label. The match is intentionally
// narrow and uses the driver's structured codes, not message text.
func IsWriteRace(err error) bool {
	if err == nil {
		return false
	}

	if mongo.IsDuplicateKeyError(err) {
		return true
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		if cmdErr.HasErrorLabel(transientTransactionLabel) {
			return true
		}
		if cmdErr.Code == codeWriteConflict || cmdErr.Code == codeLockTimeout {
			return true
		}
	}

	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		if writeErr.HasErrorLabel(transientTransactionLabel) {
			return true
		}
		for _, we := range writeErr.WriteErrors {
			if we.Code == codeWriteConflict || we.Code == codeLockTimeout {
				return true
			}
		}
	}

	return false
}
