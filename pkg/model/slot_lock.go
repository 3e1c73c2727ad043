package model

import "time"

// SlotLock is an advisory lock guarding a (resource, slot) pair while an
// overlap check and insert run. The _id is derived from the slot coordinates,
// so a concurrent attempt on the same slot fails with a duplicate key error.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
