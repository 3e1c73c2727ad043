package model

import "time"

type User struct {
	ID           string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Email        string    `json:"email" bson:"email" validate:"required,email"`
	Name         string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	IsAdmin      bool      `json:"is_admin" bson:"is_admin"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// RefreshToken is one link in a rotation chain. Refreshing revokes the
// presented token and issues a new one; a revoked token can never be reused.
type RefreshToken struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	TokenHash string     `bson:"token_hash" json:"-"`
	UserID    string     `bson:"user_id" json:"user_id"`
	ExpiresAt time.Time  `bson:"expires_at" json:"expires_at"`
	RevokedAt *time.Time `bson:"revoked_at,omitempty" json:"revoked_at,omitempty"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
}

func (t *RefreshToken) IsUsable(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
