package model

import "time"

// Resource is a bookable asset (a room, a piece of equipment). Only active
// resources accept new reservations and blocked times; deactivating a resource
// leaves its existing reservations untouched.
type Resource struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name        string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Description string    `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=500"`
	IsActive    bool      `json:"is_active" bson:"is_active"`
	LockVersion int64     `json:"-" bson:"lock_version"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

type ResourceUpdate struct {
	Name        string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Description string `json:"description,omitempty" validate:"omitempty,max=500"`
	IsActive    *bool  `json:"is_active,omitempty"`
}
