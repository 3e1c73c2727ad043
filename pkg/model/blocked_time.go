package model

import "time"

// BlockedTime is an administrative exclusion window on a resource. It rejects
// new reservations regardless of reservation status rules and may not overlap
// another blocked time on the same resource.
type BlockedTime struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ResourceID string    `json:"resource_id" bson:"resource_id" validate:"required,mongodb"`
	StartTime  time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Reason     string    `json:"reason" bson:"reason" validate:"required,min=2,max=200"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}
