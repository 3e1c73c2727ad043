package model

import "time"

const (
	ReservationStatusActive    = "active"
	ReservationStatusCancelled = "cancelled"
	ReservationStatusCompleted = "completed"
)

// Reservation is a user's claim on a resource over the half-open interval
// [StartTime, EndTime). Only reservations with status "active" participate in
// overlap checks; cancelled and completed are terminal states.
type Reservation struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ResourceID string    `json:"resource_id" bson:"resource_id" validate:"required,mongodb"`
	UserID     string    `json:"user_id" bson:"user_id" validate:"required,mongodb"`
	StartTime  time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Status     string    `json:"status" bson:"status" validate:"required,oneof=active cancelled completed"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// IsTerminal reports whether the reservation can no longer change state.
func (r *Reservation) IsTerminal() bool {
	return r.Status == ReservationStatusCancelled || r.Status == ReservationStatusCompleted
}

// AvailabilityResult is the advisory answer to an availability probe. A true
// IsAvailable is not a guarantee: a concurrent create may still win the slot.
type AvailabilityResult struct {
	IsAvailable bool   `json:"is_available"`
	Message     string `json:"message"`
}
