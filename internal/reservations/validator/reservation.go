package validator

import (
	"errors"
	"fmt"
	"time"

	"reservio/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	return fmt.Sprintf("validation failed: %d error(s)", len(v))
}

// ReservationValidator enforces the slot rules: duration within the
// configured bounds and, for reservations, a start in the future. The clock
// is injectable so boundary cases are testable.
type ReservationValidator struct {
	validate    *validator.Validate
	minDuration time.Duration
	maxDuration time.Duration
	now         func() time.Time
}

func NewReservationValidator(minDuration, maxDuration time.Duration) *ReservationValidator {
	return &ReservationValidator{
		validate:    validator.New(),
		minDuration: minDuration,
		maxDuration: maxDuration,
		now:         time.Now,
	}
}

// WithClock replaces the time source. Test use only.
func (v *ReservationValidator) WithClock(now func() time.Time) *ReservationValidator {
	v.now = now
	return v
}

func (v *ReservationValidator) Validate(reservation *model.Reservation) error {
	if err := v.validate.Struct(reservation); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if err := v.validateInterval(reservation.StartTime, reservation.EndTime); err != nil {
		return err
	}

	if !reservation.StartTime.After(v.now()) {
		return ValidationErrors{
			ValidationError{
				Field:   "StartTime",
				Message: "start_time must be in the future",
			},
		}
	}

	return nil
}

// ValidateWindow checks an availability probe. Unlike Validate it accepts a
// start in the past, so "was this slot free an hour ago" is answerable.
func (v *ReservationValidator) ValidateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return ValidationErrors{
			ValidationError{
				Field:   "StartTime",
				Message: "start_time and end_time are required",
			},
		}
	}
	return v.validateInterval(start, end)
}

func (v *ReservationValidator) validateInterval(start, end time.Time) error {
	if !end.After(start) {
		return ValidationErrors{
			ValidationError{
				Field:   "EndTime",
				Message: "end_time must be after start_time",
			},
		}
	}

	duration := end.Sub(start)
	if duration < v.minDuration {
		return ValidationErrors{
			ValidationError{
				Field:   "EndTime",
				Message: fmt.Sprintf("reservation must last at least %s", v.minDuration),
			},
		}
	}
	if duration > v.maxDuration {
		return ValidationErrors{
			ValidationError{
				Field:   "EndTime",
				Message: fmt.Sprintf("reservation must not exceed %s", v.maxDuration),
			},
		}
	}

	return nil
}

func (v *ReservationValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
