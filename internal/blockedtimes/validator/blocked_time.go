package validator

import (
	"fmt"
	"strings"

	"reservio/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(ve))
	for i, e := range ve {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return strings.Join(messages, "; ")
}

type BlockedTimeValidator struct {
	validate *validator.Validate
}

func NewBlockedTimeValidator() *BlockedTimeValidator {
	return &BlockedTimeValidator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Validate checks structural rules for a new blocked window. Unlike
// reservations, blocked windows carry no duration bounds and may start in
// the past: administrators record outages retroactively.
func (v *BlockedTimeValidator) Validate(blocked *model.BlockedTime) error {
	if err := v.validate.Struct(blocked); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return v.translateValidationErrors(validationErrors)
		}
		return err
	}

	if !blocked.EndTime.After(blocked.StartTime) {
		return ValidationErrors{{Field: "end_time", Message: "end_time must be after start_time"}}
	}

	return nil
}

func (v *BlockedTimeValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var result ValidationErrors
	for _, e := range errs {
		field := strings.ToLower(e.Field())
		switch e.Field() {
		case "ResourceID":
			field = "resource_id"
		case "StartTime":
			field = "start_time"
		case "EndTime":
			field = "end_time"
		}

		var message string
		switch e.Tag() {
		case "required":
			message = "this field is required"
		case "min":
			message = fmt.Sprintf("must be at least %s characters", e.Param())
		case "max":
			message = fmt.Sprintf("must be at most %s characters", e.Param())
		case "mongodb":
			message = "must be a valid object ID"
		case "gtfield":
			message = "end_time must be after start_time"
		default:
			message = fmt.Sprintf("failed validation rule: %s", e.Tag())
		}

		result = append(result, ValidationError{Field: field, Message: message})
	}
	return result
}
