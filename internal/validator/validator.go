package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	ierr "github.com/platformhq/licensing/internal/errors"
)

var validate *validator.Validate

// NewValidator initializes the shared validator instance. It is called
// once at startup, before any request DTO is validated.
func NewValidator() *validator.Validate {
	validate = validator.New()
	return validate
}

// GetValidator returns the shared validator instance
func GetValidator() *validator.Validate {
	return validate
}

// ValidateRequest runs struct tag validation on a request DTO and maps
// failures to a validation error with per-field detail.
func ValidateRequest(req interface{}) error {
	if validate == nil {
		return ierr.NewError("validator not initialized").
			WithHint("Validator must be initialized before use").
			Mark(ierr.ErrSystem)
	}

	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	details := make(map[string]any)
	var fieldErrs validator.ValidationErrors
	if ierr.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			details[fe.Field()] = fmt.Sprintf("failed on the %q rule", fe.Tag())
		}
	}
	return ierr.WithError(err).
		WithHint("Request validation failed").
		WithReportableDetails(details).
		Mark(ierr.ErrValidation)
}
