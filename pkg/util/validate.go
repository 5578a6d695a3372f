package util

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct runs struct tag validation and converts failures into a
// VALIDATION_FAILED error with one detail entry per offending field.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewValidationError("invalid input", nil)
	}
	details := make(map[string]any, len(fieldErrs))
	missing := false
	for _, fe := range fieldErrs {
		details[fieldName(fe)] = fe.Tag()
		if fe.Tag() == "required" {
			missing = true
		}
	}
	if missing {
		return NewValidationError("please add all required fields", details)
	}
	return NewValidationError("invalid input", details)
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		ns = ns[idx+1:]
	}
	return ns
}
