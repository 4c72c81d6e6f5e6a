package errors

import "fmt"

// ValidationError names the first field rule a request failed.
type ValidationError struct {
	Field string
	Rule  string
}

func NewValidationError(field, rule string) *ValidationError {
	return &ValidationError{Field: field, Rule: rule}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Rule)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
