package units

import (
	"errors"
	"fmt"
)

// ErrInvalidConversion is returned when no conversion path connects two units.
var ErrInvalidConversion = errors.New("conversao invalida")

// ErrValidation is wrapped by every input validation failure.
var ErrValidation = errors.New("invalid normalization input")

// ValidationError describes which input failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
