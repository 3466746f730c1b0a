package geometry

import (
	"errors"
	"fmt"
)

var (
	// ErrDomain is wrapped by every DomainError so callers can use errors.Is.
	ErrDomain = errors.New("value outside interpolation domain")

	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("invalid input")
)

// DomainError reports a conversion requested outside the sampled range of a
// Converter. Values are never clamped or extrapolated.
type DomainError struct {
	Op     string
	Value  float64
	Lo, Hi float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %g not in [%g, %g]", e.Op, e.Value, e.Lo, e.Hi)
}

func (e *DomainError) Unwrap() error { return ErrDomain }

// ValidationError reports a malformed point or vector.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
