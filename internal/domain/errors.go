package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across the pipeline.
var (
	// ErrNoVariants is returned when every variant in the request failed
	// validation.
	ErrNoVariants = errors.New("no scoreable variants in request")

	// ErrUpstreamUnavailable marks a degraded external signal. It is recorded
	// in provenance, never surfaced as a request failure.
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")

	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
