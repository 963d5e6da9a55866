// Package storage is the persistence layer: a session-scoped repository over
// a pgx connection pool, exposing per-entity lookups, inserts, upserts, and
// the outbox claim primitive. Every exported method participates in the
// caller's transaction; callers commit or roll back.
package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a lookup finds no matching row.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when a unique-constraint conflict could
	// not be resolved into an idempotent read.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrInvalidInput is the sentinel for a structurally invalid argument.
	// No Session method returns it: UpdateProcessing with no fields set
	// succeeds and only refreshes updated_at.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError wraps field-specific validation errors raised by the
// storage layer itself (as opposed to HTTP-level request validation).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
