// Package core provides shared error types used across the engine:
// sentinel errors for errors.Is, typed errors carrying context, and
// Unwrap chains back to the sentinels.
package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input data.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates a state conflict.
	ErrConflict = errors.New("conflict")

	// ErrTimeout indicates an operation exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrInternal indicates an unexpected internal error.
	ErrInternal = errors.New("internal error")
)

// ValidationError provides detailed validation errors with field context.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError creates a validation error for a specific field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// RequiredError creates a validation error for a required field.
func RequiredError(field string) error {
	return &ValidationError{Field: field, Message: "is required"}
}

// NotFoundError provides detailed not-found errors with resource context.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError creates a not-found error for a specific resource.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidationError reports whether err is (or wraps) ErrInvalidInput.
func IsValidationError(err error) bool { return errors.Is(err, ErrInvalidInput) }
