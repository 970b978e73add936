package service

import (
	"errors"
	"fmt"

	"diary-assistant/internal/storage"
)

var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a requested note or task does not exist in the tenant.
	ErrNotFound = errors.New("not found")
	// ErrExternalService is returned when an embedding or generation provider call fails.
	ErrExternalService = errors.New("external service error")
)

// ValidationError represents a validation error with a field name.
// It matches ErrInvalidInput under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Is makes every ValidationError match ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// storeError converts storage sentinels into service sentinels.
func storeError(err error, msg string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	}
	return WrapError(err, msg)
}
