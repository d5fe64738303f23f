package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput matches every ValidationError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound matches every NotFoundError.
	ErrNotFound = errors.New("not found")
)

// ValidationError rejects one request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is reports every ValidationError as ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NotFoundError names a source or chunk missing from a collection.
type NotFoundError struct {
	Collection string
	Kind       string // "source" or "chunk"
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found in collection %s", e.Kind, e.ID, e.Collection)
}

// Is reports every NotFoundError as ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
