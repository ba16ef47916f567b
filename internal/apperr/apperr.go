// Package apperr defines the recoverable error kinds shared by the stores,
// sessions and HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation reports a missing or malformed input field.
	ErrValidation = errors.New("validation failed")
	// ErrConflict reports an operation attempted while the target is busy
	// or in a state that does not allow it.
	ErrConflict = errors.New("conflict")
	// ErrNotFound reports a lookup by an absent identifier.
	ErrNotFound = errors.New("not found")
)

// Error carries the kind plus the field/message context for the caller.
type Error struct {
	Kind    error
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Is lets errors.Is match the kind sentinel.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Validation returns an ErrValidation error for field.
func Validation(field, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Conflict returns an ErrConflict error.
func Conflict(format string, args ...any) error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns an ErrNotFound error for the named resource.
func NotFound(resource, id string) error {
	return &Error{Kind: ErrNotFound, Field: resource, Message: fmt.Sprintf("%q not found", id)}
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
