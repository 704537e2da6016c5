package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a uniqueness constraint rejected the write.
	ErrConflict = errors.New("repository: conflict")
	// ErrImmutableField signals an attempt to change a field that can only be set once.
	ErrImmutableField = errors.New("repository: immutable field")
	// ErrInvalidResetState signals a credential update carrying only half of the reset token pair.
	ErrInvalidResetState = errors.New("repository: reset token and expiry must be set together")
)

// ConflictError reports which unique attribute collided with another record.
type ConflictError struct {
	Field string
}

// Error implements error.
func (e *ConflictError) Error() string {
	if e == nil || e.Field == "" {
		return ErrConflict.Error()
	}
	return fmt.Sprintf("%s: %s already in use", ErrConflict.Error(), e.Field)
}

// Is allows errors.Is(err, ErrConflict) to match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
