package usecase

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates a request failed basic validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates a unique attribute is already taken by another user.
	ErrConflict = errors.New("conflict")
	// ErrUserNotFound indicates no user matches the supplied identifier.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials indicates the email or password is incorrect. Both cases share this error.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserDisabled indicates the account is not allowed to authenticate.
	ErrUserDisabled = errors.New("account is not active")
	// ErrInvalidToken indicates a malformed, unsigned, foreign or wrong-kind token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates an otherwise valid token whose lifetime has elapsed.
	ErrExpiredToken = errors.New("token expired")
	// ErrInvalidOrExpiredToken covers every failed reset-token redemption.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")
	// ErrInvalidMFACode indicates the one-time code did not match the enrolled factor.
	ErrInvalidMFACode = errors.New("invalid mfa code")
)

// ConflictError names the attribute that collided. It matches ErrConflict under errors.Is.
type ConflictError struct {
	Field string
}

// Error implements error.
func (e *ConflictError) Error() string {
	if e == nil || e.Field == "" {
		return ErrConflict.Error()
	}
	return fmt.Sprintf("%s already registered", e.Field)
}

// Is allows errors.Is(err, ErrConflict) to match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
