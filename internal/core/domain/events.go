package domain

import "time"

// UserRegisteredEvent represents the payload for auth.user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Username     string
	Email        string
	Phone        *string
	Status       string
	RegisteredAt time.Time
}

// PasswordResetRequestedEvent represents the payload for auth.user.password.reset_requested messages.
// ResetToken is the plaintext token destined for the delivery channel; it is never persisted.
type PasswordResetRequestedEvent struct {
	EventID           string
	UserID            string
	Email             string
	MaskedDestination string
	ResetToken        string
	RequestedAt       time.Time
	ExpiresAt         time.Time
}

// PasswordChangedEvent represents the payload for auth.user.password.changed messages.
type PasswordChangedEvent struct {
	EventID   string
	UserID    string
	ChangedAt time.Time
	ChangedBy string
}

// MFAEnrolledEvent represents the payload for auth.user.mfa.enrolled messages.
type MFAEnrolledEvent struct {
	EventID    string
	UserID     string
	MethodID   string
	Method     string
	EnrolledAt time.Time
}

// MFACodeIssuedEvent carries an out-of-band one-time code to the SMS or email delivery channel.
type MFACodeIssuedEvent struct {
	EventID     string
	UserID      string
	Method      string
	Destination string
	Code        string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}
