package domain

import "time"

// UserStatus enumerates possible account states.
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusDisabled UserStatus = "DISABLED"
	UserStatusPending  UserStatus = "PENDING"
)

// User mirrors the persisted representation in the users table.
// Zero-valued fields are left untouched when the record is saved as an update.
type User struct {
	ID         string
	Username   string
	Email      string
	Phone      *string
	FullName   string
	Status     UserStatus
	Credential *Credential
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsActive reports whether the account may authenticate.
func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Credential holds the secret material co-owned with a User.
// ResetTokenHash and ResetTokenExpiry are either both nil or both set.
type Credential struct {
	PasswordHash     string
	ResetTokenHash   *string
	ResetTokenExpiry *time.Time
}

// HasResetToken reports whether a reset token is pending on the credential.
func (c *Credential) HasResetToken() bool {
	return c != nil && c.ResetTokenHash != nil && c.ResetTokenExpiry != nil
}

// ResetTokenValid reports whether the pending reset token is still redeemable at the supplied moment.
func (c *Credential) ResetTokenValid(at time.Time) bool {
	return c.HasResetToken() && c.ResetTokenExpiry.After(at)
}

// PasswordContext carries user attributes considered when evaluating password strength.
type PasswordContext struct {
	Username string
	Email    string
	Phone    *string
}
