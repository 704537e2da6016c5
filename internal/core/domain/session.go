package domain

import "time"

// Session represents a login episode bound to the refresh token handed to the client.
type Session struct {
	ID        string
	UserID    string
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the session has elapsed its validity window.
func (s Session) IsExpired(at time.Time) bool {
	return !s.ExpiresAt.After(at)
}
