package domain

import "time"

// MFAMethodType enumerates supported second factors.
type MFAMethodType string

const (
	MFAMethodTOTP  MFAMethodType = "TOTP"
	MFAMethodSMS   MFAMethodType = "SMS"
	MFAMethodEmail MFAMethodType = "EMAIL"
)

// Valid reports whether the method is one of the supported factors.
func (m MFAMethodType) Valid() bool {
	switch m {
	case MFAMethodTOTP, MFAMethodSMS, MFAMethodEmail:
		return true
	}
	return false
}

// OutOfBand reports whether codes for this method are delivered to the user rather than generated on a device.
func (m MFAMethodType) OutOfBand() bool {
	return m == MFAMethodSMS || m == MFAMethodEmail
}

// MFAMethod is a second factor enrolled by a user.
type MFAMethod struct {
	ID        string
	UserID    string
	Method    MFAMethodType
	Secret    string
	Enabled   bool
	CreatedAt time.Time
}
