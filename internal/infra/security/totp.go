package security

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const otpSecretSize = 20

// OTPOptions controls code generation and validation windows.
type OTPOptions struct {
	Period time.Duration
	Skew   uint
}

func (o OTPOptions) validateOpts() totp.ValidateOpts {
	period := uint(o.Period / time.Second)
	if period == 0 {
		period = 30
	}
	return totp.ValidateOpts{
		Period:    period,
		Skew:      o.Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// GenerateTOTPKey creates a new authenticator-app key for account under issuer.
func GenerateTOTPKey(issuer, account string) (*otp.Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		SecretSize:  otpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp key: %w", err)
	}
	return key, nil
}

// GenerateOTPSecret returns a random base32 secret for server-side code generation.
func GenerateOTPSecret() (string, error) {
	buf := make([]byte, otpSecretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate otp secret: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

// GenerateOTPCode computes the code valid for secret at the given moment.
func GenerateOTPCode(secret string, at time.Time, opts OTPOptions) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, at, opts.validateOpts())
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}
	return code, nil
}

// ValidateOTPCode reports whether code matches secret within the configured skew.
func ValidateOTPCode(code, secret string, at time.Time, opts OTPOptions) (bool, error) {
	ok, err := totp.ValidateCustom(code, secret, at, opts.validateOpts())
	if err != nil {
		return false, fmt.Errorf("validate otp code: %w", err)
	}
	return ok, nil
}
