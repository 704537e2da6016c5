package security

import (
	"fmt"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/core/port"
)

const (
	defaultMinPasswordLength   = 8
	defaultMinCharacterClasses = 3
)

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

// Error implements error for PasswordValidationError.
func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordPolicyConfig holds the thresholds enforced by PasswordPolicy. A zero MinStrengthScore disables the zxcvbn check.
type PasswordPolicyConfig struct {
	MinLength           int
	MinCharacterClasses int
	MinStrengthScore    int
}

// PasswordPolicy validates new passwords against length, character class and zxcvbn strength rules.
type PasswordPolicy struct {
	cfg PasswordPolicyConfig
}

var _ port.PasswordPolicyValidator = (*PasswordPolicy)(nil)

// NewPasswordPolicy builds a policy, falling back to defaults for non-positive length and class thresholds.
func NewPasswordPolicy(cfg PasswordPolicyConfig) *PasswordPolicy {
	if cfg.MinLength <= 0 {
		cfg.MinLength = defaultMinPasswordLength
	}
	if cfg.MinCharacterClasses <= 0 {
		cfg.MinCharacterClasses = defaultMinCharacterClasses
	}
	if cfg.MinStrengthScore > 4 {
		cfg.MinStrengthScore = 4
	}
	return &PasswordPolicy{cfg: cfg}
}

// Validate returns the first violated rule as a *PasswordValidationError.
func (p *PasswordPolicy) Validate(password string, ctx domain.PasswordContext) error {
	if p == nil {
		return fmt.Errorf("password policy not configured")
	}

	if len([]rune(password)) < p.cfg.MinLength {
		return &PasswordValidationError{
			Code:    "min_length",
			Message: fmt.Sprintf("password must be at least %d characters long", p.cfg.MinLength),
		}
	}

	if characterClasses(password) < p.cfg.MinCharacterClasses {
		return &PasswordValidationError{
			Code:    "character_classes",
			Message: fmt.Sprintf("password must include at least %d character types", p.cfg.MinCharacterClasses),
		}
	}

	if p.cfg.MinStrengthScore > 0 {
		inputs := make([]string, 0, 3)
		if ctx.Username != "" {
			inputs = append(inputs, ctx.Username)
		}
		if ctx.Email != "" {
			inputs = append(inputs, ctx.Email)
		}
		if ctx.Phone != nil && *ctx.Phone != "" {
			inputs = append(inputs, *ctx.Phone)
		}

		if zxcvbn.PasswordStrength(password, inputs).Score < p.cfg.MinStrengthScore {
			return &PasswordValidationError{
				Code:    "weak_password",
				Message: "password is too weak; choose a more complex value",
			}
		}
	}

	return nil
}

// characterClasses counts the distinct classes (upper, lower, digit, symbol) present in password.
func characterClasses(password string) int {
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsSymbol(r) || unicode.IsPunct(r):
			symbol = true
		}
	}

	count := 0
	for _, present := range []bool{upper, lower, digit, symbol} {
		if present {
			count++
		}
	}
	return count
}
