package port

import (
	"context"
	"time"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
)

// MFARepository persists enrolled second factors.
type MFARepository interface {
	Save(ctx context.Context, method domain.MFAMethod) error
	// FindEnabledByUserID returns the most recently created enabled method for the user.
	FindEnabledByUserID(ctx context.Context, userID string) (*domain.MFAMethod, error)
}

// ChallengeStore records MFA challenge identifiers that have already been redeemed.
type ChallengeStore interface {
	// Claim marks the challenge as used and reports false when it was claimed before.
	Claim(ctx context.Context, jti string, ttl time.Duration) (bool, error)
}
