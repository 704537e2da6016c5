package port

import (
	"context"
	"time"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
)

// UserRepository exposes persistence behavior for users and their credentials.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// Save creates the user when ID is empty and otherwise applies a partial update of the supplied fields.
	Save(ctx context.Context, user *domain.User) (*domain.User, error)
	// ConsumeResetToken replaces the password hash and clears the reset token in one conditional write.
	ConsumeResetToken(ctx context.Context, userID, tokenHash, passwordHash string, now time.Time) error
	DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}
