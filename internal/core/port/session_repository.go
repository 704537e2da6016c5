package port

import (
	"context"
	"time"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
)

// SessionRepository persists refresh-token sessions.
type SessionRepository interface {
	Save(ctx context.Context, session domain.Session) error
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	// DeleteByToken is idempotent; removing an unknown token is not an error.
	DeleteByToken(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
