package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/digital-bank-auth/internal/core/port"
)

// SweepResult reports how many rows a sweep removed.
type SweepResult struct {
	Sessions    int64
	ResetTokens int64
}

// Reaper removes expired sessions and reset tokens. Expiry is also enforced lazily at use time,
// so a missed sweep only delays cleanup.
type Reaper struct {
	users    port.UserRepository
	sessions port.SessionRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewReaper constructs a Reaper.
func NewReaper(users port.UserRepository, sessions port.SessionRepository, log *zap.Logger) *Reaper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reaper{users: users, sessions: sessions, logger: log, now: time.Now}
}

// WithClock overrides the reference time used for the sweep.
func (r *Reaper) WithClock(now func() time.Time) *Reaper {
	if now != nil {
		r.now = now
	}
	return r
}

// Sweep deletes sessions and clears reset tokens that expired at or before now.
func (r *Reaper) Sweep(ctx context.Context) (SweepResult, error) {
	now := r.now().UTC()
	var result SweepResult

	sessions, err := r.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return result, fmt.Errorf("delete expired sessions: %w", err)
	}
	result.Sessions = sessions

	tokens, err := r.users.DeleteExpiredResetTokens(ctx, now)
	if err != nil {
		return result, fmt.Errorf("clear expired reset tokens: %w", err)
	}
	result.ResetTokens = tokens

	if result.Sessions > 0 || result.ResetTokens > 0 {
		r.logger.Info("expired auth state swept",
			zap.Int64("sessions", result.Sessions),
			zap.Int64("reset_tokens", result.ResetTokens),
		)
	}
	return result, nil
}
