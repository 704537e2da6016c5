package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/core/port"
	"github.com/arklim/digital-bank-auth/internal/repository"
)

// SessionRepository implements port.SessionRepository backed by PostgreSQL.
type SessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	return &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Save persists a session. Saving a token that already has a session keeps the original row.
func (r *SessionRepository) Save(ctx context.Context, session domain.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	stmt, args, err := r.builder.Insert(sessionsTable).
		Columns("id", "user_id", "token", "created_at", "expires_at").
		Values(session.ID, session.UserID, session.Token, session.CreatedAt.UTC(), session.ExpiresAt.UTC()).
		Suffix("ON CONFLICT (token) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert session: %w", mapWriteError(err))
	}
	return nil
}

// GetByToken fetches the session bound to the supplied refresh token.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "token", "created_at", "expires_at").
		From(sessionsTable).
		Where(squirrel.Eq{"token": token}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	var session domain.Session
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.CreatedAt,
		&session.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return &session, nil
}

// DeleteByToken removes the session bound to token, if any.
func (r *SessionRepository) DeleteByToken(ctx context.Context, token string) error {
	stmt, args, err := r.builder.Delete(sessionsTable).
		Where(squirrel.Eq{"token": token}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions whose expiry is not after now and returns how many were removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	stmt, args, err := r.builder.Delete(sessionsTable).
		Where(squirrel.LtOrEq{"expires_at": now.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired sessions sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return ct.RowsAffected(), nil
}
