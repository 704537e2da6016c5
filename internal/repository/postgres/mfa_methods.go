package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/core/port"
	"github.com/arklim/digital-bank-auth/internal/repository"
)

// MFAMethodRepository implements port.MFARepository backed by PostgreSQL.
type MFAMethodRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.MFARepository = (*MFAMethodRepository)(nil)

// NewMFAMethodRepository constructs an MFA method repository.
func NewMFAMethodRepository(exec pgExecutor) *MFAMethodRepository {
	return &MFAMethodRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Save inserts or replaces an MFA method keyed by its identifier.
func (r *MFAMethodRepository) Save(ctx context.Context, method domain.MFAMethod) error {
	if method.ID == "" {
		method.ID = uuid.NewString()
	}

	stmt, args, err := r.builder.Insert(mfaMethodsTable).
		Columns("id", "user_id", "method", "secret", "enabled", "created_at").
		Values(method.ID, method.UserID, string(method.Method), method.Secret, method.Enabled, method.CreatedAt.UTC()).
		Suffix("ON CONFLICT (id) DO UPDATE SET secret = EXCLUDED.secret, enabled = EXCLUDED.enabled").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert mfa method sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert mfa method: %w", err)
	}
	return nil
}

// FindEnabledByUserID returns the newest enabled method for the user.
func (r *MFAMethodRepository) FindEnabledByUserID(ctx context.Context, userID string) (*domain.MFAMethod, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "method", "secret", "enabled", "created_at").
		From(mfaMethodsTable).
		Where(squirrel.Eq{"user_id": userID, "enabled": true}).
		OrderBy("created_at DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select mfa method sql: %w", err)
	}

	var (
		method     domain.MFAMethod
		methodType string
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&method.ID,
		&method.UserID,
		&methodType,
		&method.Secret,
		&method.Enabled,
		&method.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan mfa method: %w", err)
	}
	method.Method = domain.MFAMethodType(methodType)

	return &method, nil
}
