package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arklim/digital-bank-auth/internal/repository"
)

const (
	usersTable       = "auth.users"
	credentialsTable = "auth.credentials"
	sessionsTable    = "auth.sessions"
	mfaMethodsTable  = "auth.mfa_methods"

	uniqueViolationCode = "23505"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgTxStarter is satisfied by *pgxpool.Pool, pgx.Tx (as a savepoint) and pgxmock pools.
type pgTxStarter interface {
	pgExecutor
	Begin(ctx context.Context) (pgx.Tx, error)
}

// withTx runs fn inside a transaction, committing on success and rolling back on error or panic.
func withTx(ctx context.Context, db pgTxStarter, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("commit transaction: %w", commitErr)
		}
	}()

	return fn(tx)
}

// uniqueConstraintFields maps unique constraint names onto the user-facing attribute they guard.
var uniqueConstraintFields = map[string]string{
	"users_email_key":    "email",
	"users_username_key": "username",
	"users_phone_key":    "phone",
	"sessions_token_key": "token",
}

// mapWriteError converts unique violations into repository.ConflictError values.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		field, ok := uniqueConstraintFields[pgErr.ConstraintName]
		if !ok {
			field = pgErr.ConstraintName
		}
		return &repository.ConflictError{Field: field}
	}
	return err
}

func optionalString(value *string) any {
	if value == nil || *value == "" {
		return nil
	}
	return *value
}
