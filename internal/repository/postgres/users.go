package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/core/port"
	"github.com/arklim/digital-bank-auth/internal/repository"
)

var userColumns = []string{
	"u.id",
	"u.username",
	"u.email",
	"u.phone",
	"u.full_name",
	"u.status",
	"u.created_at",
	"u.updated_at",
	"c.password_hash",
	"c.reset_token_hash",
	"c.reset_token_expiry",
}

// UserRepository implements port.UserRepository using PostgreSQL.
// Users and credentials live in separate tables and are always written together.
type UserRepository struct {
	db      pgTxStarter
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

var _ port.UserRepository = (*UserRepository)(nil)

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(db pgTxStarter) *UserRepository {
	return &UserRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
	}
}

// WithClock overrides the timestamp source used for created_at and updated_at.
func (r *UserRepository) WithClock(now func() time.Time) *UserRepository {
	if now != nil {
		r.now = now
	}
	return r
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, r.db, squirrel.Eq{"u.id": id}, false)
}

// GetByEmail retrieves a user by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, r.db, squirrel.Eq{"u.email": email}, false)
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, r.db, squirrel.Eq{"u.username": username}, false)
}

func (r *UserRepository) getOne(ctx context.Context, exec pgExecutor, where squirrel.Eq, lock bool) (*domain.User, error) {
	query := r.builder.
		Select(userColumns...).
		From(usersTable + " AS u").
		Join(credentialsTable + " AS c ON c.user_id = u.id").
		Where(where).
		Limit(1)
	if lock {
		query = query.Suffix("FOR UPDATE")
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	user, err := scanUser(exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

// Save creates the user when ID is empty; otherwise it loads the stored record and applies
// only the fields the caller supplied.
func (r *UserRepository) Save(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, fmt.Errorf("save user: user is nil")
	}
	if strings.TrimSpace(user.ID) == "" {
		return r.create(ctx, user)
	}
	return r.update(ctx, user)
}

func (r *UserRepository) create(ctx context.Context, user *domain.User) (*domain.User, error) {
	now := r.now().UTC()

	created := *user
	created.ID = uuid.NewString()
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.Status == "" {
		created.Status = domain.UserStatusActive
	}

	var cred domain.Credential
	if user.Credential != nil {
		cred = *user.Credential
	}
	if (cred.ResetTokenHash == nil) != (cred.ResetTokenExpiry == nil) {
		return nil, repository.ErrInvalidResetState
	}
	created.Credential = &cred

	userStmt, userArgs, err := r.builder.Insert(usersTable).
		Columns("id", "username", "email", "phone", "full_name", "status", "created_at", "updated_at").
		Values(created.ID, created.Username, created.Email, optionalString(created.Phone), created.FullName, string(created.Status), now, now).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert user sql: %w", err)
	}

	credStmt, credArgs, err := r.builder.Insert(credentialsTable).
		Columns("user_id", "password_hash", "reset_token_hash", "reset_token_expiry", "updated_at").
		Values(created.ID, cred.PasswordHash, cred.ResetTokenHash, cred.ResetTokenExpiry, now).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert credential sql: %w", err)
	}

	err = withTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, userStmt, userArgs...); err != nil {
			return fmt.Errorf("insert user: %w", mapWriteError(err))
		}
		if _, err := tx.Exec(ctx, credStmt, credArgs...); err != nil {
			return fmt.Errorf("insert credential: %w", mapWriteError(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *UserRepository) update(ctx context.Context, user *domain.User) (*domain.User, error) {
	var merged *domain.User

	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		existing, err := r.getOne(ctx, tx, squirrel.Eq{"u.id": user.ID}, true)
		if err != nil {
			return err
		}

		now := r.now().UTC()
		userSet := map[string]any{}

		if user.Username != "" && user.Username != existing.Username {
			if existing.Username != "" {
				return fmt.Errorf("update username: %w", repository.ErrImmutableField)
			}
			userSet["username"] = user.Username
			existing.Username = user.Username
		}
		if user.Email != "" && user.Email != existing.Email {
			userSet["email"] = user.Email
			existing.Email = user.Email
		}
		if user.Phone != nil {
			userSet["phone"] = optionalString(user.Phone)
			if *user.Phone == "" {
				existing.Phone = nil
			} else {
				phone := *user.Phone
				existing.Phone = &phone
			}
		}
		if user.FullName != "" && user.FullName != existing.FullName {
			userSet["full_name"] = user.FullName
			existing.FullName = user.FullName
		}
		if user.Status != "" && user.Status != existing.Status {
			userSet["status"] = string(user.Status)
			existing.Status = user.Status
		}
		userSet["updated_at"] = now
		existing.UpdatedAt = now

		stmt, args, err := r.builder.Update(usersTable).
			SetMap(userSet).
			Where(squirrel.Eq{"id": existing.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build update user sql: %w", err)
		}
		if _, err := tx.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("update user: %w", mapWriteError(err))
		}

		if cred := user.Credential; cred != nil {
			credSet := map[string]any{}
			if cred.PasswordHash != "" {
				credSet["password_hash"] = cred.PasswordHash
				existing.Credential.PasswordHash = cred.PasswordHash
			}
			if cred.ResetTokenHash != nil || cred.ResetTokenExpiry != nil {
				if cred.ResetTokenHash == nil || cred.ResetTokenExpiry == nil {
					return repository.ErrInvalidResetState
				}
				hash, expiry := *cred.ResetTokenHash, cred.ResetTokenExpiry.UTC()
				credSet["reset_token_hash"] = hash
				credSet["reset_token_expiry"] = expiry
				existing.Credential.ResetTokenHash = &hash
				existing.Credential.ResetTokenExpiry = &expiry
			}

			if len(credSet) > 0 {
				credSet["updated_at"] = now
				stmt, args, err := r.builder.Update(credentialsTable).
					SetMap(credSet).
					Where(squirrel.Eq{"user_id": existing.ID}).
					ToSql()
				if err != nil {
					return fmt.Errorf("build update credential sql: %w", err)
				}
				if _, err := tx.Exec(ctx, stmt, args...); err != nil {
					return fmt.Errorf("update credential: %w", err)
				}
			}
		}

		merged = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	return merged, nil
}

// ConsumeResetToken swaps in the new password hash only while the stored reset token matches and has not expired.
// A zero-row update reports repository.ErrNotFound, so concurrent redemptions of the same token have one winner.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, userID, tokenHash, passwordHash string, now time.Time) error {
	now = now.UTC()
	stmt, args, err := r.builder.Update(credentialsTable).
		Set("password_hash", passwordHash).
		Set("reset_token_hash", nil).
		Set("reset_token_expiry", nil).
		Set("updated_at", now).
		Where(squirrel.Eq{"user_id": userID, "reset_token_hash": tokenHash}).
		Where(squirrel.Gt{"reset_token_expiry": now}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build consume reset token sql: %w", err)
	}

	ct, err := r.db.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteExpiredResetTokens clears reset tokens whose expiry is not after now.
func (r *UserRepository) DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	stmt, args, err := r.builder.Update(credentialsTable).
		Set("reset_token_hash", nil).
		Set("reset_token_expiry", nil).
		Where(squirrel.NotEq{"reset_token_hash": nil}).
		Where(squirrel.LtOrEq{"reset_token_expiry": now.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build clear reset tokens sql: %w", err)
	}

	ct, err := r.db.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("clear expired reset tokens: %w", err)
	}
	return ct.RowsAffected(), nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user        domain.User
		cred        domain.Credential
		phone       *string
		status      string
		resetHash   *string
		resetExpiry *time.Time
	)

	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&phone,
		&user.FullName,
		&status,
		&user.CreatedAt,
		&user.UpdatedAt,
		&cred.PasswordHash,
		&resetHash,
		&resetExpiry,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	user.Phone = phone
	user.Status = domain.UserStatus(status)
	if resetHash != nil && resetExpiry != nil {
		cred.ResetTokenHash = resetHash
		cred.ResetTokenExpiry = resetExpiry
	}
	user.Credential = &cred

	return &user, nil
}
