package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/infra/logger"
	"github.com/arklim/digital-bank-auth/internal/repository"
)

// RegisterInput carries the attributes supplied at sign-up.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
	Phone    *string
}

func (in RegisterInput) normalize() RegisterInput {
	out := RegisterInput{
		Username: strings.TrimSpace(in.Username),
		Email:    normalizeEmail(in.Email),
		Password: in.Password,
		FullName: strings.TrimSpace(in.FullName),
	}
	if in.Phone != nil {
		if phone := strings.TrimSpace(*in.Phone); phone != "" {
			out.Phone = &phone
		}
	}
	return out
}

func (in RegisterInput) validate() error {
	switch {
	case in.Username == "":
		return invalidInput("username is required")
	case in.Email == "":
		return invalidInput("email is required")
	case in.Password == "":
		return invalidInput("password is required")
	case in.FullName == "":
		return invalidInput("full name is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return invalidInput("email is malformed")
	}
	return nil
}

// Register creates an active user with its credential and signs them in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.TokenPair, error) {
	input = input.normalize()
	if err := input.validate(); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, &ConflictError{Field: "email"}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if s.policy != nil {
		if err := s.policy.Validate(input.Password, domain.PasswordContext{
			Username: input.Username,
			Email:    input.Email,
			Phone:    input.Phone,
		}); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Save(ctx, &domain.User{
		Username:   input.Username,
		Email:      input.Email,
		Phone:      input.Phone,
		FullName:   input.FullName,
		Status:     domain.UserStatusActive,
		Credential: &domain.Credential{PasswordHash: hash},
	})
	if err != nil {
		var conflict *repository.ConflictError
		if errors.As(err, &conflict) {
			return nil, &ConflictError{Field: conflict.Field}
		}
		if errors.Is(err, repository.ErrConflict) {
			return nil, &ConflictError{}
		}
		return nil, fmt.Errorf("save user: %w", err)
	}

	pair, err := s.issueSession(ctx, *user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	if s.events != nil {
		event := domain.UserRegisteredEvent{
			EventID:      uuid.NewString(),
			UserID:       user.ID,
			Username:     user.Username,
			Email:        user.Email,
			Phone:        user.Phone,
			Status:       string(user.Status),
			RegisteredAt: user.CreatedAt,
		}
		if err := s.events.PublishUserRegistered(ctx, event); err != nil {
			s.logger.Warn("publish user registered event failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	return pair, nil
}
