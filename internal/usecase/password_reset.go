package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/infra/logger"
	"github.com/arklim/digital-bank-auth/internal/infra/security"
	"github.com/arklim/digital-bank-auth/internal/repository"
)

const (
	resetTokenBytes = 32

	resetStageRequested = "requested"
	resetStageCompleted = "completed"
	resetStageRejected  = "rejected"
)

// InitiatePasswordReset stores a fresh single-use reset token on the user's credential and returns it.
// Only the token digest is persisted; the plaintext travels on the PasswordResetRequested event.
func (s *AuthService) InitiatePasswordReset(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", invalidInput("email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	token, err := security.NewResetToken(resetTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	digest := token.Digest

	now := s.now().UTC()
	expiry := now.Add(s.resetTTL)

	if _, err := s.users.Save(ctx, &domain.User{
		ID: user.ID,
		Credential: &domain.Credential{
			ResetTokenHash:   &digest,
			ResetTokenExpiry: &expiry,
		},
	}); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	s.metrics.ObservePasswordReset(resetStageRequested)
	s.logger.Info("password reset requested",
		zap.String("user_id", user.ID),
		zap.Time("expires_at", expiry),
	)

	if s.events != nil {
		event := domain.PasswordResetRequestedEvent{
			EventID:           uuid.NewString(),
			UserID:            user.ID,
			Email:             user.Email,
			MaskedDestination: logger.MaskEmail(user.Email),
			ResetToken:        token.Plain,
			RequestedAt:       now,
			ExpiresAt:         expiry,
		}
		if err := s.events.PublishPasswordResetRequested(ctx, event); err != nil {
			s.logger.Warn("publish password reset event failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	return token.Plain, nil
}

// UpdatePassword redeems a reset token and replaces the password in one conditional write.
// Every redemption failure surfaces as ErrInvalidOrExpiredToken.
func (s *AuthService) UpdatePassword(ctx context.Context, email, resetToken, newPassword string) error {
	email = normalizeEmail(email)
	resetToken = strings.TrimSpace(resetToken)
	if email == "" || resetToken == "" || newPassword == "" {
		return invalidInput("email, reset token and new password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.ObservePasswordReset(resetStageRejected)
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	now := s.now().UTC()
	if !user.Credential.ResetTokenValid(now) || !security.ResetTokenMatches(resetToken, *user.Credential.ResetTokenHash) {
		s.metrics.ObservePasswordReset(resetStageRejected)
		return ErrInvalidOrExpiredToken
	}

	if s.policy != nil {
		if err := s.policy.Validate(newPassword, domain.PasswordContext{
			Username: user.Username,
			Email:    user.Email,
			Phone:    user.Phone,
		}); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.ConsumeResetToken(ctx, user.ID, security.DigestResetToken(resetToken), hash, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.ObservePasswordReset(resetStageRejected)
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	s.metrics.ObservePasswordReset(resetStageCompleted)
	s.logger.Info("password updated", zap.String("user_id", user.ID))

	if s.events != nil {
		event := domain.PasswordChangedEvent{
			EventID:   uuid.NewString(),
			UserID:    user.ID,
			ChangedAt: now,
			ChangedBy: "password_reset",
		}
		if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
			s.logger.Warn("publish password changed event failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	return nil
}

func maskDestination(method domain.MFAMethodType, destination string) string {
	if method == domain.MFAMethodSMS {
		return logger.MaskPhone(destination)
	}
	return logger.MaskEmail(destination)
}
