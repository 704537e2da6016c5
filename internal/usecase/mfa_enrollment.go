package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/repository"
)

// EnrollMFA enrols a second factor for the authenticated user identified by userID.
func (s *AuthService) EnrollMFA(ctx context.Context, userID string, method domain.MFAMethodType) (*Enrollment, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, invalidInput("user id is required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive() {
		return nil, ErrUserDisabled
	}

	return s.mfa.Enroll(ctx, *user, method)
}
