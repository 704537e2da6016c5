package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/core/port"
	"github.com/arklim/digital-bank-auth/internal/infra/logger"
	"github.com/arklim/digital-bank-auth/internal/repository"
)

const (
	bearerPrefix = "bearer "

	defaultResetTokenTTL = 15 * time.Minute

	loginResultSuccess     = "success"
	loginResultMFARequired = "mfa_required"
	loginResultFailure     = "failure"
)

// AuthMetrics records authentication outcomes.
type AuthMetrics interface {
	ObserveLogin(result string)
	ObservePasswordReset(stage string)
}

type nopAuthMetrics struct{}

func (nopAuthMetrics) ObserveLogin(string)         {}
func (nopAuthMetrics) ObservePasswordReset(string) {}

// AuthService orchestrates registration, login, MFA step-up, token refresh, logout and password reset.
type AuthService struct {
	users    port.UserRepository
	sessions port.SessionRepository
	hasher   port.PasswordHasher
	policy   port.PasswordPolicyValidator
	tokens   *TokenIssuer
	mfa      *MFACoordinator
	events   port.EventPublisher
	metrics  AuthMetrics
	logger   *zap.Logger
	now      func() time.Time
	resetTTL time.Duration
}

// AuthOption customises an AuthService.
type AuthOption func(*AuthService)

// WithClock overrides the clock used for sessions and reset tokens.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) AuthOption {
	return func(s *AuthService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEventPublisher sets the domain event publisher.
func WithEventPublisher(events port.EventPublisher) AuthOption {
	return func(s *AuthService) {
		s.events = events
	}
}

// WithPasswordPolicy sets the policy applied to new passwords.
func WithPasswordPolicy(policy port.PasswordPolicyValidator) AuthOption {
	return func(s *AuthService) {
		s.policy = policy
	}
}

// WithResetTokenTTL overrides how long a password reset token stays redeemable.
func WithResetTokenTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// WithMetrics sets the outcome recorder.
func WithMetrics(m AuthMetrics) AuthOption {
	return func(s *AuthService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewAuthService constructs an AuthService.
func NewAuthService(
	users port.UserRepository,
	sessions port.SessionRepository,
	hasher port.PasswordHasher,
	tokens *TokenIssuer,
	mfa *MFACoordinator,
	opts ...AuthOption,
) (*AuthService, error) {
	switch {
	case users == nil:
		return nil, fmt.Errorf("auth service: user repository is required")
	case sessions == nil:
		return nil, fmt.Errorf("auth service: session repository is required")
	case hasher == nil:
		return nil, fmt.Errorf("auth service: password hasher is required")
	case tokens == nil:
		return nil, fmt.Errorf("auth service: token issuer is required")
	case mfa == nil:
		return nil, fmt.Errorf("auth service: mfa coordinator is required")
	}

	s := &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		mfa:      mfa,
		metrics:  nopAuthMetrics{},
		logger:   zap.NewNop(),
		now:      time.Now,
		resetTTL: defaultResetTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Tokens exposes the issuer so transports can validate access tokens.
func (s *AuthService) Tokens() *TokenIssuer {
	return s.tokens
}

// Login verifies the password and either issues a token pair or, when MFA is enabled, an MFA challenge.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalidInput("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.ObserveLogin(loginResultFailure)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if user.Credential == nil || user.Credential.PasswordHash == "" {
		s.metrics.ObserveLogin(loginResultFailure)
		return nil, ErrInvalidCredentials
	}
	ok, err := s.hasher.Verify(password, user.Credential.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.metrics.ObserveLogin(loginResultFailure)
		s.logger.Info("login rejected", zap.String("email", logger.MaskEmail(email)))
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive() {
		s.metrics.ObserveLogin(loginResultFailure)
		return nil, ErrUserDisabled
	}

	enabled, err := s.mfa.IsMFAEnabled(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if enabled {
		challenge, err := s.mfa.GenerateChallenge(ctx, *user)
		if err != nil {
			return nil, err
		}
		s.metrics.ObserveLogin(loginResultMFARequired)
		return &domain.AuthResult{MFARequired: true, MFAToken: challenge}, nil
	}

	pair, err := s.issueSession(ctx, *user)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveLogin(loginResultSuccess)
	return &domain.AuthResult{Tokens: pair}, nil
}

// VerifyMFA completes a login that required a second factor.
func (s *AuthService) VerifyMFA(ctx context.Context, email, mfaToken, code string) (*domain.TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(mfaToken) == "" || strings.TrimSpace(code) == "" {
		return nil, invalidInput("email, mfa token and code are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	claims, err := s.tokens.Validate(mfaToken, domain.TokenKindMFAChallenge, user)
	if err != nil {
		return nil, err
	}

	if err := s.mfa.Verify(ctx, *user, code); err != nil {
		return nil, err
	}
	if err := s.mfa.ClaimChallenge(ctx, claims); err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, ErrUserDisabled
	}

	pair, err := s.issueSession(ctx, *user)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveLogin(loginResultSuccess)
	return pair, nil
}

// RefreshToken exchanges a valid refresh token for a new access token. The refresh token itself is
// returned unchanged.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, invalidInput("refresh token is required")
	}

	subject, err := s.tokens.ExtractSubject(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", ErrInvalidToken)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	claims, err := s.tokens.Validate(refreshToken, domain.TokenKindRefresh, user)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, ErrUserDisabled
	}

	access, err := s.tokens.IssueAccessToken(*user)
	if err != nil {
		return nil, err
	}

	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     refreshToken,
		CreatedAt: s.now().UTC(),
		ExpiresAt: s.now().UTC().Add(s.tokens.RefreshTTL()),
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.UTC()
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	return &domain.TokenPair{AccessToken: access, RefreshToken: refreshToken, TokenType: domain.TokenTypeBearer}, nil
}

// Logout deletes the session bound to the bearer token. Unknown tokens are ignored.
// Access tokens already issued stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, authorization string) error {
	token := strings.TrimSpace(authorization)
	if len(token) >= len(bearerPrefix) && strings.EqualFold(token[:len(bearerPrefix)], bearerPrefix) {
		token = strings.TrimSpace(token[len(bearerPrefix):])
	}
	if token == "" {
		return nil
	}

	if err := s.sessions.DeleteByToken(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// issueSession issues a token pair and records a session for its refresh token.
func (s *AuthService) issueSession(ctx context.Context, user domain.User) (*domain.TokenPair, error) {
	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     pair.RefreshToken,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokens.RefreshTTL()),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return pair, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
