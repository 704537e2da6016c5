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
	"github.com/arklim/digital-bank-auth/internal/infra/config"
	"github.com/arklim/digital-bank-auth/internal/infra/security"
	"github.com/arklim/digital-bank-auth/internal/repository"
)

const (
	defaultTOTPPeriod   = 30 * time.Second
	defaultOutOfBandTTL = 5 * time.Minute
)

// MFACoordinator tracks enrolled second factors and verifies one-time codes against them.
type MFACoordinator struct {
	methods    port.MFARepository
	challenges port.ChallengeStore
	tokens     *TokenIssuer
	events     port.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
	issuer     string
	totp       security.OTPOptions
	outOfBand  security.OTPOptions
}

// MFAOption customises an MFACoordinator.
type MFAOption func(*MFACoordinator)

// WithMFAClock overrides the clock used for code generation and validation.
func WithMFAClock(now func() time.Time) MFAOption {
	return func(c *MFACoordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMFALogger sets the logger used for delivery failures.
func WithMFALogger(l *zap.Logger) MFAOption {
	return func(c *MFACoordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMFAEvents sets the publisher used to hand out-of-band codes to delivery channels.
func WithMFAEvents(events port.EventPublisher) MFAOption {
	return func(c *MFACoordinator) {
		c.events = events
	}
}

// WithChallengeStore enables single-use enforcement for MFA challenge tokens.
func WithChallengeStore(store port.ChallengeStore) MFAOption {
	return func(c *MFACoordinator) {
		c.challenges = store
	}
}

// NewMFACoordinator constructs an MFACoordinator.
func NewMFACoordinator(methods port.MFARepository, tokens *TokenIssuer, cfg config.MFASettings, opts ...MFAOption) (*MFACoordinator, error) {
	if methods == nil {
		return nil, fmt.Errorf("mfa coordinator: method repository is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("mfa coordinator: token issuer is required")
	}

	totpPeriod := cfg.TOTPPeriod
	if totpPeriod <= 0 {
		totpPeriod = defaultTOTPPeriod
	}
	oobPeriod := cfg.OutOfBandTTL
	if oobPeriod <= 0 {
		oobPeriod = defaultOutOfBandTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "Digital Bank"
	}

	c := &MFACoordinator{
		methods:   methods,
		tokens:    tokens,
		logger:    zap.NewNop(),
		now:       time.Now,
		issuer:    issuer,
		totp:      security.OTPOptions{Period: totpPeriod, Skew: cfg.AllowedSkew},
		outOfBand: security.OTPOptions{Period: oobPeriod, Skew: cfg.AllowedSkew},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IsMFAEnabled reports whether the user has an enabled second factor.
func (c *MFACoordinator) IsMFAEnabled(ctx context.Context, userID string) (bool, error) {
	_, err := c.methods.FindEnabledByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup mfa method: %w", err)
	}
	return true, nil
}

// GenerateChallenge issues an MFA-challenge token for user. For SMS and email factors the current code
// is also published for delivery.
func (c *MFACoordinator) GenerateChallenge(ctx context.Context, user domain.User) (string, error) {
	token, err := c.tokens.IssueMFAChallengeToken(user)
	if err != nil {
		return "", err
	}

	method, err := c.methods.FindEnabledByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return token, nil
		}
		return "", fmt.Errorf("lookup mfa method: %w", err)
	}

	if method.Method.OutOfBand() {
		c.deliverCode(ctx, user, *method)
	}
	return token, nil
}

func (c *MFACoordinator) deliverCode(ctx context.Context, user domain.User, method domain.MFAMethod) {
	if c.events == nil {
		c.logger.Warn("no delivery channel for out-of-band mfa code", zap.String("user_id", user.ID), zap.String("method", string(method.Method)))
		return
	}

	now := c.now().UTC()
	code, err := security.GenerateOTPCode(method.Secret, now, c.outOfBand)
	if err != nil {
		c.logger.Warn("generate mfa code failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}

	destination := user.Email
	if method.Method == domain.MFAMethodSMS && user.Phone != nil {
		destination = *user.Phone
	}

	event := domain.MFACodeIssuedEvent{
		EventID:     uuid.NewString(),
		UserID:      user.ID,
		Method:      string(method.Method),
		Destination: destination,
		Code:        code,
		IssuedAt:    now,
		ExpiresAt:   now.Add(c.outOfBand.Period),
	}
	if err := c.events.PublishMFACodeIssued(ctx, event); err != nil {
		c.logger.Warn("publish mfa code failed", zap.String("user_id", user.ID), zap.String("destination", maskDestination(method.Method, destination)), zap.Error(err))
	}
}

// Enrollment is the result of enrolling a factor. Secret and ProvisioningURL are only set for TOTP,
// since the user must load them into an authenticator app.
type Enrollment struct {
	Method          domain.MFAMethod
	Secret          string
	ProvisioningURL string
}

// Enroll creates and enables a new factor of the given type for user.
// Existing factors stay enabled; login consults the most recently created one.
func (c *MFACoordinator) Enroll(ctx context.Context, user domain.User, methodType domain.MFAMethodType) (*Enrollment, error) {
	methodType = domain.MFAMethodType(strings.ToUpper(strings.TrimSpace(string(methodType))))
	if !methodType.Valid() {
		return nil, invalidInput("unsupported mfa method")
	}
	if methodType == domain.MFAMethodSMS && (user.Phone == nil || *user.Phone == "") {
		return nil, invalidInput("sms mfa requires a phone number")
	}

	enrollment := &Enrollment{}
	var secret string

	if methodType == domain.MFAMethodTOTP {
		key, err := security.GenerateTOTPKey(c.issuer, user.Email)
		if err != nil {
			return nil, err
		}
		secret = key.Secret()
		enrollment.Secret = secret
		enrollment.ProvisioningURL = key.URL()
	} else {
		generated, err := security.GenerateOTPSecret()
		if err != nil {
			return nil, err
		}
		secret = generated
	}

	method := domain.MFAMethod{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Method:    methodType,
		Secret:    secret,
		Enabled:   true,
		CreatedAt: c.now().UTC(),
	}
	if err := c.methods.Save(ctx, method); err != nil {
		return nil, fmt.Errorf("save mfa method: %w", err)
	}
	enrollment.Method = method

	if c.events != nil {
		event := domain.MFAEnrolledEvent{
			EventID:    uuid.NewString(),
			UserID:     user.ID,
			MethodID:   method.ID,
			Method:     string(method.Method),
			EnrolledAt: method.CreatedAt,
		}
		if err := c.events.PublishMFAEnrolled(ctx, event); err != nil {
			c.logger.Warn("publish mfa enrolled event failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	return enrollment, nil
}

// Verify checks code against the user's enabled factor.
func (c *MFACoordinator) Verify(ctx context.Context, user domain.User, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrInvalidMFACode
	}

	method, err := c.methods.FindEnabledByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidMFACode
		}
		return fmt.Errorf("lookup mfa method: %w", err)
	}

	opts := c.totp
	if method.Method.OutOfBand() {
		opts = c.outOfBand
	}

	ok, err := security.ValidateOTPCode(code, method.Secret, c.now().UTC(), opts)
	if err != nil || !ok {
		return ErrInvalidMFACode
	}
	return nil
}

// ClaimChallenge marks a validated challenge token as used so it cannot be redeemed twice.
func (c *MFACoordinator) ClaimChallenge(ctx context.Context, claims *security.TokenClaims) error {
	if c.challenges == nil || claims == nil {
		return nil
	}
	if claims.ID == "" {
		return fmt.Errorf("%w: challenge id missing", ErrInvalidToken)
	}

	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Sub(c.now()); remaining > 0 {
			ttl = remaining
		}
	}

	claimed, err := c.challenges.Claim(ctx, claims.ID, ttl)
	if err != nil {
		return fmt.Errorf("claim mfa challenge: %w", err)
	}
	if !claimed {
		return fmt.Errorf("%w: challenge already used", ErrInvalidToken)
	}
	return nil
}
