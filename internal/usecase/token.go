package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/infra/config"
	"github.com/arklim/digital-bank-auth/internal/infra/security"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultMFATokenTTL     = 5 * time.Minute
)

// TokenIssuer creates and validates access, refresh and MFA-challenge tokens.
// It holds no state beyond the signer and lifetimes.
type TokenIssuer struct {
	signer     *security.JWTSigner
	accessTTL  time.Duration
	refreshTTL time.Duration
	mfaTTL     time.Duration
	now        func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer using the lifetimes from cfg.
func NewTokenIssuer(signer *security.JWTSigner, cfg config.JWTSettings) (*TokenIssuer, error) {
	if signer == nil {
		return nil, fmt.Errorf("token issuer: signer is required")
	}

	issuer := &TokenIssuer{
		signer:     signer,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		mfaTTL:     cfg.MFATokenTTL,
		now:        time.Now,
	}
	if issuer.accessTTL <= 0 {
		issuer.accessTTL = defaultAccessTokenTTL
	}
	if issuer.refreshTTL <= 0 {
		issuer.refreshTTL = defaultRefreshTokenTTL
	}
	if issuer.mfaTTL <= 0 {
		issuer.mfaTTL = defaultMFATokenTTL
	}
	return issuer, nil
}

// WithClock overrides the issuance clock.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	if now != nil {
		t.now = now
	}
	return t
}

// RefreshTTL reports the refresh token lifetime, which also bounds session rows.
func (t *TokenIssuer) RefreshTTL() time.Duration {
	return t.refreshTTL
}

// IssueAccessToken issues a short-lived access token for user.
func (t *TokenIssuer) IssueAccessToken(user domain.User) (string, error) {
	return t.issue(user, domain.TokenKindAccess, t.accessTTL)
}

// IssueRefreshToken issues a long-lived refresh token for user.
func (t *TokenIssuer) IssueRefreshToken(user domain.User) (string, error) {
	return t.issue(user, domain.TokenKindRefresh, t.refreshTTL)
}

// IssueMFAChallengeToken issues a token that only the MFA verification step accepts.
func (t *TokenIssuer) IssueMFAChallengeToken(user domain.User) (string, error) {
	return t.issue(user, domain.TokenKindMFAChallenge, t.mfaTTL)
}

// IssuePair issues an access token together with a refresh token.
func (t *TokenIssuer) IssuePair(user domain.User) (*domain.TokenPair, error) {
	access, err := t.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := t.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: domain.TokenTypeBearer}, nil
}

func (t *TokenIssuer) issue(user domain.User, kind domain.TokenKind, ttl time.Duration) (string, error) {
	if strings.TrimSpace(user.ID) == "" {
		return "", fmt.Errorf("issue %s token: user id is required", kind)
	}

	now := t.now().UTC()
	claims := &security.TokenClaims{
		Kind:  kind,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    t.signer.Issuer(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token, err := t.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("issue %s token: %w", kind, err)
	}
	return token, nil
}

// Validate checks signature, expiry and kind, and when expected is non-nil that the signed subject is that user.
// Expiry is reported as ErrExpiredToken only for tokens that pass every other check.
func (t *TokenIssuer) Validate(token string, kind domain.TokenKind, expected *domain.User) (*security.TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: token is empty", ErrInvalidToken)
	}

	claims, err := t.signer.Parse(token)
	if err != nil {
		if !errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		// Signature already verified by the signer; inspect the payload for kind and subject.
		expired, parseErr := t.signer.ParseUnverified(token)
		if parseErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, parseErr)
		}
		if err := checkClaims(expired, kind, expected); err != nil {
			return nil, err
		}
		return nil, ErrExpiredToken
	}

	if err := checkClaims(claims, kind, expected); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateAccessToken validates token as an access token for any user.
func (t *TokenIssuer) ValidateAccessToken(token string) (*security.TokenClaims, error) {
	return t.Validate(token, domain.TokenKindAccess, nil)
}

// ExtractSubject reads the subject without verifying the token. Callers must Validate before trusting it.
func (t *TokenIssuer) ExtractSubject(token string) (string, error) {
	claims, err := t.signer.ParseUnverified(strings.TrimSpace(token))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return claims.Subject, nil
}

func checkClaims(claims *security.TokenClaims, kind domain.TokenKind, expected *domain.User) error {
	if claims.Kind != kind {
		return fmt.Errorf("%w: expected %s token", ErrInvalidToken, kind)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	if expected != nil && claims.Subject != expected.ID {
		return fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}
	return nil
}
