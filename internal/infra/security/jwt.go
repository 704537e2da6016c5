package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
)

const minSigningKeyLength = 32

// ErrSigningKeyTooShort indicates the configured HMAC secret is unusable.
var ErrSigningKeyTooShort = errors.New("jwt: signing key too short")

// TokenClaims is the payload shared by access, refresh and MFA-challenge tokens.
// Subject always carries the user id.
type TokenClaims struct {
	Kind  domain.TokenKind `json:"kind"`
	Email string           `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject the token was issued for.
func (c *TokenClaims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// JWTSigner signs and verifies HS256 tokens with a process-wide secret.
type JWTSigner struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewJWTSigner constructs a signer for the supplied secret and issuer.
func NewJWTSigner(signingKey, issuer string) (*JWTSigner, error) {
	signingKey = strings.TrimSpace(signingKey)
	if len(signingKey) < minSigningKeyLength {
		return nil, fmt.Errorf("%w: need at least %d characters", ErrSigningKeyTooShort, minSigningKeyLength)
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, fmt.Errorf("jwt: issuer is required")
	}

	return &JWTSigner{
		key:    []byte(signingKey),
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// WithClock overrides the time source used when validating expiry.
func (s *JWTSigner) WithClock(now func() time.Time) *JWTSigner {
	if now != nil {
		s.now = now
	}
	return s
}

// Issuer returns the iss claim stamped on issued tokens.
func (s *JWTSigner) Issuer() string {
	return s.issuer
}

// Sign serialises claims into a compact HS256 token.
func (s *JWTSigner) Sign(claims *TokenClaims) (string, error) {
	if claims == nil {
		return "", fmt.Errorf("jwt: claims required")
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature, issuer and expiry of raw and returns its claims.
// Errors are the jwt/v5 sentinels, so callers can tell jwt.ErrTokenExpired apart from other failures.
func (s *JWTSigner) Parse(raw string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			// Expiry is only reported for tokens whose signature and issuer also hold.
			signed := &TokenClaims{}
			if _, sigErr := jwt.ParseWithClaims(raw, signed, func(*jwt.Token) (any, error) {
				return s.key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation()); sigErr != nil {
				return nil, sigErr
			}
			if signed.Issuer != s.issuer {
				return nil, fmt.Errorf("%w: %w", jwt.ErrTokenInvalidClaims, jwt.ErrTokenInvalidIssuer)
			}
		}
		return nil, err
	}
	return claims, nil
}

// ParseUnverified decodes raw without checking its signature or claims. The result must not be trusted.
func (s *JWTSigner) ParseUnverified(raw string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
