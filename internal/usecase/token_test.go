package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/infra/config"
	"github.com/arklim/digital-bank-auth/internal/infra/security"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	tokens, _ := newTestTokenIssuer(t)
	user := domain.User{ID: "user-1", Email: "alice@example.com"}

	pair, err := tokens.IssuePair(user)
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	access, err := tokens.Validate(pair.AccessToken, domain.TokenKindAccess, &user)
	if err != nil {
		t.Fatalf("validate access: %v", err)
	}
	if access.Subject != user.ID || access.Email != user.Email || access.ID == "" {
		t.Fatalf("unexpected claims %+v", access)
	}
	if got := access.ExpiresAt.Sub(access.IssuedAt.Time); got != 15*time.Minute {
		t.Fatalf("unexpected access ttl %s", got)
	}

	refresh, err := tokens.Validate(pair.RefreshToken, domain.TokenKindRefresh, &user)
	if err != nil {
		t.Fatalf("validate refresh: %v", err)
	}
	if got := refresh.ExpiresAt.Sub(refresh.IssuedAt.Time); got != 24*time.Hour {
		t.Fatalf("unexpected refresh ttl %s", got)
	}

	subject, err := tokens.ExtractSubject(pair.RefreshToken)
	if err != nil || subject != user.ID {
		t.Fatalf("extract subject: %q %v", subject, err)
	}
}

func TestTokenIssuerRejectsWrongKindAndSubject(t *testing.T) {
	tokens, _ := newTestTokenIssuer(t)
	user := domain.User{ID: "user-1"}
	other := domain.User{ID: "user-2"}

	access, err := tokens.IssueAccessToken(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := tokens.Validate(access, domain.TokenKindRefresh, &user); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected wrong kind to fail, got %v", err)
	}
	if _, err := tokens.Validate(access, domain.TokenKindAccess, &other); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected subject mismatch to fail, got %v", err)
	}
}

func TestTokenIssuerExpiredWrongKindIsInvalid(t *testing.T) {
	tokens, _ := newTestTokenIssuer(t)
	user := domain.User{ID: "user-1"}

	tokens.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	access, err := tokens.IssueAccessToken(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	tokens.WithClock(time.Now)

	if _, err := tokens.Validate(access, domain.TokenKindAccess, &user); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
	if _, err := tokens.Validate(access, domain.TokenKindRefresh, &user); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired wrong-kind token to be invalid, got %v", err)
	}
}

func TestTokenIssuerRejectsForeignSigner(t *testing.T) {
	tokens, _ := newTestTokenIssuer(t)
	foreignSigner, err := security.NewJWTSigner("another-signing-key-0123456789abcdef0123", "digital-bank-auth")
	if err != nil {
		t.Fatalf("foreign signer: %v", err)
	}
	foreign, err := NewTokenIssuer(foreignSigner, config.JWTSettings{})
	if err != nil {
		t.Fatalf("foreign issuer: %v", err)
	}

	token, err := foreign.IssueAccessToken(domain.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := tokens.ValidateAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenIssuerExpiredForeignIssuerIsInvalid(t *testing.T) {
	tokens, _ := newTestTokenIssuer(t)
	foreignSigner, err := security.NewJWTSigner(testSigningKey, "someone-else")
	if err != nil {
		t.Fatalf("foreign signer: %v", err)
	}
	foreign, err := NewTokenIssuer(foreignSigner, config.JWTSettings{})
	if err != nil {
		t.Fatalf("foreign issuer: %v", err)
	}
	foreign.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })

	token, err := foreign.IssueAccessToken(domain.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err = tokens.Validate(token, domain.TokenKindAccess, nil)
	if !errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenIssuerRejectsUnsignedToken(t *testing.T) {
	tokens, _ := newTestTokenIssuer(t)
	claims := &security.TokenClaims{
		Kind: domain.TokenKindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "digital-bank-auth",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := tokens.ValidateAccessToken(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenIssuerRequiresUserID(t *testing.T) {
	tokens, _ := newTestTokenIssuer(t)
	if _, err := tokens.IssueAccessToken(domain.User{}); err == nil {
		t.Fatalf("expected error for empty user id")
	}
	if _, err := tokens.ValidateAccessToken("  "); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}
