package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/repository"
)

func TestRegisterCreatesActiveUserAndSession(t *testing.T) {
	env := newTestEnv(t)
	phone := " +15551234567 "

	pair, err := env.svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "Secret123",
		FullName: "Alice Example",
		Phone:    &phone,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	user, err := env.users.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("expected user stored under normalized email: %v", err)
	}
	if user.Status != domain.UserStatusActive {
		t.Fatalf("expected ACTIVE, got %s", user.Status)
	}
	if user.Phone == nil || *user.Phone != "+15551234567" {
		t.Fatalf("expected trimmed phone, got %v", user.Phone)
	}
	if user.Credential.PasswordHash == "Secret123" {
		t.Fatalf("password stored in plaintext")
	}

	claims, err := env.tokens.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if claims.Subject != user.ID {
		t.Fatalf("expected subject %s, got %s", user.ID, claims.Subject)
	}
	if _, err := env.sessions.GetByToken(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("expected session: %v", err)
	}
	if len(env.events.registered) != 1 || env.events.registered[0].UserID != user.ID {
		t.Fatalf("expected registered event, got %+v", env.events.registered)
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	env := newTestEnv(t)
	first := env.register(t, "alice", "alice@example.com", "Secret123")

	_, err := env.svc.Register(context.Background(), RegisterInput{
		Username: "alice2",
		Email:    "alice@example.com",
		Password: "Another123",
		FullName: "Someone Else",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	var conflict *ConflictError
	if !errors.As(err, &conflict) || conflict.Field != "email" {
		t.Fatalf("expected email conflict, got %v", err)
	}

	stored, err := env.users.GetByID(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("load first user: %v", err)
	}
	if stored.Username != first.Username || stored.FullName != first.FullName || stored.Credential.PasswordHash != first.Credential.PasswordHash {
		t.Fatalf("first user changed: %+v", stored)
	}
}

func TestRegisterMapsStoreConflict(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "Secret123")

	_, err := env.svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "other@example.com",
		Password: "Secret123",
		FullName: "Other",
	})
	var conflict *ConflictError
	if !errors.As(err, &conflict) || conflict.Field != "username" {
		t.Fatalf("expected username conflict, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := map[string]RegisterInput{
		"missing username": {Email: "a@b.com", Password: "Secret123", FullName: "A"},
		"missing email":    {Username: "a", Password: "Secret123", FullName: "A"},
		"bad email":        {Username: "a", Email: "not-an-email", Password: "Secret123", FullName: "A"},
		"missing password": {Username: "a", Email: "a@b.com", FullName: "A"},
		"missing name":     {Username: "a", Email: "a@b.com", Password: "Secret123"},
		"weak password":    {Username: "a", Email: "a@b.com", Password: "password", FullName: "A"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := env.svc.Register(context.Background(), input); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
	if _, err := env.users.GetByEmail(context.Background(), "a@b.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("no user should be stored, got %v", err)
	}
}

func TestRegisterSurvivesPublisherFailure(t *testing.T) {
	env := newTestEnv(t)
	env.events.err = errors.New("broker down")

	if _, err := env.svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "Secret123",
		FullName: "Alice",
	}); err != nil {
		t.Fatalf("register should not fail on publish error: %v", err)
	}
}
