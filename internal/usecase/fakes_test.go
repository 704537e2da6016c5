package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	uuid "github.com/google/uuid"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/core/port"
	"github.com/arklim/digital-bank-auth/internal/infra/config"
	"github.com/arklim/digital-bank-auth/internal/infra/security"
	"github.com/arklim/digital-bank-auth/internal/repository"
)

const testSigningKey = "test-signing-key-0123456789abcdef0123456789"

// memoryUserRepo mirrors the postgres repository semantics closely enough for engine tests,
// including the conditional reset-token redemption.
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
	now   func() time.Time

	saveErr error
}

var _ port.UserRepository = (*memoryUserRepo)(nil)

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: map[string]domain.User{}, now: time.Now}
}

func cloneUser(u domain.User) *domain.User {
	out := u
	if u.Phone != nil {
		phone := *u.Phone
		out.Phone = &phone
	}
	if u.Credential != nil {
		cred := *u.Credential
		if cred.ResetTokenHash != nil {
			hash := *cred.ResetTokenHash
			cred.ResetTokenHash = &hash
		}
		if cred.ResetTokenExpiry != nil {
			expiry := *cred.ResetTokenExpiry
			cred.ResetTokenExpiry = &expiry
		}
		out.Credential = &cred
	}
	return &out
}

func (r *memoryUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, repository.ErrNotFound
}

func (r *memoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Email == email })
}

func (r *memoryUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r *memoryUserRepo) find(match func(domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryUserRepo) Save(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return nil, r.saveErr
	}

	if user.ID == "" {
		for _, existing := range r.users {
			switch {
			case existing.Email == user.Email:
				return nil, &repository.ConflictError{Field: "email"}
			case existing.Username == user.Username:
				return nil, &repository.ConflictError{Field: "username"}
			}
		}
		created := cloneUser(*user)
		created.ID = uuid.NewString()
		created.CreatedAt = r.now().UTC()
		created.UpdatedAt = created.CreatedAt
		if created.Credential == nil {
			created.Credential = &domain.Credential{}
		}
		r.users[created.ID] = *cloneUser(*created)
		return created, nil
	}

	existing, ok := r.users[user.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if user.FullName != "" {
		existing.FullName = user.FullName
	}
	if user.Status != "" {
		existing.Status = user.Status
	}
	if cred := user.Credential; cred != nil {
		merged := *cloneUser(existing).Credential
		if cred.PasswordHash != "" {
			merged.PasswordHash = cred.PasswordHash
		}
		if cred.ResetTokenHash != nil || cred.ResetTokenExpiry != nil {
			if cred.ResetTokenHash == nil || cred.ResetTokenExpiry == nil {
				return nil, repository.ErrInvalidResetState
			}
			merged.ResetTokenHash = cred.ResetTokenHash
			merged.ResetTokenExpiry = cred.ResetTokenExpiry
		}
		existing.Credential = &merged
	}
	existing.UpdatedAt = r.now().UTC()
	r.users[existing.ID] = *cloneUser(existing)
	return cloneUser(existing), nil
}

func (r *memoryUserRepo) ConsumeResetToken(_ context.Context, userID, tokenHash, passwordHash string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || !u.Credential.ResetTokenValid(now) || *u.Credential.ResetTokenHash != tokenHash {
		return repository.ErrNotFound
	}
	u.Credential = &domain.Credential{PasswordHash: passwordHash}
	r.users[userID] = u
	return nil
}

func (r *memoryUserRepo) DeleteExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, u := range r.users {
		if u.Credential.HasResetToken() && !u.Credential.ResetTokenExpiry.After(now) {
			u.Credential = &domain.Credential{PasswordHash: u.Credential.PasswordHash}
			r.users[id] = u
			n++
		}
	}
	return n, nil
}

// expireResetToken moves the stored reset token expiry into the past.
func (r *memoryUserRepo) expireResetToken(t *testing.T, userID string) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || !u.Credential.HasResetToken() {
		t.Fatalf("user %s has no reset token", userID)
	}
	past := time.Now().Add(-time.Minute)
	u.Credential.ResetTokenExpiry = &past
	r.users[userID] = u
}

type memorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	deleted  []string
}

var _ port.SessionRepository = (*memorySessionRepo)(nil)

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{sessions: map[string]domain.Session{}}
}

func (r *memorySessionRepo) Save(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.Token]; !ok {
		r.sessions[session.Token] = session
	}
	return nil
}

func (r *memorySessionRepo) GetByToken(_ context.Context, token string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[token]; ok {
		return &s, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memorySessionRepo) DeleteByToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, token)
	delete(r.sessions, token)
	return nil
}

func (r *memorySessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for token, s := range r.sessions {
		if s.IsExpired(now) {
			delete(r.sessions, token)
			n++
		}
	}
	return n, nil
}

func (r *memorySessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type memoryMFARepo struct {
	mu      sync.Mutex
	methods []domain.MFAMethod
	findErr error
}

var _ port.MFARepository = (*memoryMFARepo)(nil)

func (r *memoryMFARepo) Save(_ context.Context, method domain.MFAMethod) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods = append(r.methods, method)
	return nil
}

func (r *memoryMFARepo) FindEnabledByUserID(_ context.Context, userID string) (*domain.MFAMethod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var newest *domain.MFAMethod
	for i := range r.methods {
		m := r.methods[i]
		if m.UserID != userID || !m.Enabled {
			continue
		}
		if newest == nil || !m.CreatedAt.Before(newest.CreatedAt) {
			newest = &m
		}
	}
	if newest == nil {
		return nil, repository.ErrNotFound
	}
	return newest, nil
}

type memoryChallengeStore struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func (s *memoryChallengeStore) Claim(_ context.Context, jti string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed == nil {
		s.claimed = map[string]bool{}
	}
	if s.claimed[jti] {
		return false, nil
	}
	s.claimed[jti] = true
	return true, nil
}

type recordingPublisher struct {
	mu         sync.Mutex
	registered []domain.UserRegisteredEvent
	resets     []domain.PasswordResetRequestedEvent
	changed    []domain.PasswordChangedEvent
	enrolled   []domain.MFAEnrolledEvent
	codes      []domain.MFACodeIssuedEvent
	err        error
}

var _ port.EventPublisher = (*recordingPublisher)(nil)

func (p *recordingPublisher) PublishUserRegistered(_ context.Context, e domain.UserRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, e)
	return p.err
}

func (p *recordingPublisher) PublishPasswordResetRequested(_ context.Context, e domain.PasswordResetRequestedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets = append(p.resets, e)
	return p.err
}

func (p *recordingPublisher) PublishPasswordChanged(_ context.Context, e domain.PasswordChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, e)
	return p.err
}

func (p *recordingPublisher) PublishMFAEnrolled(_ context.Context, e domain.MFAEnrolledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enrolled = append(p.enrolled, e)
	return p.err
}

func (p *recordingPublisher) PublishMFACodeIssued(_ context.Context, e domain.MFACodeIssuedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes = append(p.codes, e)
	return p.err
}

// plainHasher keeps tests fast; the Argon2 hasher has its own tests.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "plain$" + password, nil
}

func (plainHasher) Verify(password, encoded string) (bool, error) {
	if !strings.HasPrefix(encoded, "plain$") {
		return false, errors.New("unknown hash format")
	}
	return strings.TrimPrefix(encoded, "plain$") == password, nil
}

type countingMetrics struct {
	mu     sync.Mutex
	logins map[string]int
	resets map[string]int
}

func (m *countingMetrics) ObserveLogin(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.logins == nil {
		m.logins = map[string]int{}
	}
	m.logins[result]++
}

func (m *countingMetrics) ObservePasswordReset(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resets == nil {
		m.resets = map[string]int{}
	}
	m.resets[stage]++
}

type testEnv struct {
	svc        *AuthService
	users      *memoryUserRepo
	sessions   *memorySessionRepo
	mfaMethods *memoryMFARepo
	challenges *memoryChallengeStore
	events     *recordingPublisher
	metrics    *countingMetrics
	tokens     *TokenIssuer
	mfa        *MFACoordinator
	signer     *security.JWTSigner
}

func newTestTokenIssuer(t *testing.T) (*TokenIssuer, *security.JWTSigner) {
	t.Helper()
	signer, err := security.NewJWTSigner(testSigningKey, "digital-bank-auth")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	tokens, err := NewTokenIssuer(signer, config.JWTSettings{
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		MFATokenTTL:     5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("new token issuer: %v", err)
	}
	return tokens, signer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		users:      newMemoryUserRepo(),
		sessions:   newMemorySessionRepo(),
		mfaMethods: &memoryMFARepo{},
		challenges: &memoryChallengeStore{},
		events:     &recordingPublisher{},
		metrics:    &countingMetrics{},
	}
	env.tokens, env.signer = newTestTokenIssuer(t)

	mfa, err := NewMFACoordinator(env.mfaMethods, env.tokens, config.MFASettings{
		Issuer:      "Digital Bank",
		TOTPPeriod:  30 * time.Second,
		AllowedSkew: 1,
	}, WithMFAEvents(env.events), WithChallengeStore(env.challenges))
	if err != nil {
		t.Fatalf("new mfa coordinator: %v", err)
	}
	env.mfa = mfa

	svc, err := NewAuthService(env.users, env.sessions, plainHasher{}, env.tokens, mfa,
		WithEventPublisher(env.events),
		WithPasswordPolicy(security.NewPasswordPolicy(security.PasswordPolicyConfig{})),
		WithMetrics(env.metrics),
	)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	env.svc = svc
	return env
}

func (env *testEnv) register(t *testing.T, username, email, password string) *domain.User {
	t.Helper()
	if _, err := env.svc.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
		FullName: "Test User",
	}); err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	user, err := env.users.GetByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("load registered user: %v", err)
	}
	return user
}
