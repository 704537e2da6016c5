package routes_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/infra/config"
	"github.com/arklim/digital-bank-auth/internal/infra/security"
	redisrepo "github.com/arklim/digital-bank-auth/internal/repository/redis"
	"github.com/arklim/digital-bank-auth/internal/transport/http/middleware"
	httproutes "github.com/arklim/digital-bank-auth/internal/transport/http/routes"
	"github.com/arklim/digital-bank-auth/internal/usecase"
)

type stubAuth struct {
	enrolledFor string
}

func (s *stubAuth) Register(context.Context, usecase.RegisterInput) (*domain.TokenPair, error) {
	return &domain.TokenPair{AccessToken: "a", RefreshToken: "r"}, nil
}

func (s *stubAuth) Login(context.Context, string, string) (*domain.AuthResult, error) {
	return nil, usecase.ErrInvalidCredentials
}

func (s *stubAuth) VerifyMFA(context.Context, string, string, string) (*domain.TokenPair, error) {
	return nil, usecase.ErrInvalidMFACode
}

func (s *stubAuth) RefreshToken(context.Context, string) (*domain.TokenPair, error) {
	return nil, usecase.ErrInvalidToken
}

func (s *stubAuth) Logout(context.Context, string) error { return nil }

func (s *stubAuth) InitiatePasswordReset(context.Context, string) (string, error) { return "t", nil }

func (s *stubAuth) UpdatePassword(context.Context, string, string, string) error {
	return usecase.ErrInvalidOrExpiredToken
}

func (s *stubAuth) EnrollMFA(_ context.Context, userID string, method domain.MFAMethodType) (*usecase.Enrollment, error) {
	s.enrolledFor = userID
	return &usecase.Enrollment{Method: domain.MFAMethod{ID: "m-1", UserID: userID, Method: domain.MFAMethodEmail}}, nil
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		App: config.AppSettings{Env: "test"},
		RateLimit: config.RateLimitSettings{
			Enabled:                  true,
			WindowDuration:           time.Minute,
			LoginMaxAttempts:         2,
			RegisterMaxAttempts:      3,
			MFAVerifyMaxAttempts:     5,
			PasswordResetMaxAttempts: 3,
		},
	}
}

func newTokenIssuer(t *testing.T) *usecase.TokenIssuer {
	t.Helper()
	signer, err := security.NewJWTSigner("routes-test-signing-key-0123456789abcdef", "digital-bank-auth")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	issuer, err := usecase.NewTokenIssuer(signer, config.JWTSettings{})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return issuer
}

func post(r http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := httproutes.Register(httproutes.Dependencies{
		Config: testConfig(),
		Logger: zaptest.NewLogger(t),
		Database: pingFunc(func(context.Context) error {
			return errors.New("down")
		}),
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected readiness 503, got %d", rr.Code)
	}
}

func TestLoginIsRateLimitedPerClient(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := middleware.NewRateLimiter(redisrepo.NewRateLimitRepository(client, "test:rl"), zaptest.NewLogger(t))
	r := httproutes.Register(httproutes.Dependencies{
		Config:      testConfig(),
		Logger:      zaptest.NewLogger(t),
		Auth:        &stubAuth{},
		RateLimiter: limiter,
	})

	body := `{"email":"alice@example.com","password":"wrong"}`
	for i := 0; i < 2; i++ {
		if rr := post(r, "/auth/login", body, nil); rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rr.Code)
		}
	}

	rr := post(r, "/auth/login", body, nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	// Refresh is not limited.
	if rr := post(r, "/auth/refresh", `{"refreshToken":"x"}`, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected refresh 401, got %d", rr.Code)
	}
}

func TestEnrollRequiresAccessToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	issuer := newTokenIssuer(t)
	auth := &stubAuth{}
	r := httproutes.Register(httproutes.Dependencies{
		Config: testConfig(),
		Logger: zaptest.NewLogger(t),
		Auth:   auth,
		Tokens: issuer,
	})

	if rr := post(r, "/auth/mfa/enroll", `{"method":"EMAIL"}`, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	user := domain.User{ID: "user-7", Email: "alice@example.com"}
	challenge, err := issuer.IssueMFAChallengeToken(user)
	if err != nil {
		t.Fatalf("issue challenge: %v", err)
	}
	if rr := post(r, "/auth/mfa/enroll", `{"method":"EMAIL"}`, map[string]string{"Authorization": "Bearer " + challenge}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected challenge token to be rejected, got %d", rr.Code)
	}

	access, err := issuer.IssueAccessToken(user)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	rr := post(r, "/auth/mfa/enroll", `{"method":"EMAIL"}`, map[string]string{"Authorization": "Bearer " + access})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if auth.enrolledFor != "user-7" {
		t.Fatalf("expected enrolment for token subject, got %q", auth.enrolledFor)
	}
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("http metrics: %v", err)
	}

	r := httproutes.Register(httproutes.Dependencies{
		Config:         testConfig(),
		Logger:         zaptest.NewLogger(t),
		Auth:           &stubAuth{},
		HTTPMetrics:    httpMetrics,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	post(r, "/auth/register", `{"username":"a","email":"a@example.com","password":"p","fullName":"A"}`, nil)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `auth_http_requests_total{method="POST",route="/auth/register",status="201"} 1`) {
		t.Fatalf("expected request counter in exposition, got:\n%s", rr.Body.String())
	}
}
