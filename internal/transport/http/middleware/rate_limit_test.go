package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/digital-bank-auth/internal/core/port"
)

type fakeRateLimitStore struct {
	window port.RateLimitWindow
	err    error

	keys []string
}

func (f *fakeRateLimitStore) Hit(_ context.Context, key string, _ int, _ time.Duration, _ time.Time) (port.RateLimitWindow, error) {
	f.keys = append(f.keys, key)
	return f.window, f.err
}

func newLimitedRouter(t *testing.T, store port.RateLimitStore, now time.Time) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	limiter := NewRateLimiter(store, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })

	router := gin.New()
	router.Use(limiter.RateLimit(RateLimitRule{
		Name:   "login",
		Limit:  5,
		Window: time.Minute,
		Identifier: func(c *gin.Context) (string, bool) {
			return "192.0.2.1", true
		},
	}))
	router.POST("/auth/login", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestRateLimiterAllowsWhenBelowLimit(t *testing.T) {
	now := time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)
	oldest := now.Add(-30 * time.Second)
	store := &fakeRateLimitStore{window: port.RateLimitWindow{Allowed: true, Count: 3, Oldest: oldest}}

	rr := httptest.NewRecorder()
	newLimitedRouter(t, store, now).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(store.keys) != 1 || store.keys[0] != "login:192.0.2.1" {
		t.Fatalf("unexpected store keys %v", store.keys)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Fatalf("expected limit header 5, got %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "2" {
		t.Fatalf("expected remaining header 2, got %q", got)
	}
	expectedReset := oldest.Add(time.Minute).Unix()
	if got := rr.Header().Get("X-RateLimit-Reset"); got != strconv.FormatInt(expectedReset, 10) {
		t.Fatalf("expected reset header %d, got %q", expectedReset, got)
	}
	if got := rr.Header().Get("Retry-After"); got != "" {
		t.Fatalf("expected no retry-after header, got %q", got)
	}
}

func TestRateLimiterBlocksWhenLimitExceeded(t *testing.T) {
	now := time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)
	store := &fakeRateLimitStore{window: port.RateLimitWindow{Allowed: false, Count: 5, Oldest: now.Add(-30 * time.Second)}}

	rr := httptest.NewRecorder()
	newLimitedRouter(t, store, now).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", nil))

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("expected retry-after 30, got %q", got)
	}
	if got := rr.Header().Get("Content-Type"); got != problemContentType {
		t.Fatalf("expected problem content type, got %q", got)
	}

	var problem ProblemDetails
	if err := json.Unmarshal(rr.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if problem.Status != http.StatusTooManyRequests || problem.RetryAfter != 30 {
		t.Fatalf("unexpected problem %+v", problem)
	}
	if problem.Instance != "/auth/login" {
		t.Fatalf("expected instance /auth/login, got %q", problem.Instance)
	}
}

func TestRateLimiterFailsOpenOnStoreError(t *testing.T) {
	now := time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)
	store := &fakeRateLimitStore{err: errors.New("redis down")}

	rr := httptest.NewRecorder()
	newLimitedRouter(t, store, now).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 when failing open, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "" {
		t.Fatalf("expected no rate limit headers, got %q", got)
	}
}

func TestRateLimiterIgnoresInvalidRules(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeRateLimitStore{}

	router := gin.New()
	router.Use(NewRateLimiter(store, nil).RateLimit(
		RateLimitRule{Name: "zero", Limit: 0, Window: time.Minute, Identifier: ClientIPIdentifier()},
		RateLimitRule{Name: "no-id", Limit: 1, Window: time.Minute},
	))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK || len(store.keys) != 0 {
		t.Fatalf("expected pass-through, got %d with keys %v", rr.Code, store.keys)
	}
}
