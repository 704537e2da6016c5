package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/digital-bank-auth/internal/infra/config"
	"github.com/arklim/digital-bank-auth/internal/transport/http/handlers"
	"github.com/arklim/digital-bank-auth/internal/transport/http/middleware"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config         *config.AppConfig
	Logger         *zap.Logger
	Auth           handlers.AuthAPI
	Tokens         middleware.AccessTokenValidator
	RateLimiter    *middleware.RateLimiter
	HTTPMetrics    *middleware.HTTPMetrics
	MetricsHandler http.Handler
	TracerProvider trace.TracerProvider
	Database       DependencyChecker
	Cache          DependencyChecker
}

// DependencyChecker exposes readiness behaviour for a backing service.
type DependencyChecker interface {
	Ping(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Tracing(middleware.TracingOptions{TracerProvider: deps.TracerProvider}))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.HTTPMetrics.Handler())

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("postgres", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.Ping))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	if deps.Auth == nil {
		return r
	}

	authHandler := handlers.NewAuthHandler(deps.Auth)
	limits := buildRateLimits(deps)

	auth := r.Group("/auth")
	{
		auth.POST("/register", chain(limits.register, authHandler.Register)...)
		auth.POST("/login", chain(limits.login, authHandler.Login)...)
		auth.POST("/logout", authHandler.Logout)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/mfa/verify", chain(limits.mfaVerify, authHandler.VerifyMFA)...)
		auth.POST("/password-reset", chain(limits.passwordReset, authHandler.ResetPassword)...)
		auth.POST("/password-update", chain(limits.passwordReset, authHandler.UpdatePassword)...)

		if deps.Tokens != nil {
			auth.POST("/mfa/enroll",
				middleware.RequireAccess(deps.Tokens, middleware.OwnResource("mfa_method")),
				authHandler.EnrollMFA,
			)
		}
	}

	return r
}

type rateLimits struct {
	login         []gin.HandlerFunc
	register      []gin.HandlerFunc
	mfaVerify     []gin.HandlerFunc
	passwordReset []gin.HandlerFunc
}

func buildRateLimits(deps Dependencies) rateLimits {
	if deps.RateLimiter == nil || deps.Config == nil || !deps.Config.RateLimit.Enabled {
		return rateLimits{}
	}

	settings := deps.Config.RateLimit
	window := settings.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := func(name string, limit int) []gin.HandlerFunc {
		if limit <= 0 {
			return nil
		}
		return []gin.HandlerFunc{deps.RateLimiter.RateLimit(middleware.RateLimitRule{
			Name:       name,
			Limit:      limit,
			Window:     window,
			Identifier: middleware.ClientIPIdentifier(),
		})}
	}

	return rateLimits{
		login:         rule("auth_login_ip", settings.LoginMaxAttempts),
		register:      rule("auth_register_ip", settings.RegisterMaxAttempts),
		mfaVerify:     rule("auth_mfa_verify_ip", settings.MFAVerifyMaxAttempts),
		passwordReset: rule("auth_password_reset_ip", settings.PasswordResetMaxAttempts),
	}
}

func chain(pre []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(pre)+1)
	out = append(out, pre...)
	return append(out, h)
}
