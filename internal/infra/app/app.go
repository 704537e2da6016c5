package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/arklim/digital-bank-auth/internal/core/port"
	"github.com/arklim/digital-bank-auth/internal/infra/config"
	"github.com/arklim/digital-bank-auth/internal/infra/database"
	"github.com/arklim/digital-bank-auth/internal/infra/jobs"
	kafkainfra "github.com/arklim/digital-bank-auth/internal/infra/kafka"
	"github.com/arklim/digital-bank-auth/internal/infra/logger"
	redisinfra "github.com/arklim/digital-bank-auth/internal/infra/redis"
	"github.com/arklim/digital-bank-auth/internal/infra/security"
	"github.com/arklim/digital-bank-auth/internal/infra/telemetry"
	postgresrepo "github.com/arklim/digital-bank-auth/internal/repository/postgres"
	redisrepo "github.com/arklim/digital-bank-auth/internal/repository/redis"
	transportgrpc "github.com/arklim/digital-bank-auth/internal/transport/grpc"
	"github.com/arklim/digital-bank-auth/internal/transport/http/middleware"
	"github.com/arklim/digital-bank-auth/internal/transport/http/routes"
	"github.com/arklim/digital-bank-auth/internal/usecase"
)

type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	tracer     *telemetry.TracerProvider
	scheduler  *jobs.Scheduler
	grpcServer *transportgrpc.Server
	grpcAddr   string
}

func New(ctx context.Context, cfg *config.AppConfig) (_ *Application, err error) {
	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	registry := telemetry.NewRegistry()
	authMetrics, err := telemetry.NewAuthMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("init auth metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, a.pool, log); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}

	a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	events := a.eventPublisher()

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	signer, err := security.NewJWTSigner(cfg.JWT.SigningKey, cfg.JWT.Issuer)
	if err != nil {
		return nil, fmt.Errorf("init jwt signer: %w", err)
	}
	tokens, err := usecase.NewTokenIssuer(signer, cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	repos := postgresrepo.NewRepositories(a.pool)

	mfa, err := usecase.NewMFACoordinator(repos.MFAMethods, tokens, cfg.MFA,
		usecase.WithMFALogger(log),
		usecase.WithMFAEvents(events),
		usecase.WithChallengeStore(redisrepo.NewChallengeRepository(a.redis.Redis(), cfg.Redis.MFAChallengePrefix)),
	)
	if err != nil {
		return nil, fmt.Errorf("init mfa coordinator: %w", err)
	}

	authService, err := usecase.NewAuthService(repos.Users, repos.Sessions, hasher, tokens, mfa,
		usecase.WithLogger(log),
		usecase.WithEventPublisher(events),
		usecase.WithMetrics(authMetrics),
		usecase.WithResetTokenTTL(cfg.PasswordReset.TokenTTL),
		usecase.WithPasswordPolicy(security.NewPasswordPolicy(security.PasswordPolicyConfig{
			MinLength:           cfg.Password.MinLength,
			MinCharacterClasses: cfg.Password.MinCharacterClasses,
			MinStrengthScore:    cfg.Password.MinStrengthScore,
		})),
	)
	if err != nil {
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	if cfg.Reaper.Enabled {
		reaper := usecase.NewReaper(repos.Users, repos.Sessions, log)
		a.scheduler, err = jobs.NewScheduler(cfg.Reaper.Schedule, reaper, authMetrics, log)
		if err != nil {
			return nil, fmt.Errorf("init reaper: %w", err)
		}
	}

	rateLimiter := middleware.NewRateLimiter(
		redisrepo.NewRateLimitRepository(a.redis.Redis(), cfg.Redis.RateLimitPrefix),
		log,
	)

	if cfg.GRPC.Enabled {
		a.grpcServer, err = transportgrpc.NewServer(transportgrpc.ServerDependencies{
			Tokens:         tokens,
			Logger:         log,
			Registerer:     registry,
			TracerProvider: a.tracer.Provider(),
			Dependencies: map[string]transportgrpc.DependencyChecker{
				"postgres": a.pool,
				"redis":    a.redis,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("init grpc server: %w", err)
		}
		a.grpcAddr = fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	}

	a.engine = routes.Register(routes.Dependencies{
		Config:         cfg,
		Logger:         log,
		Auth:           authService,
		Tokens:         tokens,
		RateLimiter:    rateLimiter,
		HTTPMetrics:    httpMetrics,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		TracerProvider: a.tracer.Provider(),
		Database:       a.pool,
		Cache:          a.redis,
	})

	return a, nil
}

func (a *Application) eventPublisher() port.EventPublisher {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	a.producer = producer
	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()
		a.close(shutdownCtx)
	}()

	errCh := make(chan error, 2)

	if a.grpcServer != nil {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))
		go func() {
			if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("run grpc server: %w", err)
			}
		}()
	}

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

// close releases everything New acquired; it tolerates partially built applications.
func (a *Application) close(ctx context.Context) {
	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.logger.Warn("reaper did not stop cleanly", zap.Error(err))
		}
	}
	if a.grpcServer != nil {
		a.grpcServer.Shutdown(ctx)
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer provider", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *Application) shutdownTimeout() time.Duration {
	if a.cfg.App.ShutdownTimeout > 0 {
		return a.cfg.App.ShutdownTimeout
	}
	return 10 * time.Second
}
