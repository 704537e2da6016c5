package transportgrpc

import (
	"context"
	"errors"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcinterceptors "github.com/arklim/digital-bank-auth/internal/transport/grpc/interceptors"
)

// DependencyChecker exposes readiness behaviour for a backing service.
type DependencyChecker interface {
	Ping(ctx context.Context) error
}

// ServerDependencies encapsulates services required by the gRPC server layer.
type ServerDependencies struct {
	Tokens         AccessTokenValidator
	Logger         *zap.Logger
	Registerer     prometheus.Registerer
	TracerProvider trace.TracerProvider
	PublicMethods  []string // methods that don't require authentication
	Dependencies   map[string]DependencyChecker
}

// Server couples the gRPC server with its health service.
type Server struct {
	*grpc.Server
	health *health.Server
	checks map[string]DependencyChecker
	logger *zap.Logger
}

// NewServer wires gRPC services with authentication enforced through interceptors.
func NewServer(deps ServerDependencies) (*Server, error) {
	if deps.Tokens == nil {
		return nil, errors.New("token validator is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	metrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Registerer: deps.Registerer})
	if err != nil {
		return nil, err
	}

	publicMethods := append([]string{MethodValidateToken}, deps.PublicMethods...)
	authInterceptor := grpcinterceptors.NewAuthInterceptor(deps.Tokens, grpcinterceptors.AuthOptions{
		Logger:       logger,
		AllowMethods: publicMethods,
		AllowServices: []string{
			healthpb.Health_ServiceDesc.ServiceName,
			"grpc.reflection.v1.ServerReflection",
			"grpc.reflection.v1alpha.ServerReflection",
		},
	})

	server := grpc.NewServer(
		grpcinterceptors.TracingServerOption(grpcinterceptors.TracingOptions{
			TracerProvider: deps.TracerProvider,
			SkipServices:   []string{healthpb.Health_ServiceDesc.ServiceName},
		}),
		grpc.ChainUnaryInterceptor(metrics.UnaryServerInterceptor(), authInterceptor.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(metrics.StreamServerInterceptor(), authInterceptor.StreamServerInterceptor()),
	)

	RegisterTokenServiceServer(server, NewTokenServer(deps.Tokens, logger))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	// Register reflection service for tools like Postman, grpcurl, etc.
	reflection.Register(server)

	return &Server{Server: server, health: hs, checks: deps.Dependencies, logger: logger}, nil
}

// RefreshHealth pings every dependency and publishes the result through grpc.health.v1.
// The overall ("") status is SERVING only when every dependency answers.
func (s *Server) RefreshHealth(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING
	for name, checker := range s.checks {
		st := healthpb.HealthCheckResponse_SERVING
		if err := checker.Ping(ctx); err != nil {
			s.logger.Warn("dependency unhealthy", zap.String("dependency", name), zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
		s.health.SetServingStatus(name, st)
	}
	s.health.SetServingStatus("", overall)
	s.health.SetServingStatus(TokenServiceName, overall)
}

// Serve refreshes health once and then accepts connections on lis.
func (s *Server) Serve(lis net.Listener) error {
	s.RefreshHealth(context.Background())
	return s.Server.Serve(lis)
}

// Shutdown marks every service as not serving and drains in-flight calls.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.Server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.Server.Stop()
	}
}
