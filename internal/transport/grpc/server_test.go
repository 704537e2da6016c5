package transportgrpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/infra/config"
	"github.com/arklim/digital-bank-auth/internal/infra/security"
	"github.com/arklim/digital-bank-auth/internal/usecase"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newIssuer(t *testing.T) *usecase.TokenIssuer {
	t.Helper()
	signer, err := security.NewJWTSigner("grpc-test-signing-key-0123456789abcdef", "digital-bank-auth")
	require.NoError(t, err)
	issuer, err := usecase.NewTokenIssuer(signer, config.JWTSettings{})
	require.NoError(t, err)
	return issuer
}

func startServer(t *testing.T, deps ServerDependencies) *grpc.ClientConn {
	t.Helper()

	srv, err := NewServer(deps)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestNewServerRequiresValidator(t *testing.T) {
	_, err := NewServer(ServerDependencies{})
	assert.Error(t, err)
}

func TestHealthReflectsDependencies(t *testing.T) {
	conn := startServer(t, ServerDependencies{
		Tokens:     newIssuer(t),
		Logger:     zaptest.NewLogger(t),
		Registerer: prometheus.NewRegistry(),
		Dependencies: map[string]DependencyChecker{
			"postgres": pingFunc(func(context.Context) error { return nil }),
			"redis":    pingFunc(func(context.Context) error { return errors.New("refused") }),
		},
	})
	client := healthpb.NewHealthClient(conn)
	ctx := context.Background()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "postgres"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "redis"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestWhoamiRequiresAccessToken(t *testing.T) {
	issuer := newIssuer(t)
	conn := startServer(t, ServerDependencies{Tokens: issuer, Registerer: prometheus.NewRegistry()})
	user := domain.User{ID: "user-42", Email: "bob@example.com"}

	err := conn.Invoke(context.Background(), MethodWhoami, &emptypb.Empty{}, &structpb.Struct{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	challenge, err := issuer.IssueMFAChallengeToken(user)
	require.NoError(t, err)
	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+challenge)
	err = conn.Invoke(ctx, MethodWhoami, &emptypb.Empty{}, &structpb.Struct{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	access, err := issuer.IssueAccessToken(user)
	require.NoError(t, err)
	ctx = metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+access)
	out := &structpb.Struct{}
	require.NoError(t, conn.Invoke(ctx, MethodWhoami, &emptypb.Empty{}, out))
	assert.Equal(t, "user-42", out.GetFields()["userId"].GetStringValue())
	assert.Equal(t, "bob@example.com", out.GetFields()["email"].GetStringValue())
}

func TestValidateTokenIsPublic(t *testing.T) {
	issuer := newIssuer(t)
	conn := startServer(t, ServerDependencies{Tokens: issuer, Registerer: prometheus.NewRegistry()})

	access, err := issuer.IssueAccessToken(domain.User{ID: "user-1", Email: "a@example.com"})
	require.NoError(t, err)

	out := &structpb.Struct{}
	require.NoError(t, conn.Invoke(context.Background(), MethodValidateToken, wrapperspb.String(access), out))
	assert.True(t, out.GetFields()["active"].GetBoolValue())
	assert.Equal(t, "user-1", out.GetFields()["userId"].GetStringValue())

	out = &structpb.Struct{}
	require.NoError(t, conn.Invoke(context.Background(), MethodValidateToken, wrapperspb.String("garbage"), out))
	assert.False(t, out.GetFields()["active"].GetBoolValue())
	assert.Equal(t, "invalid", out.GetFields()["reason"].GetStringValue())

	err = conn.Invoke(context.Background(), MethodValidateToken, wrapperspb.String(""), &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
