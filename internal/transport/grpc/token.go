package transportgrpc

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/arklim/digital-bank-auth/internal/infra/security"
	grpcinterceptors "github.com/arklim/digital-bank-auth/internal/transport/grpc/interceptors"
	"github.com/arklim/digital-bank-auth/internal/usecase"
)

const (
	// TokenServiceName is the fully qualified gRPC service name.
	TokenServiceName = "auth.v1.TokenService"

	// MethodValidateToken lets internal services check an access token they received.
	MethodValidateToken = "/" + TokenServiceName + "/ValidateToken"
	// MethodWhoami describes the caller's own access token.
	MethodWhoami = "/" + TokenServiceName + "/Whoami"
)

// AccessTokenValidator validates access tokens for the gRPC layer.
type AccessTokenValidator interface {
	ValidateAccessToken(token string) (*security.TokenClaims, error)
}

// TokenServiceServer is the server API for auth.v1.TokenService.
type TokenServiceServer interface {
	ValidateToken(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Whoami(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// TokenServer implements auth.v1.TokenService on top of the token issuer.
type TokenServer struct {
	tokens AccessTokenValidator
	logger *zap.Logger
}

var _ TokenServiceServer = (*TokenServer)(nil)

// NewTokenServer constructs a gRPC token server.
func NewTokenServer(tokens AccessTokenValidator, logger *zap.Logger) *TokenServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenServer{tokens: tokens, logger: logger}
}

// ValidateToken reports whether the supplied access token is active.
// Invalid and expired tokens are not RPC errors; they return active=false.
func (s *TokenServer) ValidateToken(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if s == nil || s.tokens == nil {
		return nil, status.Error(codes.Unavailable, "token validation not available")
	}
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}

	claims, err := s.tokens.ValidateAccessToken(req.GetValue())
	if err != nil {
		reason := "invalid"
		if errors.Is(err, usecase.ErrExpiredToken) {
			reason = "expired"
		} else if !errors.Is(err, usecase.ErrInvalidToken) {
			s.logger.Error("token validation failed", zap.Error(err))
			return nil, status.Error(codes.Internal, "failed to validate token")
		}
		return structpb.NewStruct(map[string]interface{}{"active": false, "reason": reason})
	}

	fields := claimsFields(claims)
	fields["active"] = true
	return structpb.NewStruct(fields)
}

// Whoami returns the claims of the access token that authenticated the call.
func (s *TokenServer) Whoami(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	claims, ok := grpcinterceptors.ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authorization token required")
	}
	return structpb.NewStruct(claimsFields(claims))
}

func claimsFields(claims *security.TokenClaims) map[string]interface{} {
	fields := map[string]interface{}{
		"userId": claims.UserID(),
		"email":  claims.Email,
		"kind":   string(claims.Kind),
	}
	if claims.ExpiresAt != nil {
		fields["expiresAt"] = claims.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return fields
}

// RegisterTokenServiceServer registers srv with the gRPC server.
func RegisterTokenServiceServer(s grpc.ServiceRegistrar, srv TokenServiceServer) {
	s.RegisterService(&tokenServiceDesc, srv)
}

func validateTokenHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenServiceServer).ValidateToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodValidateToken}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TokenServiceServer).ValidateToken(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func whoamiHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenServiceServer).Whoami(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodWhoami}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TokenServiceServer).Whoami(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var tokenServiceDesc = grpc.ServiceDesc{
	ServiceName: TokenServiceName,
	HandlerType: (*TokenServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ValidateToken", Handler: validateTokenHandler},
		{MethodName: "Whoami", Handler: whoamiHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "auth/v1/token.proto",
}
