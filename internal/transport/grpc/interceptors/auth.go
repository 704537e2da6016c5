package interceptors

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/arklim/digital-bank-auth/internal/infra/security"
	"github.com/arklim/digital-bank-auth/internal/usecase"
)

const (
	authorizationKey = "authorization"
	bearerPrefix     = "bearer "
)

// TokenValidator exposes the access-token validation required by the auth interceptor.
type TokenValidator interface {
	ValidateAccessToken(token string) (*security.TokenClaims, error)
}

// AuthOptions fine-tunes interceptor behaviour.
type AuthOptions struct {
	AllowMethods  []string
	AllowServices []string
	Logger        *zap.Logger
}

// AuthInterceptor validates incoming requests using JWT access tokens.
type AuthInterceptor struct {
	validator TokenValidator
	logger    *zap.Logger
	methods   map[string]struct{}
	services  map[string]struct{}
}

// NewAuthInterceptor constructs a new AuthInterceptor instance.
func NewAuthInterceptor(validator TokenValidator, opts AuthOptions) *AuthInterceptor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthInterceptor{
		validator: validator,
		logger:    logger,
		methods:   toSet(opts.AllowMethods),
		services:  toSet(opts.AllowServices),
	}
}

// UnaryServerInterceptor returns a gRPC unary interceptor that enforces JWT authentication.
func (ai *AuthInterceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if ai == nil || ai.validator == nil || ai.public(info.FullMethod) {
			return handler(ctx, req)
		}

		claims, err := ai.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(WithClaims(ctx, claims), req)
	}
}

// StreamServerInterceptor enforces the same rules for streaming calls.
func (ai *AuthInterceptor) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if ai == nil || ai.validator == nil || ai.public(info.FullMethod) {
			return handler(srv, ss)
		}

		claims, err := ai.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &claimsStream{ServerStream: ss, ctx: WithClaims(ss.Context(), claims)})
	}
}

func (ai *AuthInterceptor) public(fullMethod string) bool {
	if _, ok := ai.methods[fullMethod]; ok {
		return true
	}
	service, _ := splitFullMethod(fullMethod)
	_, ok := ai.services[service]
	return ok
}

func (ai *AuthInterceptor) authenticate(ctx context.Context, method string) (*security.TokenClaims, error) {
	token, err := tokenFromMetadata(ctx)
	if err != nil {
		ai.logger.Warn("gRPC authentication failed", zap.String("method", method), zap.Error(err))
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	claims, err := ai.validator.ValidateAccessToken(token)
	if err != nil {
		ai.logger.Warn("gRPC token validation failed", zap.String("method", method), zap.Error(err))
		switch {
		case errors.Is(err, usecase.ErrExpiredToken):
			return nil, status.Error(codes.Unauthenticated, "token expired")
		case errors.Is(err, usecase.ErrInvalidToken):
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		default:
			return nil, status.Error(codes.Unauthenticated, "failed to validate access token")
		}
	}
	return claims, nil
}

type claimsStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *claimsStream) Context() context.Context { return s.ctx }

// claimsContextKey stores token claims within the request context.
type claimsContextKey struct{}

// WithClaims returns a derived context containing token claims.
func WithClaims(ctx context.Context, claims *security.TokenClaims) context.Context {
	if claims == nil {
		return ctx
	}
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext extracts token claims from context when available.
func ClaimsFromContext(ctx context.Context) (*security.TokenClaims, bool) {
	if ctx == nil {
		return nil, false
	}
	claims, ok := ctx.Value(claimsContextKey{}).(*security.TokenClaims)
	return claims, ok && claims != nil
}

func tokenFromMetadata(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("missing metadata")
	}

	// metadata keys are lower-cased on the wire
	values := md.Get(authorizationKey)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return "", errors.New("authorization token required")
	}

	value := strings.TrimSpace(values[0])
	if len(value) < len(bearerPrefix) || !strings.HasPrefix(strings.ToLower(value), bearerPrefix) {
		return "", errors.New("invalid authorization header")
	}

	token := strings.TrimSpace(value[len(bearerPrefix):])
	if token == "" {
		return "", errors.New("authorization token required")
	}

	return token, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
