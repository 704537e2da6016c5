package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/digital-bank-auth/internal/infra/security"
	"github.com/arklim/digital-bank-auth/internal/usecase"
)

const claimsKey = "claims"

// ErrorResponse matches handlers.ErrorResponse.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, msg string) ErrorResponse {
	return ErrorResponse{Error: msg, TraceID: GetTraceID(c)}
}

// AccessTokenValidator validates bearer access tokens.
type AccessTokenValidator interface {
	ValidateAccessToken(token string) (*security.TokenClaims, error)
}

// ResourceFunc names the resource a request touches so the guard can check ownership.
type ResourceFunc func(*gin.Context) usecase.Resource

// OwnResource is used for endpoints that act on the caller's own account.
func OwnResource(name string) ResourceFunc {
	return func(c *gin.Context) usecase.Resource {
		return usecase.Resource{Name: name}
	}
}

// RequireAccess validates the bearer access token and applies the authorization guard.
func RequireAccess(validator AccessTokenValidator, resource ResourceFunc) gin.HandlerFunc {
	return requireAccess(validator, resource, time.Now)
}

func requireAccess(validator AccessTokenValidator, resource ResourceFunc, now func() time.Time) gin.HandlerFunc {
	if resource == nil {
		resource = OwnResource("")
	}

	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "missing bearer token"))
			return
		}

		claims, err := validator.ValidateAccessToken(token)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrExpiredToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "token expired"))
			case errors.Is(err, usecase.ErrInvalidToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "invalid token"))
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, newErrorResponse(c, "authentication failed"))
			}
			return
		}

		decision := usecase.Authorize(claims, resource(c), now())
		if !decision.Allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, newErrorResponse(c, decision.Reason))
			return
		}

		c.Set(claimsKey, claims)
		c.Set(UserIDKey, claims.UserID())
		GetRequestContext(c).UserID = claims.UserID()

		c.Next()
	}
}

// ClaimsFromContext returns the claims stored by RequireAccess.
func ClaimsFromContext(c *gin.Context) (*security.TokenClaims, bool) {
	raw, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := raw.(*security.TokenClaims)
	return claims, ok && claims != nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
