package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/transport/http/middleware"
	"github.com/arklim/digital-bank-auth/internal/usecase"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response carrying the request's trace ID.
func NewErrorResponse(c *gin.Context, msg string) ErrorResponse {
	return ErrorResponse{Error: msg, TraceID: middleware.GetTraceID(c)}
}

// RegisterRequest defines the account registration payload.
type RegisterRequest struct {
	Username string  `json:"username" binding:"required"`
	Email    string  `json:"email" binding:"required"`
	Password string  `json:"password" binding:"required"`
	FullName string  `json:"fullName" binding:"required"`
	Phone    *string `json:"phone"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenPairResponse is returned whenever a session is issued or refreshed.
type TokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
}

// MFAChallengeResponse is returned when a login needs a second factor.
type MFAChallengeResponse struct {
	MFARequired bool   `json:"mfaRequired"`
	MFAToken    string `json:"mfaToken"`
}

// RefreshRequest represents the payload to refresh an access token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// MFAVerifyRequest completes an MFA challenge.
type MFAVerifyRequest struct {
	Email    string `json:"email" binding:"required"`
	MFAToken string `json:"mfaToken" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

// MFAEnrollRequest selects the factor to enrol.
type MFAEnrollRequest struct {
	Method string `json:"method" binding:"required"`
}

// MFAEnrollResponse describes a freshly enrolled factor. Secret and OTPAuthURL are set for TOTP only.
type MFAEnrollResponse struct {
	ID         string `json:"id"`
	Method     string `json:"method"`
	Secret     string `json:"secret,omitempty"`
	OTPAuthURL string `json:"otpauthUrl,omitempty"`
}

// PasswordResetRequest starts a password reset.
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

// PasswordUpdateRequest redeems a reset token.
type PasswordUpdateRequest struct {
	Email       string `json:"email" binding:"required"`
	ResetToken  string `json:"resetToken" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func newTokenPairResponse(pair *domain.TokenPair) TokenPairResponse {
	tokenType := pair.TokenType
	if tokenType == "" {
		tokenType = domain.TokenTypeBearer
	}
	return TokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    tokenType,
	}
}

func newMFAEnrollResponse(enrollment *usecase.Enrollment) MFAEnrollResponse {
	return MFAEnrollResponse{
		ID:         enrollment.Method.ID,
		Method:     string(enrollment.Method.Method),
		Secret:     enrollment.Secret,
		OTPAuthURL: enrollment.ProvisioningURL,
	}
}
