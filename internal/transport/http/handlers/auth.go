package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/usecase"
)

// AuthAPI is the slice of the authentication engine the HTTP layer drives.
type AuthAPI interface {
	Register(ctx context.Context, input usecase.RegisterInput) (*domain.TokenPair, error)
	Login(ctx context.Context, email, password string) (*domain.AuthResult, error)
	VerifyMFA(ctx context.Context, email, mfaToken, code string) (*domain.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, authorization string) error
	InitiatePasswordReset(ctx context.Context, email string) (string, error)
	UpdatePassword(ctx context.Context, email, resetToken, newPassword string) error
	EnrollMFA(ctx context.Context, userID string, method domain.MFAMethodType) (*usecase.Enrollment, error)
}

var _ AuthAPI = (*usecase.AuthService)(nil)

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	auth AuthAPI
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth AuthAPI) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login godoc
// @Summary Authenticate with email and password
// @Description Returns a token pair, or an MFA challenge token when the account has a second factor.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} TokenPairResponse
// @Success 200 {object} MFAChallengeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email and password are required"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	if result.MFARequired {
		c.JSON(http.StatusOK, MFAChallengeResponse{MFARequired: true, MFAToken: result.MFAToken})
		return
	}
	c.JSON(http.StatusOK, newTokenPairResponse(result.Tokens))
}

// Logout godoc
// @Summary End the session bound to a token
// @Description Deletes the session for the bearer token. Unknown tokens are ignored.
// @Tags Authentication
// @Param Authorization header string false "Bearer token"
// @Success 200
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), c.GetHeader("Authorization")); err != nil {
		respondAuthError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
