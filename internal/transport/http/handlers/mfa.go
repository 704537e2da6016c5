package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/transport/http/middleware"
)

// VerifyMFA godoc
// @Summary Complete an MFA challenge
// @Tags MFA
// @Accept json
// @Produce json
// @Param request body MFAVerifyRequest true "Verification request"
// @Success 200 {object} TokenPairResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/mfa/verify [post]
func (h *AuthHandler) VerifyMFA(c *gin.Context) {
	var req MFAVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email, mfaToken and code are required"))
		return
	}

	pair, err := h.auth.VerifyMFA(c.Request.Context(), req.Email, req.MFAToken, req.Code)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTokenPairResponse(pair))
}

// EnrollMFA godoc
// @Summary Enrol a second factor for the caller
// @Tags MFA
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body MFAEnrollRequest true "Factor to enrol: TOTP, SMS or EMAIL"
// @Success 201 {object} MFAEnrollResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /auth/mfa/enroll [post]
func (h *AuthHandler) EnrollMFA(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req MFAEnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "method is required"))
		return
	}

	enrollment, err := h.auth.EnrollMFA(c.Request.Context(), claims.UserID(), domain.MFAMethodType(req.Method))
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newMFAEnrollResponse(enrollment))
}
