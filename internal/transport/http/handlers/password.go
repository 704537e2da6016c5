package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ResetPassword godoc
// @Summary Request a password reset
// @Description Issues a single-use reset token and hands it to the delivery channel. The token is never returned.
// @Tags Password
// @Accept json
// @Param request body PasswordResetRequest true "Reset request"
// @Success 200
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Router /auth/password-reset [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email is required"))
		return
	}

	if _, err := h.auth.InitiatePasswordReset(c.Request.Context(), req.Email); err != nil {
		respondAuthError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// UpdatePassword godoc
// @Summary Redeem a reset token
// @Description Sets a new password if the reset token matches and has not expired. Tokens are single use.
// @Tags Password
// @Accept json
// @Param request body PasswordUpdateRequest true "Update request"
// @Success 200
// @Failure 400 {object} ErrorResponse
// @Router /auth/password-update [post]
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	var req PasswordUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email, resetToken and newPassword are required"))
		return
	}

	if err := h.auth.UpdatePassword(c.Request.Context(), req.Email, req.ResetToken, req.NewPassword); err != nil {
		respondAuthError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
