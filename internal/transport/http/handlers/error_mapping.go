package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/digital-bank-auth/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
// An empty Message exposes the error text itself, which is only safe for validation errors.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// authErrorCases covers every error the authentication engine returns to callers.
var authErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidInput, Status: http.StatusBadRequest},
	{Err: usecase.ErrConflict, Status: http.StatusConflict},
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
	{Err: usecase.ErrUserDisabled, Status: http.StatusForbidden, Message: "account is not active"},
	{Err: usecase.ErrExpiredToken, Status: http.StatusUnauthorized, Message: "token expired"},
	{Err: usecase.ErrInvalidToken, Status: http.StatusUnauthorized, Message: "invalid token"},
	{Err: usecase.ErrInvalidMFACode, Status: http.StatusUnauthorized, Message: "invalid mfa code"},
	{Err: usecase.ErrInvalidOrExpiredToken, Status: http.StatusBadRequest, Message: "invalid or expired reset token"},
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil || !errors.Is(err, cs.Err) {
			continue
		}
		msg := cs.Message
		if msg == "" {
			msg = exposedMessage(err)
		}
		c.JSON(cs.Status, NewErrorResponse(c, msg))
		return
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

func exposedMessage(err error) string {
	var conflict *usecase.ConflictError
	if errors.As(err, &conflict) {
		return conflict.Error()
	}
	return err.Error()
}

func respondAuthError(c *gin.Context, err error) {
	RespondWithMappedError(c, err, authErrorCases, http.StatusInternalServerError, "internal server error")
}
