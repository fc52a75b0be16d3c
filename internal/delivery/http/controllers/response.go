package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"forum/internal/apperrors"
	"forum/internal/lib/sl"

	"github.com/gin-gonic/gin"
)

// response is the envelope every endpoint answers with.
type response struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, response{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, response{
		StatusCode: status,
		Message:    message,
	})
}

// fail maps a service error to its status code. Only messages of known
// error kinds reach the client.
func fail(c *gin.Context, log *slog.Logger, err error) {
	status := statusFor(err)

	msg, ok := apperrors.Public(err)
	if !ok || status == http.StatusInternalServerError {
		log.Error("request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			sl.Err(err),
		)
		msg = "something went wrong"
	}

	_ = c.Error(err)
	abort(c, status, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrPersistence):
		return http.StatusInternalServerError
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
