package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"forum/internal/apperrors"
	"forum/internal/lib/sl"

	"github.com/gin-gonic/gin"
)

const (
	UserIDCtx = "user_id"

	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

type AuthService interface {
	VerifyAccessToken(ctx context.Context, accessToken string) (userID string, err error)
}

type AuthMiddlewareProvider struct {
	log     *slog.Logger
	service AuthService
}

func NewAuthMiddlewareProvider(log *slog.Logger, s AuthService) *AuthMiddlewareProvider {
	return &AuthMiddlewareProvider{
		log:     log,
		service: s,
	}
}

// AuthMiddleware verifies the access token from the accessToken cookie or
// the Authorization header and stores the user ID on the request context.
func (h *AuthMiddlewareProvider) AuthMiddleware(c *gin.Context) {
	token := AccessToken(c)
	if token == "" {
		unauthorized(c, "unauthorized request")
		return
	}

	userID, err := h.service.VerifyAccessToken(c.Request.Context(), token)
	if err != nil {
		h.log.Debug("access token rejected", sl.Err(err))
		msg, ok := apperrors.Public(err)
		if !ok {
			msg = "invalid access token"
		}
		unauthorized(c, msg)
		return
	}

	c.Set(UserIDCtx, userID)
	c.Next()
}

// UserID returns the ID of the authenticated user.
func UserID(c *gin.Context) (string, bool) {
	id := c.GetString(UserIDCtx)
	return id, id != ""
}

func AccessToken(c *gin.Context) string {
	if token, err := c.Cookie(AccessTokenCookie); err == nil && token != "" {
		return token
	}

	authHeader := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}

	return ""
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"statusCode": http.StatusUnauthorized,
		"data":       nil,
		"message":    msg,
		"success":    false,
	})
}
