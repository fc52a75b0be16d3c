package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"forum/internal/apperrors"
	"forum/internal/lib/handlers/slogdiscard"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuth struct {
	tokens map[string]string
}

func (s stubAuth) VerifyAccessToken(_ context.Context, token string) (string, error) {
	if id, ok := s.tokens[token]; ok {
		return id, nil
	}
	return "", apperrors.New(apperrors.ErrUnauthorized, "invalid access token")
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", append(handlers, func(c *gin.Context) {
		id, _ := UserID(c)
		c.String(http.StatusOK, id)
	})...)
	return r
}

func TestAuthMiddleware(t *testing.T) {
	provider := NewAuthMiddlewareProvider(slogdiscard.NewDiscardLogger(), stubAuth{tokens: map[string]string{
		"cookie-token": "user-1",
		"header-token": "user-2",
	}})
	r := newEngine(provider.AuthMiddleware)

	tests := []struct {
		name   string
		cookie string
		header string
		status int
		userID string
	}{
		{name: "Cookie", cookie: "cookie-token", status: http.StatusOK, userID: "user-1"},
		{name: "Bearer header", header: "Bearer header-token", status: http.StatusOK, userID: "user-2"},
		{name: "Cookie wins over header", cookie: "cookie-token", header: "Bearer header-token", status: http.StatusOK, userID: "user-1"},
		{name: "No token", status: http.StatusUnauthorized},
		{name: "Unknown token", cookie: "other", status: http.StatusUnauthorized},
		{name: "Header without scheme", header: "header-token", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.userID, rec.Body.String())
			}
		})
	}
}

func TestRateLimiter_PerClient(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2)
	r := newEngine(limiter.Middleware)

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":12345"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2"))
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	r := newEngine(LoggingMiddleware(slogdiscard.NewDiscardLogger()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "fixed-id")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", rec.Header().Get(RequestIDHeader))
}

func TestUserID_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := UserID(c)
	assert.False(t, ok)
}
