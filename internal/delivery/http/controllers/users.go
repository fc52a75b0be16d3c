package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"forum/internal/delivery/http/controllers/middleware"
	"forum/internal/domain/models"

	"github.com/gin-gonic/gin"
)

type AuthService interface {
	Register(ctx context.Context, email, password, fullName, enrollmentNumber string) (userID string, err error)
	Login(ctx context.Context, email, password string) (*models.User, *models.TokenPair, error)
	Rotate(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Revoke(ctx context.Context, userID string) error
	User(ctx context.Context, userID string) (*models.User, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	UpdateAccount(ctx context.Context, userID, fullName, email string) (*models.User, error)
}

type UserHandler struct {
	log           *slog.Logger
	auth          AuthService
	secureCookies bool
}

func NewUserHandler(log *slog.Logger, auth AuthService, secureCookies bool) *UserHandler {
	return &UserHandler{
		log:           log,
		auth:          auth,
		secureCookies: secureCookies,
	}
}

type userResponse struct {
	ID               string    `json:"_id"`
	Email            string    `json:"email"`
	FullName         string    `json:"fullName"`
	EnrollmentNumber string    `json:"enrollmentNumber"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:               u.ID,
		Email:            u.Email,
		FullName:         u.FullName,
		EnrollmentNumber: u.EnrollmentNumber,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

type tokensResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type registerRequest struct {
	EnrollmentNumber string `json:"enrollmentNumber" binding:"required"`
	Email            string `json:"email" binding:"required"`
	FullName         string `json:"fullName" binding:"required"`
	Password         string `json:"password" binding:"required"`
}

func (h *UserHandler) Register(c *gin.Context) {
	var input registerRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		abort(c, http.StatusBadRequest, "all fields are required")
		return
	}

	userID, err := h.auth.Register(c.Request.Context(), input.Email, input.Password, input.FullName, input.EnrollmentNumber)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	user, err := h.auth.User(c.Request.Context(), userID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	respond(c, http.StatusCreated, newUserResponse(user), "User registered successfully")
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	User userResponse `json:"user"`
	tokensResponse
}

func (h *UserHandler) Login(c *gin.Context) {
	var input loginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		abort(c, http.StatusBadRequest, "all fields are required")
		return
	}

	user, pair, err := h.auth.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	h.setTokenCookies(c, pair)
	respond(c, http.StatusOK, loginResponse{
		User: newUserResponse(user),
		tokensResponse: tokensResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		},
	}, "User logged in successfully")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *UserHandler) Refresh(c *gin.Context) {
	token, err := c.Cookie(middleware.RefreshTokenCookie)
	if err != nil || token == "" {
		var input refreshRequest
		if err := c.ShouldBindJSON(&input); err == nil {
			token = input.RefreshToken
		}
	}

	pair, err := h.auth.Rotate(c.Request.Context(), token)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	h.setTokenCookies(c, pair)
	respond(c, http.StatusOK, tokensResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "Access token refreshed")
}

func (h *UserHandler) Logout(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		abort(c, http.StatusUnauthorized, "unauthorized request")
		return
	}

	if err := h.auth.Revoke(c.Request.Context(), userID); err != nil {
		fail(c, h.log, err)
		return
	}

	h.clearTokenCookies(c)
	respond(c, http.StatusOK, gin.H{}, "User logged out successfully")
}

func (h *UserHandler) CurrentUser(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		abort(c, http.StatusUnauthorized, "unauthorized request")
		return
	}

	user, err := h.auth.User(c.Request.Context(), userID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	respond(c, http.StatusOK, newUserResponse(user), "Current user fetched successfully")
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		abort(c, http.StatusUnauthorized, "unauthorized request")
		return
	}

	var input changePasswordRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		abort(c, http.StatusBadRequest, "all fields are required")
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), userID, input.OldPassword, input.NewPassword); err != nil {
		fail(c, h.log, err)
		return
	}

	respond(c, http.StatusOK, gin.H{}, "Password updated successfully")
}

type updateAccountRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required"`
}

func (h *UserHandler) UpdateAccount(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		abort(c, http.StatusUnauthorized, "unauthorized request")
		return
	}

	var input updateAccountRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		abort(c, http.StatusBadRequest, "all fields are required")
		return
	}

	user, err := h.auth.UpdateAccount(c.Request.Context(), userID, input.FullName, input.Email)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	respond(c, http.StatusOK, newUserResponse(user), "Account details updated successfully")
}

func (h *UserHandler) setTokenCookies(c *gin.Context, pair *models.TokenPair) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AccessTokenCookie, pair.AccessToken, maxAge(pair.AccessExpiresAt), "/", "", h.secureCookies, true)
	c.SetCookie(middleware.RefreshTokenCookie, pair.RefreshToken, maxAge(pair.RefreshExpiresAt), "/", "", h.secureCookies, true)
}

func (h *UserHandler) clearTokenCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", h.secureCookies, true)
	c.SetCookie(middleware.RefreshTokenCookie, "", -1, "/", "", h.secureCookies, true)
}

func maxAge(expiresAt time.Time) int {
	return int(time.Until(expiresAt).Seconds())
}
