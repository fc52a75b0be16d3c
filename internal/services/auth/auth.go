package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"forum/internal/apperrors"
	"forum/internal/config"
	"forum/internal/domain/models"
	"forum/internal/lib/jwt"
	"forum/internal/lib/sl"
	"forum/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

// Auth is the token authority: it verifies credentials and issues, rotates
// and revokes access/refresh token pairs. Each user has at most one active
// refresh token, the one persisted on the user record.
type Auth struct {
	logger         *slog.Logger
	userSaver      UserSaver
	userProvider   UserProvider
	sessionStore   SessionStore
	accountUpdater AccountUpdater
	tokens         config.TokenConfig
}

type UserSaver interface {
	SaveUser(
		ctx context.Context,
		user models.User,
	) (uid string, err error)
}

type UserProvider interface {
	User(
		ctx context.Context,
		email string,
	) (user *models.User, err error)
	UserByID(
		ctx context.Context,
		userID string,
	) (user *models.User, err error)
}

type SessionStore interface {
	SaveRefreshToken(ctx context.Context, userID string, token string) error
	SwapRefreshToken(ctx context.Context, userID string, oldToken, newToken string) error
	UnsetRefreshToken(ctx context.Context, userID string) error
}

type AccountUpdater interface {
	UpdatePassword(ctx context.Context, userID string, passHash []byte) error
	UpdateAccount(ctx context.Context, userID string, fullName, email string) (*models.User, error)
}

var (
	ErrFieldsRequired       = apperrors.New(apperrors.ErrValidation, "all fields are required")
	ErrUserNotFound         = apperrors.New(apperrors.ErrNotFound, "user not found, kindly register")
	ErrUserAlreadyExists    = apperrors.New(apperrors.ErrConflict, "user with this email already exists")
	ErrInvalidCredentials   = apperrors.New(apperrors.ErrUnauthorized, "incorrect password")
	ErrIncorrectOldPassword = apperrors.New(apperrors.ErrUnauthorized, "incorrect old password")
	ErrTokenRequired        = apperrors.New(apperrors.ErrUnauthorized, "unauthorized request")
	ErrInvalidRefreshToken  = apperrors.New(apperrors.ErrUnauthorized, "invalid refresh token")
	ErrRefreshTokenUsed     = apperrors.New(apperrors.ErrUnauthorized, "refresh token is expired or used")
	ErrInvalidAccessToken   = apperrors.New(apperrors.ErrUnauthorized, "invalid access token")
)

// New returns a new instance of the Auth service.
func New(
	logger *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	sessionStore SessionStore,
	accountUpdater AccountUpdater,
	tokens config.TokenConfig,
) *Auth {
	return &Auth{
		logger:         logger,
		userSaver:      userSaver,
		userProvider:   userProvider,
		sessionStore:   sessionStore,
		accountUpdater: accountUpdater,
		tokens:         tokens,
	}
}

// Register creates a user with a bcrypt-hashed password and returns its ID.
func (a *Auth) Register(
	ctx context.Context,
	email string,
	password string,
	fullName string,
	enrollmentNumber string,
) (userID string, err error) {
	const op = "auth.Register"
	log := a.logger.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	log.Info("register request")

	if blank(email, password, fullName, enrollmentNumber) {
		return "", fmt.Errorf("%s: %w", op, ErrFieldsRequired)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	userID, err = a.userSaver.SaveUser(ctx, models.User{
		Email:            email,
		FullName:         fullName,
		EnrollmentNumber: enrollmentNumber,
		PassHash:         passHash,
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists", sl.Err(err))
			return "", fmt.Errorf("%s: %w", op, ErrUserAlreadyExists)
		}
		log.Error("failed to save user", sl.Err(err))
		return "", persistence(op, err)
	}

	log.Info("user registered", slog.String("userID", userID))

	return userID, nil
}

// VerifyCredentials checks email and password and returns the user's ID.
func (a *Auth) VerifyCredentials(ctx context.Context, email, password string) (string, error) {
	const op = "auth.VerifyCredentials"

	user, err := a.authenticate(ctx, op, email, password)
	if err != nil {
		return "", err
	}

	return user.ID, nil
}

// Login verifies credentials and issues a fresh token pair. Any session the
// user had before is replaced.
func (a *Auth) Login(
	ctx context.Context,
	email string,
	password string,
) (*models.User, *models.TokenPair, error) {
	const op = "auth.Login"
	log := a.logger.With(slog.String("op", op))

	user, err := a.authenticate(ctx, op, email, password)
	if err != nil {
		return nil, nil, err
	}

	pair, err := a.mintPair(user.ID)
	if err != nil {
		log.Error("failed to generate tokens", sl.Err(err))
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.sessionStore.SaveRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		log.Error("failed to save refresh token", sl.Err(err))
		return nil, nil, persistence(op, err)
	}

	log.Info("user logged in", slog.String("userID", user.ID))

	return user, pair, nil
}

// Issue mints a token pair for an existing user and persists the refresh
// half, overwriting the previous one.
func (a *Auth) Issue(ctx context.Context, userID string) (*models.TokenPair, error) {
	const op = "auth.Issue"
	log := a.logger.With(slog.String("op", op), slog.String("userID", userID))

	if _, err := a.userProvider.UserByID(ctx, userID); err != nil {
		log.Error("failed to load user", sl.Err(err))
		return nil, persistence(op, err)
	}

	pair, err := a.mintPair(userID)
	if err != nil {
		log.Error("failed to generate tokens", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.sessionStore.SaveRefreshToken(ctx, userID, pair.RefreshToken); err != nil {
		log.Error("failed to save refresh token", sl.Err(err))
		return nil, persistence(op, err)
	}

	log.Info("tokens issued")

	return pair, nil
}

// Rotate exchanges the user's current refresh token for a new pair. A token
// that is not the persisted one (stale, already rotated, or revoked) is
// rejected and the persisted token stays as it was.
func (a *Auth) Rotate(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	const op = "auth.Rotate"
	log := a.logger.With(slog.String("op", op))
	log.Info("refresh request")

	if refreshToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenRequired)
	}

	claims, err := jwt.ParseToken(refreshToken, jwt.TypeRefresh, a.tokens.RefreshSecret)
	if err != nil {
		log.Warn("invalid refresh token", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
	}

	log = log.With(slog.String("userID", claims.UID))

	user, err := a.userProvider.UserByID(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
		}
		log.Error("failed to get user", sl.Err(err))
		return nil, persistence(op, err)
	}

	if subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(refreshToken)) != 1 {
		log.Warn("refresh token does not match the active session")
		return nil, fmt.Errorf("%s: %w", op, ErrRefreshTokenUsed)
	}

	pair, err := a.mintPair(user.ID)
	if err != nil {
		log.Error("failed to generate tokens", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.sessionStore.SwapRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken); err != nil {
		if errors.Is(err, storage.ErrTokenMismatch) {
			log.Warn("refresh token rotated concurrently", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, ErrRefreshTokenUsed)
		}
		log.Error("failed to rotate refresh token", sl.Err(err))
		return nil, persistence(op, err)
	}

	log.Info("tokens refreshed")

	return pair, nil
}

// Revoke ends the user's session. Revoking a user without a session is a
// no-op.
func (a *Auth) Revoke(ctx context.Context, userID string) error {
	const op = "auth.Revoke"
	log := a.logger.With(slog.String("op", op), slog.String("userID", userID))

	if err := a.sessionStore.UnsetRefreshToken(ctx, userID); err != nil {
		log.Error("failed to unset refresh token", sl.Err(err))
		return persistence(op, err)
	}

	log.Info("session revoked")

	return nil
}

// VerifyAccessToken returns the user ID an access token was issued to. It
// never touches storage.
func (a *Auth) VerifyAccessToken(_ context.Context, accessToken string) (string, error) {
	const op = "auth.VerifyAccessToken"

	if accessToken == "" {
		return "", fmt.Errorf("%s: %w", op, ErrTokenRequired)
	}

	claims, err := jwt.ParseToken(accessToken, jwt.TypeAccess, a.tokens.AccessSecret)
	if err != nil {
		a.logger.Debug("invalid access token", slog.String("op", op), sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, ErrInvalidAccessToken)
	}

	return claims.UID, nil
}

// User returns the user with the given ID.
func (a *Auth) User(ctx context.Context, userID string) (*models.User, error) {
	const op = "auth.User"

	user, err := a.userProvider.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		a.logger.Error("failed to get user", slog.String("op", op), sl.Err(err))
		return nil, persistence(op, err)
	}

	return user, nil
}

// ChangePassword replaces the password after checking the old one. The
// active session is kept.
func (a *Auth) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	const op = "auth.ChangePassword"
	log := a.logger.With(slog.String("op", op), slog.String("userID", userID))

	if blank(oldPassword, newPassword) {
		return fmt.Errorf("%s: %w", op, ErrFieldsRequired)
	}

	user, err := a.User(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !user.CheckPassword(oldPassword) {
		log.Warn("incorrect old password")
		return fmt.Errorf("%s: %w", op, ErrIncorrectOldPassword)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.accountUpdater.UpdatePassword(ctx, userID, passHash); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		log.Error("failed to update password", sl.Err(err))
		return persistence(op, err)
	}

	log.Info("password updated")

	return nil
}

// UpdateAccount changes the user's full name and email.
func (a *Auth) UpdateAccount(ctx context.Context, userID, fullName, email string) (*models.User, error) {
	const op = "auth.UpdateAccount"
	log := a.logger.With(slog.String("op", op), slog.String("userID", userID))

	if blank(fullName, email) {
		return nil, fmt.Errorf("%s: %w", op, ErrFieldsRequired)
	}

	user, err := a.accountUpdater.UpdateAccount(ctx, userID, fullName, email)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUserExists):
			return nil, fmt.Errorf("%s: %w", op, ErrUserAlreadyExists)
		case errors.Is(err, storage.ErrUserNotFound):
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		log.Error("failed to update account", sl.Err(err))
		return nil, persistence(op, err)
	}

	log.Info("account updated")

	return user, nil
}

func (a *Auth) authenticate(ctx context.Context, op, email, password string) (*models.User, error) {
	log := a.logger.With(slog.String("op", op))
	log.Info("login request", slog.String("email", email))

	if blank(email, password) {
		return nil, fmt.Errorf("%s: %w", op, ErrFieldsRequired)
	}

	user, err := a.userProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		log.Error("failed to get user", sl.Err(err))
		return nil, persistence(op, err)
	}

	if !user.CheckPassword(password) {
		log.Warn("invalid password", slog.String("userID", user.ID))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return user, nil
}

func (a *Auth) mintPair(userID string) (*models.TokenPair, error) {
	access, accessExp, err := jwt.GenerateToken(userID, jwt.TypeAccess, a.tokens.AccessSecret, a.tokens.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}

	refresh, refreshExp, err := jwt.GenerateToken(userID, jwt.TypeRefresh, a.tokens.RefreshSecret, a.tokens.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, apperrors.ErrPersistence, err)
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
