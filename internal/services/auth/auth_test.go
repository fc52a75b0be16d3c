package auth_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"forum/internal/apperrors"
	"forum/internal/config"
	"forum/internal/lib/handlers/slogdiscard"
	"forum/internal/lib/jwt"
	"forum/internal/services/auth"
	"forum/internal/storage/sqlite"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passDefaultLen = 10

var tokenConfig = config.TokenConfig{
	AccessSecret:  "access-secret",
	AccessTTL:     time.Minute,
	RefreshSecret: "refresh-secret",
	RefreshTTL:    time.Hour,
}

type suite struct {
	ctx     context.Context
	auth    *auth.Auth
	storage *sqlite.Storage
}

func newSuite(t *testing.T) *suite {
	t.Helper()
	t.Parallel()

	storage, err := sqlite.New(filepath.Join(t.TempDir(), "forum.db"))
	require.NoError(t, err)
	require.NoError(t, storage.Migrate())
	t.Cleanup(func() { _ = storage.Close() })

	return &suite{
		ctx:     context.Background(),
		auth:    auth.New(slogdiscard.NewDiscardLogger(), storage, storage, storage, storage, tokenConfig),
		storage: storage,
	}
}

func (s *suite) register(t *testing.T, email, password string) string {
	t.Helper()

	id, err := s.auth.Register(s.ctx, email, password, gofakeit.Name(), gofakeit.Numerify("EN######"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	return id
}

func randomPassword() string {
	return gofakeit.Password(true, true, true, true, false, passDefaultLen)
}

func TestEndToEndSession(t *testing.T) {
	s := newSuite(t)

	registered := s.register(t, "a@x.com", "p")

	id, err := s.auth.VerifyCredentials(s.ctx, "a@x.com", "p")
	require.NoError(t, err)
	assert.Equal(t, registered, id)

	first, err := s.auth.Issue(s.ctx, id)
	require.NoError(t, err)

	second, err := s.auth.Rotate(s.ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = s.auth.Rotate(s.ctx, first.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	require.NoError(t, s.auth.Revoke(s.ctx, id))

	_, err = s.auth.Rotate(s.ctx, second.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestIssue_VerifyAccessToken(t *testing.T) {
	s := newSuite(t)
	id := s.register(t, gofakeit.Email(), randomPassword())

	pair, err := s.auth.Issue(s.ctx, id)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(tokenConfig.AccessTTL), pair.AccessExpiresAt, time.Second)
	assert.WithinDuration(t, time.Now().Add(tokenConfig.RefreshTTL), pair.RefreshExpiresAt, time.Second)

	got, err := s.auth.VerifyAccessToken(s.ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	user, err := s.storage.UserByID(s.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, user.RefreshToken)
}

func TestIssue_UnknownUser(t *testing.T) {
	s := newSuite(t)

	_, err := s.auth.Issue(s.ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrPersistence)
}

func TestVerifyAccessToken_FailCases(t *testing.T) {
	s := newSuite(t)
	id := s.register(t, gofakeit.Email(), randomPassword())

	pair, err := s.auth.Issue(s.ctx, id)
	require.NoError(t, err)

	expired, _, err := jwt.GenerateToken(id, jwt.TypeAccess, tokenConfig.AccessSecret, -time.Second)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "Empty token", token: ""},
		{name: "Garbage", token: "not-a-token"},
		{name: "Refresh token presented as access", token: pair.RefreshToken},
		{name: "Expired", token: expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.auth.VerifyAccessToken(s.ctx, tt.token)
			require.ErrorIs(t, err, apperrors.ErrUnauthorized)
		})
	}
}

func TestRotate_Concurrent(t *testing.T) {
	s := newSuite(t)
	id := s.register(t, gofakeit.Email(), randomPassword())

	first, err := s.auth.Issue(s.ctx, id)
	require.NoError(t, err)
	second, err := s.auth.Rotate(s.ctx, first.RefreshToken)
	require.NoError(t, err)

	const callers = 2

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.auth.Rotate(s.ctx, second.RefreshToken)
		}()
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, apperrors.ErrUnauthorized):
			rejected++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
}

func TestRotate_FailedAttemptKeepsSession(t *testing.T) {
	s := newSuite(t)
	id := s.register(t, gofakeit.Email(), randomPassword())

	first, err := s.auth.Issue(s.ctx, id)
	require.NoError(t, err)
	second, err := s.auth.Rotate(s.ctx, first.RefreshToken)
	require.NoError(t, err)

	_, err = s.auth.Rotate(s.ctx, first.RefreshToken)
	require.ErrorIs(t, err, auth.ErrRefreshTokenUsed)

	user, err := s.storage.UserByID(s.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, second.RefreshToken, user.RefreshToken)

	_, err = s.auth.Rotate(s.ctx, second.RefreshToken)
	require.NoError(t, err)
}

func TestRotate_ExpiredButPersisted(t *testing.T) {
	s := newSuite(t)
	id := s.register(t, gofakeit.Email(), randomPassword())

	expired, _, err := jwt.GenerateToken(id, jwt.TypeRefresh, tokenConfig.RefreshSecret, -time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.storage.SaveRefreshToken(s.ctx, id, expired))

	_, err = s.auth.Rotate(s.ctx, expired)
	require.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRotate_FailCases(t *testing.T) {
	s := newSuite(t)
	id := s.register(t, gofakeit.Email(), randomPassword())

	pair, err := s.auth.Issue(s.ctx, id)
	require.NoError(t, err)

	foreignSecret, _, err := jwt.GenerateToken(id, jwt.TypeRefresh, "other-secret", time.Hour)
	require.NoError(t, err)

	unknownUser, _, err := jwt.GenerateToken("missing", jwt.TypeRefresh, tokenConfig.RefreshSecret, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name        string
		token       string
		expectedErr error
	}{
		{name: "Empty refresh token", token: "", expectedErr: auth.ErrTokenRequired},
		{name: "Invalid refresh token", token: "invalid-token-that-does-not-exist", expectedErr: auth.ErrInvalidRefreshToken},
		{name: "Access token presented as refresh", token: pair.AccessToken, expectedErr: auth.ErrInvalidRefreshToken},
		{name: "Signed with another secret", token: foreignSecret, expectedErr: auth.ErrInvalidRefreshToken},
		{name: "Unknown user", token: unknownUser, expectedErr: auth.ErrInvalidRefreshToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.auth.Rotate(s.ctx, tt.token)
			require.ErrorIs(t, err, tt.expectedErr)
			require.ErrorIs(t, err, apperrors.ErrUnauthorized)
		})
	}
}

func TestLogin_ReplacesPreviousSession(t *testing.T) {
	s := newSuite(t)
	email, password := gofakeit.Email(), randomPassword()
	id := s.register(t, email, password)

	user, firstDevice, err := s.auth.Login(s.ctx, email, password)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)

	_, secondDevice, err := s.auth.Login(s.ctx, email, password)
	require.NoError(t, err)

	_, err = s.auth.Rotate(s.ctx, firstDevice.RefreshToken)
	require.ErrorIs(t, err, auth.ErrRefreshTokenUsed)

	_, err = s.auth.Rotate(s.ctx, secondDevice.RefreshToken)
	require.NoError(t, err)
}

func TestRevoke_Idempotent(t *testing.T) {
	s := newSuite(t)
	id := s.register(t, gofakeit.Email(), randomPassword())

	require.NoError(t, s.auth.Revoke(s.ctx, id))
	require.NoError(t, s.auth.Revoke(s.ctx, id))

	pair, err := s.auth.Issue(s.ctx, id)
	require.NoError(t, err)
	require.NoError(t, s.auth.Revoke(s.ctx, id))

	_, err = s.auth.Rotate(s.ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestVerifyCredentials_FailCases(t *testing.T) {
	s := newSuite(t)
	email, password := gofakeit.Email(), randomPassword()
	s.register(t, email, password)

	tests := []struct {
		name        string
		email       string
		password    string
		expectedErr error
		kind        error
	}{
		{
			name:        "Empty password",
			email:       email,
			password:    "",
			expectedErr: auth.ErrFieldsRequired,
			kind:        apperrors.ErrValidation,
		},
		{
			name:        "Empty email",
			email:       "",
			password:    password,
			expectedErr: auth.ErrFieldsRequired,
			kind:        apperrors.ErrValidation,
		},
		{
			name:        "Unknown email",
			email:       gofakeit.Email(),
			password:    password,
			expectedErr: auth.ErrUserNotFound,
			kind:        apperrors.ErrNotFound,
		},
		{
			name:        "Wrong password",
			email:       email,
			password:    randomPassword(),
			expectedErr: auth.ErrInvalidCredentials,
			kind:        apperrors.ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.auth.VerifyCredentials(s.ctx, tt.email, tt.password)
			require.ErrorIs(t, err, tt.expectedErr)
			require.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestRegister_FailCases(t *testing.T) {
	s := newSuite(t)
	email := gofakeit.Email()
	s.register(t, email, randomPassword())

	_, err := s.auth.Register(s.ctx, email, randomPassword(), gofakeit.Name(), "EN1")
	require.ErrorIs(t, err, auth.ErrUserAlreadyExists)
	require.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = s.auth.Register(s.ctx, gofakeit.Email(), randomPassword(), "", "EN1")
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestChangePassword(t *testing.T) {
	s := newSuite(t)
	email, password := gofakeit.Email(), randomPassword()
	id := s.register(t, email, password)

	err := s.auth.ChangePassword(s.ctx, id, randomPassword(), "new-password")
	require.ErrorIs(t, err, auth.ErrIncorrectOldPassword)

	err = s.auth.ChangePassword(s.ctx, id, password, "")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	require.NoError(t, s.auth.ChangePassword(s.ctx, id, password, "new-password"))

	_, err = s.auth.VerifyCredentials(s.ctx, email, password)
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	got, err := s.auth.VerifyCredentials(s.ctx, email, "new-password")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	err = s.auth.ChangePassword(s.ctx, "missing", password, "x")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateAccount(t *testing.T) {
	s := newSuite(t)
	id := s.register(t, gofakeit.Email(), randomPassword())
	taken := gofakeit.Email()
	s.register(t, taken, randomPassword())

	email := gofakeit.Email()
	user, err := s.auth.UpdateAccount(s.ctx, id, "Jane Doe", email)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", user.FullName)
	assert.Equal(t, email, user.Email)

	_, err = s.auth.UpdateAccount(s.ctx, id, "Jane Doe", taken)
	require.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = s.auth.UpdateAccount(s.ctx, id, "", email)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = s.auth.User(s.ctx, "missing")
	require.ErrorIs(t, err, auth.ErrUserNotFound)
}
