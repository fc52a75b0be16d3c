package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestGenerateAndParse(t *testing.T) {
	t.Parallel()

	token, expiresAt, err := GenerateToken("user-1", TypeAccess, secret, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, time.Second)

	claims, err := ParseToken(token, TypeAccess, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestGenerateToken_Unique(t *testing.T) {
	t.Parallel()

	first, _, err := GenerateToken("user-1", TypeRefresh, secret, time.Hour)
	require.NoError(t, err)
	second, _, err := GenerateToken("user-1", TypeRefresh, secret, time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestParseToken_FailCases(t *testing.T) {
	t.Parallel()

	expired, _, err := GenerateToken("user-1", TypeRefresh, secret, -time.Second)
	require.NoError(t, err)

	refresh, _, err := GenerateToken("user-1", TypeRefresh, secret, time.Hour)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UID:  "user-1",
		Type: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name      string
		token     string
		tokenType string
		secret    string
		target    error
	}{
		{name: "Empty token", token: "", tokenType: TypeRefresh, secret: secret, target: ErrEmptyToken},
		{name: "Expired token", token: expired, tokenType: TypeRefresh, secret: secret, target: jwt.ErrTokenExpired},
		{name: "Wrong secret", token: refresh, tokenType: TypeRefresh, secret: "other", target: jwt.ErrTokenSignatureInvalid},
		{name: "Wrong type", token: refresh, tokenType: TypeAccess, secret: secret, target: ErrWrongTokenType},
		{name: "Malformed", token: "not.a.jwt", tokenType: TypeRefresh, secret: secret, target: jwt.ErrTokenMalformed},
		{name: "Unsigned", token: noneToken, tokenType: TypeRefresh, secret: secret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseToken(tt.token, tt.tokenType, tt.secret)
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}
