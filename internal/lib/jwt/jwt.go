package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrWrongTokenType = errors.New("wrong token type")
	ErrEmptyToken     = errors.New("empty token")
)

// Claims binds a token to a user identity. ID (jti) is random, so two tokens
// minted for the same user within the same second still differ.
type Claims struct {
	UID  string `json:"uid"`
	Type string `json:"token_type"`
	jwt.RegisteredClaims
}

// GenerateToken creates an HS256 token of the given type for userID.
func GenerateToken(
	userID string,
	tokenType string,
	secret string,
	duration time.Duration,
) (token string, expiresAt time.Time, err error) {
	now := time.Now()
	expiresAt = now.Add(duration)

	t := jwt.NewWithClaims(
		jwt.SigningMethodHS256,
		Claims{
			UID:  userID,
			Type: tokenType,
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   userID,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
		})

	token, err = t.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// ParseToken validates signature, expiry and token type, returning the claims.
func ParseToken(tokenString string, tokenType string, secret string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrEmptyToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.Type != tokenType {
		return nil, fmt.Errorf("%w: expected %q, got %q", ErrWrongTokenType, tokenType, claims.Type)
	}

	if claims.UID == "" {
		return nil, fmt.Errorf("invalid token: missing uid")
	}

	return claims, nil
}
