package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	errUsed := New(ErrUnauthorized, "refresh token is expired or used")
	wrapped := fmt.Errorf("auth.Rotate: %w", errUsed)

	assert.ErrorIs(t, wrapped, errUsed)
	assert.ErrorIs(t, wrapped, ErrUnauthorized)
	assert.NotErrorIs(t, wrapped, ErrNotFound)

	msg, ok := Public(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "refresh token is expired or used", msg)
}

func TestPublic_Persistence(t *testing.T) {
	err := fmt.Errorf("auth.Issue: %w: %w", ErrPersistence, errors.New("connection refused"))

	assert.ErrorIs(t, err, ErrPersistence)

	_, ok := Public(err)
	assert.False(t, ok)
}
