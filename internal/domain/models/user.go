package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is the identity record. RefreshToken holds the only refresh token
// currently accepted for rotation, or is empty when no session is active.
type User struct {
	ID               string
	Email            string
	FullName         string
	EnrollmentNumber string
	PassHash         []byte
	RefreshToken     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CheckPassword reports whether password matches the stored bcrypt hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(u.PassHash, []byte(password)) == nil
}
