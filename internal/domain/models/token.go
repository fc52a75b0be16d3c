package models

import "time"

// TokenPair is handed to the client after login or rotation. Only the
// refresh half is persisted.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
