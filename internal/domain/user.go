package domain

import "time"

// User represents an authenticated account. Every container and favorite
// is scoped to its owning user; there is no sharing model.
type User struct {
	Syncable
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash,omitempty"` // Stored hashed, filter from API responses
	DisplayName  string    `json:"display_name"`
	LastLoginAt  time.Time `json:"last_login_at,omitzero"`

	// Refresh token state, hashed. Rotated on every refresh.
	RefreshTokenHash      string    `json:"refresh_token_hash,omitempty"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at,omitzero"`
}
