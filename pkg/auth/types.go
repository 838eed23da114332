// Package auth provides user records and opaque API tokens. Password
// management and external identity are out of scope: the rest of the system
// only consumes "which user id is acting" through the Actor value.
package auth

import "time"

// User represents a registered account.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Actor identifies the authenticated user behind a request. It is passed by
// value into every domain operation; loosely-typed request objects never
// reach the services.
type Actor struct {
	UserID int64
}

// APIToken is an opaque bearer token. Only its SHA-256 hash is stored.
type APIToken struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	TokenHash   string     `json:"-"`
	TokenPrefix string     `json:"token_prefix"`
	Name        string     `json:"name"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
