package model

import "time"

// User is an application account as stored in the `users` table.  Role
// holds one of the four role names defined in the workflow package
// (CUSTOMER, TECHNICIAN, STAFF, ADMIN); it is embedded in issued access
// tokens and drives both route-level gating and the transition policy.
type User struct {
	ID           uint64    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name,omitempty"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RefreshToken models a row in `refresh_tokens`.  Only the SHA-256 hash
// of the raw token is stored; the plain value goes back to the client.
type RefreshToken struct {
	ID        uint64     `json:"id"`
	UserID    uint64     `json:"user_id"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
