package model

import "time"

// Session models a row in the `sessions` table: one login on one
// device. A user may hold several concurrent sessions. Logout flips
// IsActive instead of deleting the row so the audit trail survives.
//
// The raw refresh token is stored as the lookup key (the original
// design; hashing it is a hardening opportunity, not a bug). The
// access token is stored only as a SHA-256 hash.
type Session struct {
	ID              string     // sessions.id, "sess_" prefixed
	UserID          string     // sessions.user_id
	RefreshToken    string     // sessions.refresh_token (raw, lookup key)
	AccessTokenHash string     // sessions.access_token_hash (sha256 hex)
	DeviceInfo      *string    // sessions.device_info (User-Agent)
	IPAddress       *string    // sessions.ip_address
	ExpiresAt       time.Time  // sessions.expires_at (30 days from creation)
	IsActive        bool       // sessions.is_active
	CreatedAt       time.Time  // sessions.created_at
	LastUsedAt      time.Time  // sessions.last_used_at
	RevokedAt       *time.Time // sessions.revoked_at (nullable)
}
