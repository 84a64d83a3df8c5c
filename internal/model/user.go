package model

import "time"

// User represents an application user record as stored in the
// `users` table. A user is created on registration or on first
// OAuth login and is never hard-deleted; deactivation happens via
// the IsActive flag so audit history survives.
//
// Invariant: a user carries either a password hash or an OAuth
// identity (or both after account linking). Emails are stored
// lowercased and are unique case-insensitively.
//
// Fields:
//  ID             – primary key, "usr_" prefixed.
//  Email          – unique lowercase email address.
//  EmailVerified  – true for OAuth-created accounts (provider-verified).
//  PasswordHash   – bcrypt hash; nil for OAuth-only accounts.
//  FullName       – display name.
//  OAuthProvider  – "google" or "facebook" when linked; nil otherwise.
//  OAuthID        – provider-side user id.
//  ProfilePicture – URL supplied by the OAuth provider.
//  IsActive       – whether the account may authenticate.
//  IsBanned       – suspended by an administrator.
//  LastLogin      – last successful login, nil if never.
type User struct {
	ID             string     // users.id
	Email          string     // users.email
	EmailVerified  bool       // users.email_verified
	PasswordHash   *string    // users.password_hash (nullable)
	FullName       string     // users.full_name
	OAuthProvider  *string    // users.oauth_provider (nullable)
	OAuthID        *string    // users.oauth_id (nullable)
	ProfilePicture *string    // users.profile_picture (nullable)
	IsActive       bool       // users.is_active
	IsBanned       bool       // users.is_banned
	CreatedAt      time.Time  // users.created_at
	UpdatedAt      time.Time  // users.updated_at
	LastLogin      *time.Time // users.last_login (nullable)
}
