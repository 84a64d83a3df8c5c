package repository

import (
	"context"
	"database/sql"

	"github.com/accordharmony/foundation-api/internal/model"
	"github.com/accordharmony/foundation-api/internal/utils"
)

// SessionRepo tracks refresh tokens and their device context. The raw
// refresh token is the lookup key; only the access token is stored
// hashed.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// SessionWithUser bundles a session row with the account fields the
// refresh flow needs, fetched in one round trip.
type SessionWithUser struct {
	model.Session
	UserEmail    string
	UserFullName string
	UserActive   bool
}

func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	s.ID = utils.NewID("sess")
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, refresh_token, access_token_hash,
			device_info, ip_address, is_active, created_at, last_used_at, expires_at)
		 VALUES (?,?,?,?,?,?,1,NOW(),NOW(),?)`,
		s.ID, s.UserID, s.RefreshToken, s.AccessTokenHash,
		s.DeviceInfo, s.IPAddress, s.ExpiresAt)
	return err
}

// FindByRefreshToken returns the active, unexpired session matching
// the raw token, joined with the owning user. The user's activity flag
// is returned rather than filtered so the caller can distinguish a
// deactivated account from an unknown token.
func (r *SessionRepo) FindByRefreshToken(ctx context.Context, token string) (SessionWithUser, error) {
	var sw SessionWithUser
	err := r.DB.QueryRowContext(ctx,
		`SELECT s.id, s.user_id, s.refresh_token, s.access_token_hash,
			s.device_info, s.ip_address, s.is_active, s.created_at, s.last_used_at,
			s.expires_at, s.revoked_at,
			u.email, u.full_name, u.is_active
		 FROM sessions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.refresh_token = ? AND s.is_active = 1 AND s.expires_at > NOW()
		 LIMIT 1`, token).Scan(
		&sw.ID, &sw.UserID, &sw.RefreshToken, &sw.AccessTokenHash,
		&sw.DeviceInfo, &sw.IPAddress, &sw.IsActive, &sw.CreatedAt, &sw.LastUsedAt,
		&sw.ExpiresAt, &sw.RevokedAt,
		&sw.UserEmail, &sw.UserFullName, &sw.UserActive)
	if err == sql.ErrNoRows {
		return SessionWithUser{}, ErrNotFound
	}
	return sw, err
}

// Revoke deactivates a single session. Revoking an already-revoked or
// unknown token is not an error.
func (r *SessionRepo) Revoke(ctx context.Context, refreshToken string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET is_active=0, revoked_at=NOW() WHERE refresh_token=? AND is_active=1",
		refreshToken)
	return err
}

// RevokeAllForUser kills every active session of a user, used after a
// password reset.
func (r *SessionRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET is_active=0, revoked_at=NOW() WHERE user_id=? AND is_active=1",
		userID)
	return err
}

// UpdateLastUsed refreshes the session after a token refresh and
// records the new access token hash.
func (r *SessionRepo) UpdateLastUsed(ctx context.Context, id, accessTokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET last_used_at=NOW(), access_token_hash=? WHERE id=?",
		accessTokenHash, id)
	return err
}
