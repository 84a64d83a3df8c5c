package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/accordharmony/foundation-api/internal/model"
	"github.com/accordharmony/foundation-api/internal/utils"
)

const userColumns = "id, email, email_verified, password_hash, full_name, oauth_provider, oauth_id, profile_picture, is_active, is_banned, created_at, updated_at, last_login"

// UserRepo persists users. Lookups implicitly filter to active
// accounts; deactivated users are invisible to the rest of the system
// except through the is_active flag checked at authentication.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and fills in the generated id. Email is
// normalized to lowercase before insertion; a collision with the
// unique index surfaces as ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.ID = utils.NewID("usr")
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (id, email, email_verified, password_hash, full_name,
			oauth_provider, oauth_id, profile_picture, is_active, is_banned,
			created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,1,0,NOW(),NOW())`,
		u.ID, u.Email, u.EmailVerified, u.PasswordHash, u.FullName,
		u.OAuthProvider, u.OAuthID, u.ProfilePicture)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// GetByEmail fetches an active user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? AND is_active=1 LIMIT 1", email)
}

// GetByID fetches an active user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.scanOne(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? AND is_active=1 LIMIT 1", id)
}

// GetAnyByID fetches a user regardless of activity, for callers that
// must tell a deactivated account apart from a missing one.
func (r *UserRepo) GetAnyByID(ctx context.Context, id string) (model.User, error) {
	return r.scanOne(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// FindOrCreateOAuth resolves an OAuth identity to a user with the
// email-collision-wins policy:
//
//  1. an exact provider+id match returns the existing user;
//  2. otherwise an account with the same email is claimed by
//     attaching the OAuth identity to it (linking, not duplication);
//  3. otherwise a new user is created with a verified email, since
//     the provider already verified it.
//
// The returned bool is true only in case 3.
func (r *UserRepo) FindOrCreateOAuth(ctx context.Context, provider, providerID, email, name, picture string) (model.User, bool, error) {
	u, err := r.scanOne(ctx,
		"SELECT "+userColumns+" FROM users WHERE oauth_provider=? AND oauth_id=? AND is_active=1 LIMIT 1",
		provider, providerID)
	if err == nil {
		return u, false, nil
	}
	if err != ErrNotFound {
		return model.User{}, false, err
	}

	if existing, err := r.GetByEmail(ctx, email); err == nil {
		_, err = r.DB.ExecContext(ctx,
			"UPDATE users SET oauth_provider=?, oauth_id=?, profile_picture=?, updated_at=NOW() WHERE id=?",
			provider, providerID, nullable(picture), existing.ID)
		if err != nil {
			return model.User{}, false, err
		}
		linked, err := r.GetByID(ctx, existing.ID)
		return linked, false, err
	} else if err != ErrNotFound {
		return model.User{}, false, err
	}

	nu := model.User{
		Email:          email,
		EmailVerified:  true,
		FullName:       name,
		OAuthProvider:  &provider,
		OAuthID:        &providerID,
		ProfilePicture: nullable(picture),
	}
	if err := r.Create(ctx, &nu); err != nil {
		return model.User{}, false, err
	}
	created, err := r.GetByID(ctx, nu.ID)
	return created, true, err
}

// UpdateLastLogin stamps a successful login.
func (r *UserRepo) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET last_login=NOW(), updated_at=NOW() WHERE id=?", id)
	return err
}

// UpdatePassword replaces the stored credential hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=NOW() WHERE id=?", passwordHash, id)
	return err
}

func (r *UserRepo) scanOne(ctx context.Context, query string, args ...any) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Email, &u.EmailVerified, &u.PasswordHash, &u.FullName,
		&u.OAuthProvider, &u.OAuthID, &u.ProfilePicture, &u.IsActive, &u.IsBanned,
		&u.CreatedAt, &u.UpdatedAt, &u.LastLogin)
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// nullable maps "" to nil so optional columns stay NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
