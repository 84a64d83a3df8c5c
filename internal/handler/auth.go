package handler

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/accordharmony/foundation-api/internal/auth"
	"github.com/accordharmony/foundation-api/internal/config"
	"github.com/accordharmony/foundation-api/internal/middleware"
	"github.com/accordharmony/foundation-api/internal/model"
	"github.com/accordharmony/foundation-api/internal/repository"
	"github.com/accordharmony/foundation-api/internal/utils"
)

const dbTimeout = 5 * time.Second

// UserStore is the user-repo surface the auth endpoints need.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetAnyByID(ctx context.Context, id string) (model.User, error)
	FindOrCreateOAuth(ctx context.Context, provider, providerID, email, name, picture string) (model.User, bool, error)
	UpdateLastLogin(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// SessionStore is the session-repo surface the auth endpoints need.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	FindByRefreshToken(ctx context.Context, token string) (repository.SessionWithUser, error)
	Revoke(ctx context.Context, refreshToken string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	UpdateLastUsed(ctx context.Context, id, accessTokenHash string) error
}

// AuthMailer is the email-service surface the auth endpoints need.
type AuthMailer interface {
	SendWelcome(ctx context.Context, userID, to, name string)
	SendPasswordReset(ctx context.Context, userID, to, name, token string) error
}

// Auditor records sensitive actions.
type Auditor interface {
	Create(ctx context.Context, e *model.AuditEntry) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    UserStore
	Sessions SessionStore
	Mail     AuthMailer
	Audit    Auditor
	Google   auth.Exchanger
	Facebook auth.Exchanger
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}
type oauthReq struct {
	Code string `json:"code"`
}
type resetRequestReq struct {
	Email string `json:"email"`
}
type resetConfirmReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type userPart struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	EmailVerified  bool      `json:"email_verified"`
	ProfilePicture *string   `json:"profile_picture,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func toUserPart(u model.User) userPart {
	return userPart{
		ID:             u.ID,
		Email:          u.Email,
		FullName:       u.FullName,
		EmailVerified:  u.EmailVerified,
		ProfilePicture: u.ProfilePicture,
		CreatedAt:      u.CreatedAt,
	}
}

// issueTokens creates the access/refresh pair and the backing session
// row, capturing the caller's device info and IP.
func (h *AuthHandler) issueTokens(ctx context.Context, c echo.Context, u model.User) (access, refresh string, err error) {
	access, _, err = utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Email, h.Cfg.AccessTTLMin)
	if err != nil {
		return "", "", err
	}
	refresh, refreshExp, err := utils.NewRefreshToken(h.Cfg.JWTSecret, u.ID, u.Email, h.Cfg.RefreshTTLDays)
	if err != nil {
		return "", "", err
	}

	sess := model.Session{
		UserID:          u.ID,
		RefreshToken:    refresh,
		AccessTokenHash: utils.HashToken(access),
		ExpiresAt:       refreshExp,
	}
	if ua := c.Request().UserAgent(); ua != "" {
		sess.DeviceInfo = &ua
	}
	if ip := c.RealIP(); ip != "" {
		sess.IPAddress = &ip
	}
	if err := h.Sessions.Create(ctx, &sess); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Register creates an account. The client logs in afterwards; no
// tokens are issued here.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return badRequest(c, "Valid email is required")
	}
	if len(req.Password) < 8 {
		return badRequest(c, "Password must be at least 8 characters")
	}
	if req.FullName == "" {
		return badRequest(c, "Full name is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Registration failed")
	}
	u := model.User{
		Email:        req.Email,
		PasswordHash: &hash,
		FullName:     req.FullName,
	}
	if err := h.Users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return fail(c, http.StatusConflict, "Email already registered")
		}
		return fail(c, http.StatusInternalServerError, "Registration failed")
	}

	// Courtesy mail; never blocks the registration response.
	h.Mail.SendWelcome(ctx, u.ID, u.Email, u.FullName)

	return ok(c, http.StatusCreated, "Account created", echo.Map{
		"userId":  u.ID,
		"email":   u.Email,
		"message": "Account created",
	})
}

// Login authenticates with email and password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		// unknown and deactivated accounts answer identically
		return fail(c, http.StatusUnauthorized, "Invalid credentials")
	}
	// OAuth-only accounts have no password to check.
	if u.PasswordHash == nil || !utils.VerifyPassword(*u.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "Invalid credentials")
	}
	if u.IsBanned {
		return fail(c, http.StatusForbidden, "Account deactivated")
	}

	access, refresh, err := h.issueTokens(ctx, c, u)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Login failed")
	}
	if err := h.Users.UpdateLastLogin(ctx, u.ID); err != nil {
		c.Logger().Warnf("auth: last_login update failed for %s: %v", u.ID, err)
	}
	h.auditAction(ctx, c, u.ID, model.ActionLogin)

	return ok(c, http.StatusOK, "Logged in", echo.Map{
		"user":         toUserPart(u),
		"accessToken":  access,
		"refreshToken": refresh,
	})
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token itself is not rotated; it stays valid until logout or
// expiry.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return badRequest(c, "Refresh token is required")
	}

	claims, err := utils.VerifyToken(h.Cfg.JWTSecret, req.RefreshToken)
	if err != nil || claims.Type != utils.TokenRefresh {
		return fail(c, http.StatusUnauthorized, "Invalid refresh token")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	sess, err := h.Sessions.FindByRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Invalid refresh token")
	}
	if !sess.UserActive {
		return fail(c, http.StatusForbidden, "Account deactivated")
	}

	access, _, err := utils.NewAccessToken(h.Cfg.JWTSecret, sess.UserID, sess.UserEmail, h.Cfg.AccessTTLMin)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Refresh failed")
	}
	if err := h.Sessions.UpdateLastUsed(ctx, sess.ID, utils.HashToken(access)); err != nil {
		c.Logger().Warnf("auth: session touch failed for %s: %v", sess.ID, err)
	}

	return ok(c, http.StatusOK, "Token refreshed", echo.Map{
		"accessToken": access,
		"user": echo.Map{
			"id":        sess.UserID,
			"email":     sess.UserEmail,
			"full_name": sess.UserFullName,
		},
	})
}

// Logout revokes the presented refresh token's session. Revoking an
// already-dead token still answers 200.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return badRequest(c, "Refresh token is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Sessions.Revoke(ctx, req.RefreshToken); err != nil {
		return fail(c, http.StatusInternalServerError, "Logout failed")
	}
	if claims, err := utils.VerifyToken(h.Cfg.JWTSecret, req.RefreshToken); err == nil {
		h.auditAction(ctx, c, claims.UserID, model.ActionLogout)
	}
	return ok(c, http.StatusOK, "Logged out", nil)
}

// OAuthGoogle signs a user in with a Google authorization code.
func (h *AuthHandler) OAuthGoogle(c echo.Context) error {
	return h.oauthLogin(c, h.Google)
}

// OAuthFacebook signs a user in with a Facebook authorization code.
func (h *AuthHandler) OAuthFacebook(c echo.Context) error {
	return h.oauthLogin(c, h.Facebook)
}

func (h *AuthHandler) oauthLogin(c echo.Context, ex auth.Exchanger) error {
	if ex == nil {
		return fail(c, http.StatusNotImplemented, "Provider not configured")
	}
	var req oauthReq
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return badRequest(c, "Authorization code is required")
	}

	profile, err := ex.Exchange(c.Request().Context(), req.Code)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "OAuth sign-in failed")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, created, err := h.Users.FindOrCreateOAuth(ctx,
		profile.Provider, profile.ID, strings.ToLower(profile.Email), profile.Name, profile.Picture)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "OAuth sign-in failed")
	}
	if u.IsBanned {
		return fail(c, http.StatusForbidden, "Account deactivated")
	}

	access, refresh, err := h.issueTokens(ctx, c, u)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "OAuth sign-in failed")
	}

	if created {
		h.Mail.SendWelcome(ctx, u.ID, u.Email, u.FullName)
	}
	if err := h.Users.UpdateLastLogin(ctx, u.ID); err != nil {
		c.Logger().Warnf("auth: last_login update failed for %s: %v", u.ID, err)
	}
	h.auditAction(ctx, c, u.ID, model.ActionOAuthLogin)

	return ok(c, http.StatusOK, "Logged in", echo.Map{
		"user":         toUserPart(u),
		"accessToken":  access,
		"refreshToken": refresh,
		"isNewUser":    created,
	})
}

// Me returns the authenticated account's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	u, okUser := middleware.CurrentUser(c)
	if !okUser {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}
	return ok(c, http.StatusOK, "", echo.Map{"user": toUserPart(u)})
}

// RequestPasswordReset mails a reset link. The response is the same
// whether or not the account exists, so the endpoint cannot be used
// to probe for registered emails.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req resetRequestReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return badRequest(c, "Email is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	generic := "If that email is registered, a reset link has been sent"

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil || u.PasswordHash == nil {
		return ok(c, http.StatusOK, generic, nil)
	}

	token, _, err := utils.NewResetToken(h.Cfg.JWTSecret, u.ID, u.Email)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Reset request failed")
	}
	if err := h.Mail.SendPasswordReset(ctx, u.ID, u.Email, u.FullName, token); err != nil {
		c.Logger().Errorf("auth: reset email to %s failed: %v", u.Email, err)
		return fail(c, http.StatusInternalServerError, "Reset request failed")
	}
	return ok(c, http.StatusOK, generic, nil)
}

// ConfirmPasswordReset sets a new password from a reset token and
// revokes every open session of the account.
func (h *AuthHandler) ConfirmPasswordReset(c echo.Context) error {
	var req resetConfirmReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.NewPassword) < 8 {
		return badRequest(c, "Password must be at least 8 characters")
	}

	claims, err := utils.VerifyToken(h.Cfg.JWTSecret, req.Token)
	if err != nil || claims.Type != utils.TokenReset {
		return fail(c, http.StatusUnauthorized, "Invalid or expired reset token")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Password reset failed")
	}
	if err := h.Users.UpdatePassword(ctx, claims.UserID, hash); err != nil {
		return fail(c, http.StatusInternalServerError, "Password reset failed")
	}
	if err := h.Sessions.RevokeAllForUser(ctx, claims.UserID); err != nil {
		c.Logger().Warnf("auth: session purge failed for %s: %v", claims.UserID, err)
	}
	return ok(c, http.StatusOK, "Password updated", nil)
}

func (h *AuthHandler) auditAction(ctx context.Context, c echo.Context, userID, action string) {
	if h.Audit == nil {
		return
	}
	e := model.AuditEntry{
		UserID:     &userID,
		ActionType: action,
		EntityType: "user",
		EntityID:   userID,
	}
	if ip := c.RealIP(); ip != "" {
		e.IPAddress = &ip
	}
	if ua := c.Request().UserAgent(); ua != "" {
		e.UserAgent = &ua
	}
	if err := h.Audit.Create(ctx, &e); err != nil {
		c.Logger().Warnf("audit: write failed (%s %s): %v", action, userID, err)
	}
}
