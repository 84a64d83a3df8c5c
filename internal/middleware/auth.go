package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/accordharmony/foundation-api/internal/model"
	"github.com/accordharmony/foundation-api/internal/utils"
)

// UserSource loads the account behind a token so the middleware can
// confirm it still exists and may authenticate. The repository's user
// store satisfies it.
type UserSource interface {
	GetAnyByID(ctx context.Context, id string) (model.User, error)
}

// context keys set by Authenticate
const (
	ctxUserKey = "auth_user"
)

// Authenticate validates a Bearer access token and loads the account
// behind it into the request context. Status codes distinguish the two
// failure classes: 401 means the credential is missing, malformed,
// expired, or points at no account (the client should re-authenticate);
// 403 means the credential is fine but the account is deactivated or
// banned.
func Authenticate(secret string, users UserSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				return unauthorized(c, "Authentication required")
			}
			raw := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := utils.VerifyToken(secret, raw)
			if err != nil {
				if errors.Is(err, utils.ErrTokenExpired) {
					return unauthorized(c, "Token expired")
				}
				return unauthorized(c, "Invalid token")
			}
			if claims.Type != utils.TokenAccess {
				return unauthorized(c, "Invalid token")
			}

			u, err := users.GetAnyByID(c.Request().Context(), claims.UserID)
			if err != nil {
				return unauthorized(c, "Invalid token")
			}
			if !u.IsActive || u.IsBanned {
				return c.JSON(http.StatusForbidden, echo.Map{
					"success": false,
					"message": "Account deactivated",
				})
			}

			c.Set(ctxUserKey, u)
			c.Set("user_id", u.ID)
			return next(c)
		}
	}
}

// CurrentUser returns the authenticated account set by Authenticate.
// The bool is false on routes the middleware does not wrap.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(ctxUserKey).(model.User)
	return u, ok
}

// SetCurrentUser places an account in the request context the way
// Authenticate does, for handler tests that bypass the middleware.
func SetCurrentUser(c echo.Context, u model.User) {
	c.Set(ctxUserKey, u)
	c.Set("user_id", u.ID)
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"success": false,
		"message": msg,
	})
}
