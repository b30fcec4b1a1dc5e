// Package middleware contains the reusable HTTP guards: the bearer-token
// user chain, the X-API-KEY partner-system chain, and the Redis-backed rate
// limit and response cache. The two auth chains are independent and a route
// may stack both; each one either aborts the request with its own status or
// passes control down unchanged.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ouvidoria/ocorrencias-api/internal/repository"
	"github.com/ouvidoria/ocorrencias-api/internal/utils"
)

// Context keys set by Authenticate for downstream handlers.
const (
	CtxUser   = "current_user" // repository.User
	CtxUserID = "user_id"      // uint64
	CtxRole   = "role"         // string
)

// UserLookup is the slice of the user repository the bearer chain needs.
// *repository.UserRepo satisfies it.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (repository.User, error)
}

// Authenticate validates the Bearer access token, loads the subject user and
// stores it in the request context under CtxUser/CtxUserID/CtxRole. Decode
// failures, refresh tokens presented on the access path, and subjects that
// no longer exist all answer 401 with the same body, so a caller cannot
// probe which check tripped.
func Authenticate(secret string, users UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			u, err := users.GetByEmail(c.Request().Context(), claims.Subject)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(CtxUser, u)
			c.Set(CtxUserID, u.ID)
			c.Set(CtxRole, u.Role)
			return next(c)
		}
	}
}

// RequireVerified rejects authenticated users that have not confirmed their
// e-mail address yet. Must run after Authenticate.
func RequireVerified() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := c.Get(CtxUser).(repository.User)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			if !u.IsEmailVerified {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "email not verified"})
			}
			return next(c)
		}
	}
}

// CurrentUser returns the authenticated user stored by Authenticate, or
// false when the chain did not run on this route.
func CurrentUser(c echo.Context) (repository.User, bool) {
	u, ok := c.Get(CtxUser).(repository.User)
	return u, ok
}
