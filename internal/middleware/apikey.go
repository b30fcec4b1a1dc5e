package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ouvidoria/ocorrencias-api/internal/repository"
)

// HeaderAPIKey carries the partner-system credential.
const HeaderAPIKey = "X-API-KEY"

// CtxSistema is the context key holding the validated repository.Sistema.
const CtxSistema = "current_sistema"

// SistemaValidator is the slice of the sistema repository the API-key chain
// needs. *repository.SistemaRepo satisfies it; its ValidateKey also touches
// the last-activity timestamp as a side effect.
type SistemaValidator interface {
	ValidateKey(ctx context.Context, apiKey string) (repository.Sistema, error)
}

// APIKeyAuth validates the X-API-KEY header against the registered partner
// systems. A missing header is 401; an unknown key and a deactivated key are
// the same 403, so callers cannot distinguish "never existed" from
// "disabled". Runs independently of the bearer chain and can be stacked
// with it on the same route.
func APIKeyAuth(sistemas SistemaValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get(HeaderAPIKey)
			if key == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing API key"})
			}
			s, err := sistemas.ValidateKey(c.Request().Context(), key)
			if err != nil {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid or inactive API key"})
			}
			c.Set(CtxSistema, s)
			return next(c)
		}
	}
}

// CurrentSistema returns the partner system stored by APIKeyAuth, or false
// when the chain did not run on this route.
func CurrentSistema(c echo.Context) (repository.Sistema, bool) {
	s, ok := c.Get(CtxSistema).(repository.Sistema)
	return s, ok
}
