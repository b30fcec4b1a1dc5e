package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ouvidoria/ocorrencias-api/internal/config"
	"github.com/ouvidoria/ocorrencias-api/internal/handler"
	"github.com/ouvidoria/ocorrencias-api/internal/middleware"
)

// Deps carries everything route registration needs: handlers, the stores the
// guard chains read from, and the redis-backed middleware configs.
type Deps struct {
	Cfg       config.Config
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	RDB       *redis.Client

	Users    middleware.UserLookup
	Sistemas middleware.SistemaValidator

	Auth        *handler.AuthHandler
	User        *handler.UserHandler
	Ocorrencia  *handler.OcorrenciaHandler
	Parecer     *handler.ParecerHandler
	Sistema     *handler.SistemaHandler
	Tipo        *handler.TipoHandler
	Health      *handler.HealthHandler
}

// Register wires every route. Three guard chains exist: bearer (decode
// token, load user, require verified e-mail), admin (bearer plus the admin
// role), and apiKey (X-API-KEY lookup with activity touch). Chains are
// independent; the parecer create route is the one place both are stacked.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health.Check)

	bearer := []echo.MiddlewareFunc{
		middleware.Authenticate(d.Cfg.JWTSecret, d.Users),
		middleware.RequireVerified(),
	}
	admin := append(append([]echo.MiddlewareFunc{}, bearer...), middleware.RequireRole("admin"))
	apiKey := middleware.APIKeyAuth(d.Sistemas)
	limited := middleware.RateLimit(d.RateLimit, d.RDB)

	registerAuth(e, d, limited)
	registerUsers(e, d, admin, apiKey)
	registerOcorrencias(e, d, bearer, admin, apiKey)
	registerSistemas(e, d, admin)

	e.GET("/v1/tipos-ocorrencia", d.Tipo.List, middleware.CacheResponse(d.Cache, d.RDB))
}

func registerAuth(e *echo.Echo, d Deps, limited echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/register", d.Auth.Register, limited)
	g.POST("/login", d.Auth.Login, limited)
	g.POST("/refresh", d.Auth.Refresh)
	g.POST("/request-email-verification", d.Auth.RequestEmailVerification)
	g.GET("/verify-email/:token", d.Auth.VerifyEmail)
	g.POST("/request-password-reset", d.Auth.RequestPasswordReset)
	g.POST("/reset-password/:token", d.Auth.ResetPassword)

	// /v1/me needs only a decoded token and a live account, not a verified
	// e-mail: a freshly registered user may inspect their own record.
	e.GET("/v1/me", d.Auth.Me, middleware.Authenticate(d.Cfg.JWTSecret, d.Users))
}

func registerUsers(e *echo.Echo, d Deps, admin []echo.MiddlewareFunc, apiKey echo.MiddlewareFunc) {
	g := e.Group("/v1/users", admin...)
	g.GET("", d.User.List)
	g.GET("/:id", d.User.Get)
	g.PUT("/:id", d.User.Update)
	g.DELETE("/:id", d.User.Delete)

	// Partner-system existence check rides the API-key chain, not bearer.
	e.POST("/v1/users/check", d.User.Check, apiKey)
}

func registerOcorrencias(e *echo.Echo, d Deps, bearer, admin []echo.MiddlewareFunc, apiKey echo.MiddlewareFunc) {
	g := e.Group("/v1/ocorrencias", bearer...)
	g.POST("", d.Ocorrencia.Create)
	g.GET("", d.Ocorrencia.List)
	g.GET("/:id", d.Ocorrencia.Get)
	g.PUT("/:id", d.Ocorrencia.Update)
	g.GET("/:id/pareceres", d.Parecer.ListByOcorrencia)

	e.GET("/v1/ocorrencias/protocolo/:protocolo", d.Ocorrencia.GetByProtocolo, bearer...)

	// Destructive operations are admin-only.
	e.POST("/v1/ocorrencias/:id/archive", d.Ocorrencia.Archive, admin...)
	e.DELETE("/v1/ocorrencias/:id", d.Ocorrencia.Delete, admin...)

	// Partner systems file incidents through their own prefix so the two
	// guard chains never mix on one route.
	e.POST("/v1/integracao/ocorrencias", d.Ocorrencia.Create, apiKey)

	// Parecer create demands both chains: a verified admin author AND a
	// registered partner system carrying the call.
	parecerCreate := append(append([]echo.MiddlewareFunc{}, admin...), apiKey)
	e.POST("/v1/pareceres", d.Parecer.Create, parecerCreate...)
	e.GET("/v1/pareceres/:id", d.Parecer.Get, bearer...)
	e.PUT("/v1/pareceres/:id", d.Parecer.Update, admin...)
	e.DELETE("/v1/pareceres/:id", d.Parecer.Delete, admin...)
}

func registerSistemas(e *echo.Echo, d Deps, admin []echo.MiddlewareFunc) {
	g := e.Group("/v1/sistemas", admin...)
	g.POST("", d.Sistema.Create)
	g.GET("", d.Sistema.List)
	g.GET("/:id", d.Sistema.Get)
	g.PUT("/:id", d.Sistema.Update)
	g.POST("/:id/deactivate", d.Sistema.Deactivate)
	g.DELETE("/:id", d.Sistema.Delete)
}
