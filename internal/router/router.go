package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/studycafe-seat-pass/internal/config"
	"github.com/iliyamo/studycafe-seat-pass/internal/handler"
	"github.com/iliyamo/studycafe-seat-pass/internal/middleware"
)

// Deps is everything the routes need.  Redis may be nil, in which case the
// response cache, the rate limiter and the deny list are all skipped.
type Deps struct {
	JWTSecret string
	Auth      *handler.AuthHandler
	Passes    *handler.PassHandler
	Seats     *handler.SeatHandler
	Deny      *middleware.TokenDenylist
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
}

// RegisterRoutes registers non-authenticated routes on the provided Echo instance.
// At the moment it only exposes a health check endpoint.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// Register mounts every endpoint of the cafe API.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e)
	RegisterAuth(e, d)
	RegisterCafe(e, d)
}

// RegisterAuth registers signup, login and token management.  Signup and
// login live at the top level; token exchange lives under /v1/auth.
func RegisterAuth(e *echo.Echo, d Deps) {
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis)

	e.POST("/signup", d.Auth.Signup, limit)
	e.POST("/login", d.Auth.Login, limit)

	g := e.Group("/v1/auth", limit)
	// Rotates the refresh token.
	g.POST("/refresh", d.Auth.Refresh)
	// Accepts either a refresh_token body or a bearer token; no JWT middleware.
	g.POST("/logout", d.Auth.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(d.JWTSecret, d.Deny), limit)
	auth.GET("/me", d.Auth.Me)
}

// RegisterCafe registers the pass and seat endpoints.  The catalog is
// public and cached; everything else needs a member token.  The limiter
// runs after JWTAuth so per-user strategies see the member id.
func RegisterCafe(e *echo.Echo, d Deps) {
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis)

	e.GET("/passes", d.Passes.Catalog, limit, middleware.NewRedisCache(d.Cache, d.Redis))

	// Root-level paths take the middleware per route; a "" group would
	// put JWTAuth in front of every unknown path.
	member := []echo.MiddlewareFunc{middleware.JWTAuth(d.JWTSecret, d.Deny), limit}
	e.POST("/purchase", d.Passes.Purchase, member...)
	e.GET("/user/passes", d.Passes.MyPasses, member...)
	e.GET("/seat/status", d.Seats.Status, member...)
	e.POST("/seat", d.Seats.CheckIn, member...)
	e.POST("/leave", d.Seats.Leave, member...)
}
