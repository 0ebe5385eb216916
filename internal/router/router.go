package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // Echo web framework handles routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/movie-catalog/internal/config"
	"github.com/iliyamo/movie-catalog/internal/handler"
	"github.com/iliyamo/movie-catalog/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: the health check and the poster files. Posters are
// served without access control; anyone holding a filename can fetch it.
func RegisterRoutes(e *echo.Echo, uploadDir string, cacheCfg config.CacheConfig, rdb *redis.Client) {
	e.GET("/healthz", handler.Health, middleware.NewRedisCache(cacheCfg, rdb))
	e.Static("/uploads", uploadDir)
}

// RegisterAuth registers the auth endpoints under /api/auth and the
// token-protected /api/auth/me. The limiter wraps only the unauthenticated
// credential routes since those are the brute-force surface.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/api/auth")
	g.Use(middleware.NewTokenBucket(rlCfg, rdb))
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	e.GET("/api/auth/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterMovies registers the movie CRUD endpoints under /api/movies.
// Every route requires a valid access token; ownership checks happen in the
// repository queries, so a foreign movie id is indistinguishable from a
// missing one.
func RegisterMovies(e *echo.Echo, m *handler.MovieHandler, jwtSecret string) {
	g := e.Group("/api/movies")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.GET("", m.List)
	g.POST("", m.Create)
	g.GET("/:id", m.Get)
	g.PUT("/:id", m.Update)
	g.DELETE("/:id", m.Delete)
}
