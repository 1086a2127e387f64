package app

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"craftbot.io/craftbot/internal/api/handlers"
	"craftbot.io/craftbot/internal/api/middleware"
	"craftbot.io/craftbot/internal/config"
)

// Public routes that do NOT require JWT authentication.
var publicPrefixes = []string{
	"/api/v1/auth/",
	"/health/",
	"/telegram/",
}

// defaultAllowedOrigins serve the Mini App when no origins are configured.
var defaultAllowedOrigins = []string{
	"https://web.telegram.org",
	"http://localhost:5173",
}

// newRouter builds the middleware chain. Authentication runs before
// contract validation so anonymous callers get 401, not 400.
func newRouter(cfg *config.Config, server *handlers.Server, jwtCfg middleware.JWTConfig, validator gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), cors.New(buildCORSConfig(cfg)), middleware.ErrorHandler())
	router.Use(jwtSkipPublic(jwtCfg))
	if validator != nil {
		router.Use(validator)
	}

	handlers.RegisterHandlers(router, server)
	return router
}

// buildCORSConfig derives the CORS policy. A literal "*" origin is only
// honoured with UnsafeAllowAllOrigins, which also disables credentials.
func buildCORSConfig(cfg *config.Config) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: cfg.Server.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}
	if cfg.Server.UnsafeAllowAllOrigins {
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
		return cc
	}

	origins := make([]string, 0, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o == "" || o == "*" {
			continue
		}
		origins = append(origins, o)
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		origins = append(origins, defaultAllowedOrigins...)
	}
	cc.AllowOrigins = origins
	return cc
}

// jwtSkipPublic returns middleware that applies JWT auth only on non-public routes.
func jwtSkipPublic(jwtCfg middleware.JWTConfig) gin.HandlerFunc {
	jwtMw := middleware.JWTAuth(jwtCfg)
	return func(c *gin.Context) {
		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}
		jwtMw(c)
	}
}
