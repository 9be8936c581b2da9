package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ai-evaluator/testtaker/internal/config"
	"github.com/ai-evaluator/testtaker/internal/handler"
	"github.com/ai-evaluator/testtaker/internal/metrics"
	"github.com/ai-evaluator/testtaker/internal/middleware"
	"github.com/ai-evaluator/testtaker/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, connectLimiter *middleware.RateLimiter, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request IDs and access logs for every route.
	router.Use(response.RequestIDMiddleware(log))
	router.Use(metrics.Middleware())

	// ─── 0. Operations ─────────────────────────────────────────────────
	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", metrics.Handler())

	// ─── 1. WebSocket Group (Rate Limited, Student Token) ─────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		connectLimiter.Middleware(),
		middleware.RequireStudentWSAuth(cfg.JWTSecret),
	)
	{
		ws.GET("/tests/:test_id/session", handlers.Session.TestSessionStream)
	}

	return router
}
