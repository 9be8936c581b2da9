package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ai-evaluator/testtaker/internal/response"
	"github.com/ai-evaluator/testtaker/internal/service"
)

// SystemHandler reports gateway health.
type SystemHandler struct {
	rdb       *redis.Client // nil when drafts are disabled
	live      *service.LiveSessionService
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(rdb *redis.Client, live *service.LiveSessionService, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		rdb:       rdb,
		live:      live,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthStatus struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	Redis          string `json:"redis"`
	ActiveSessions int    `json:"active_sessions"`
	Goroutines     int    `json:"goroutines"`
	GoVersion      string `json:"go_version"`
}

// Health godoc
// GET /health
// Returns 503 when a configured Redis is unreachable.
func (h *SystemHandler) Health(c *gin.Context) {
	status := healthStatus{
		Status:         "ok",
		Uptime:         time.Since(h.startTime).Round(time.Second).String(),
		Redis:          "disabled",
		ActiveSessions: h.live.Active(),
		Goroutines:     runtime.NumGoroutine(),
		GoVersion:      runtime.Version(),
	}

	code := http.StatusOK
	if h.rdb != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			h.log.Warn().Err(err).Msg("Redis ping failed")
			status.Status = "degraded"
			status.Redis = "unreachable"
			code = http.StatusServiceUnavailable
		} else {
			status.Redis = "ok"
		}
	}

	response.Success(c, code, status)
}
