package response

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// ContextKeyRequestID is the Gin context key for the request ID.
	ContextKeyRequestID = "request_id"
	// ContextKeyLogger is the Gin context key for the request-scoped logger.
	ContextKeyLogger = "logger"
)

// RequestIDMiddleware tags every request with an ID, echoes it in the
// X-Request-ID header and logs the request once it completes.
func RequestIDMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		reqLog := log.With().Str("request_id", reqID).Logger()

		c.Set(ContextKeyRequestID, reqID)
		c.Set(ContextKeyLogger, reqLog)
		c.Header("X-Request-ID", reqID)

		start := time.Now()
		c.Next()

		reqLog.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	}
}

// Logger returns the request-scoped logger, or a disabled one when the
// middleware is not installed.
func Logger(c *gin.Context) zerolog.Logger {
	if v, ok := c.Get(ContextKeyLogger); ok {
		if l, ok := v.(zerolog.Logger); ok {
			return l
		}
	}
	return zerolog.Nop()
}
