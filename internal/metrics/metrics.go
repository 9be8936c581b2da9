// Package metrics exposes Prometheus collectors for the session gateway.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ai-evaluator/testtaker/internal/session"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testtaker_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "testtaker_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "testtaker_active_sessions",
			Help: "Test sessions currently attached to a WebSocket",
		},
	)

	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testtaker_submissions_total",
			Help: "Submissions sent to the Test Service",
		},
		[]string{"trigger", "outcome"},
	)

	Expirations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "testtaker_timer_expirations_total",
			Help: "Sessions whose countdown reached zero",
		},
	)

	SessionActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testtaker_ws_actions_total",
			Help: "WebSocket actions received, by action and result",
		},
		[]string{"action", "result"},
	)
)

var registerOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter, RequestDuration, ActiveSessions, Submissions, Expirations, SessionActions)
	})
}

// Middleware records request counts and latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		RequestCounter.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Listener counts expirations and submission outcomes of a session.
func Listener() session.Listener {
	return func(ev session.Event) {
		switch ev.Kind {
		case session.EventExpired:
			Expirations.Inc()
		case session.EventSubmitted:
			Submissions.WithLabelValues(ev.Trigger.String(), "success").Inc()
		case session.EventSubmitFailed:
			Submissions.WithLabelValues(ev.Trigger.String(), "failure").Inc()
		}
	}
}
