package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ai-evaluator/testtaker/internal/config"
	"github.com/ai-evaluator/testtaker/internal/database"
	"github.com/ai-evaluator/testtaker/internal/draft"
	"github.com/ai-evaluator/testtaker/internal/handler"
	"github.com/ai-evaluator/testtaker/internal/logger"
	"github.com/ai-evaluator/testtaker/internal/metrics"
	"github.com/ai-evaluator/testtaker/internal/middleware"
	"github.com/ai-evaluator/testtaker/internal/router"
	"github.com/ai-evaluator/testtaker/internal/service"
	"github.com/ai-evaluator/testtaker/internal/session"
	"github.com/ai-evaluator/testtaker/internal/testservice"
	"github.com/ai-evaluator/testtaker/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("api", cfg.APIBaseURL).
		Str("log_level", cfg.LogLevel).
		Msg("Starting test session gateway")

	// ─── Initialize Validator & Metrics ────────────────────────────────
	validator.Setup()
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to Redis (optional) ───────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	var drafts *draft.Store
	if rdb != nil {
		defer rdb.Close()
		drafts = draft.NewStore(rdb, cfg.DraftTTL, log)
	}

	// ─── Initialize Services ──────────────────────────────────────────
	api := testservice.New(cfg.APIBaseURL,
		testservice.WithTimeout(cfg.HTTPTimeout),
		testservice.WithLogger(log),
	)
	live := service.NewLiveSessionService(rdb, cfg.LiveSessionTTL)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(
			func(token string) session.Service { return api.WithBearer(token) },
			live,
			drafts,
			handler.SessionHandlerConfig{
				AllowedOrigins:   cfg.AllowedOrigins,
				TickInterval:     cfg.SessionTickInterval,
				ActionsPerSecond: cfg.ActionsPerSecond,
				ActionBurst:      cfg.ActionBurst,
			},
			log,
		),
		System: handler.NewSystemHandler(rdb, live, log),
	}

	connectLimiter := middleware.NewRateLimiter(cfg.ConnectRatePerMin, time.Minute)
	defer connectLimiter.Stop()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, connectLimiter, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// Hijacked WebSocket connections are not tracked by Shutdown; open
	// sessions end when the process exits and resume from their drafts.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
