package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	APIBaseURL  string
	APIToken    string
	StudentID   string
	HTTPTimeout time.Duration
	LogLevel    string
	LogFormat   string
	// RedisURL enables answer drafts when set. Empty disables them.
	RedisURL string
	DraftTTL time.Duration
	// LiveSessionTTL is how long a gateway's claim on a session survives
	// without a refresh.
	LiveSessionTTL time.Duration

	ServerPort string
	GinMode    string
	JWTSecret  string
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins      []string
	ConnectRatePerMin   int
	ActionsPerSecond    float64
	ActionBurst         int
	SessionTickInterval time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		APIBaseURL:          strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:5000/api"), "/"),
		APIToken:            getEnv("API_TOKEN", ""),
		StudentID:           getEnv("STUDENT_ID", ""),
		HTTPTimeout:         time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "pretty"),
		RedisURL:            getEnv("REDIS_URL", ""),
		DraftTTL:            time.Duration(getEnvInt("DRAFT_TTL_MINUTES", 180)) * time.Minute,
		LiveSessionTTL:      time.Duration(getEnvInt("LIVE_SESSION_TTL_SECONDS", 30)) * time.Second,
		ServerPort:          getEnv("SERVER_PORT", "8090"),
		GinMode:             getEnv("GIN_MODE", "debug"),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		AllowedOrigins:      parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
		ConnectRatePerMin:   getEnvInt("WS_CONNECT_RATE_PER_MIN", 30),
		ActionsPerSecond:    getEnvFloat("WS_ACTIONS_PER_SECOND", 20),
		ActionBurst:         getEnvInt("WS_ACTION_BURST", 40),
		SessionTickInterval: time.Duration(getEnvInt("SESSION_TICK_MS", 1000)) * time.Millisecond,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
