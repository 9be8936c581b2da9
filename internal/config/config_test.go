package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("DRAFT_TTL_MINUTES", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("LIVE_SESSION_TTL_SECONDS", "")

	cfg := Load()
	if cfg.APIBaseURL != "http://localhost:5000/api" {
		t.Fatalf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.DraftTTL != 3*time.Hour {
		t.Fatalf("DraftTTL = %v", cfg.DraftTTL)
	}
	if cfg.AllowedOrigins != nil {
		t.Fatalf("AllowedOrigins = %v, want nil", cfg.AllowedOrigins)
	}
	if cfg.LiveSessionTTL != 30*time.Second {
		t.Fatalf("LiveSessionTTL = %v", cfg.LiveSessionTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://evaluator.example.com/api/")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "5")
	t.Setenv("SESSION_TICK_MS", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example.com, ,https://b.example.com ")

	cfg := Load()
	if cfg.APIBaseURL != "https://evaluator.example.com/api" {
		t.Fatalf("APIBaseURL = %q, trailing slash should be trimmed", cfg.APIBaseURL)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Fatalf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if cfg.SessionTickInterval != time.Second {
		t.Fatalf("SessionTickInterval = %v, want fallback", cfg.SessionTickInterval)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestStudentDraftKey(t *testing.T) {
	got := CacheKey.StudentDraftKey("s1", "t9")
	if got != "student:s1:test:t9:draft" {
		t.Fatalf("StudentDraftKey = %q", got)
	}
}
