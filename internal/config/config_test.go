package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.HTTPPort != "8081" {
		t.Fatalf("HTTPPort = %q", cfg.HTTPPort)
	}
	if cfg.ReportCacheTTL != 5*time.Minute {
		t.Fatalf("ReportCacheTTL = %s", cfg.ReportCacheTTL)
	}
	if cfg.RateLimitPerMin != 120 {
		t.Fatalf("RateLimitPerMin = %d", cfg.RateLimitPerMin)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REPORT_CACHE_TTL", "90s")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("STORE_BACKEND", "memory")
	cfg := Load()
	if cfg.ReportCacheTTL != 90*time.Second {
		t.Fatalf("ReportCacheTTL = %s", cfg.ReportCacheTTL)
	}
	if cfg.RateLimitPerMin != 30 {
		t.Fatalf("RateLimitPerMin = %d", cfg.RateLimitPerMin)
	}
	if cfg.StoreBackend != "memory" {
		t.Fatalf("StoreBackend = %q", cfg.StoreBackend)
	}
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("REPORT_CACHE_TTL", "nonsense")
	cfg := Load()
	if cfg.ReportCacheTTL != 5*time.Minute {
		t.Fatalf("ReportCacheTTL = %s, want fallback", cfg.ReportCacheTTL)
	}
}
