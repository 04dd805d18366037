package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"SWEEP_ENABLED", "SWEEP_INTERVAL_SECONDS", "SWEEP_LOCK_TTL_SECONDS", "PAPER_CACHE_TTL_MINUTES", "ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if !cfg.SweepEnabled {
		t.Fatalf("sweep should be enabled by default")
	}
	if cfg.SweepInterval != time.Minute {
		t.Fatalf("expected 1m sweep interval, got %v", cfg.SweepInterval)
	}
	if cfg.SweepLockTTL != 2*time.Minute {
		t.Fatalf("expected 2m lock ttl, got %v", cfg.SweepLockTTL)
	}
	if cfg.PaperCacheTTL != 30*time.Minute {
		t.Fatalf("expected 30m paper ttl, got %v", cfg.PaperCacheTTL)
	}
	if cfg.AllowedOrigins != nil {
		t.Fatalf("expected allow-all origins, got %v", cfg.AllowedOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SWEEP_ENABLED", "false")
	t.Setenv("SWEEP_INTERVAL_SECONDS", "15")
	t.Setenv("SWEEP_LOCK_TTL_SECONDS", "bogus")
	t.Setenv("ALLOWED_ORIGINS", " https://cbt.sch.id , ,http://localhost:5173")

	cfg := Load()
	if cfg.SweepEnabled {
		t.Fatalf("expected sweep disabled")
	}
	if cfg.SweepInterval != 15*time.Second {
		t.Fatalf("expected 15s, got %v", cfg.SweepInterval)
	}
	if cfg.SweepLockTTL != 2*time.Minute {
		t.Fatalf("invalid value should fall back, got %v", cfg.SweepLockTTL)
	}
	want := []string{"https://cbt.sch.id", "http://localhost:5173"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.AllowedOrigins)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, cfg.AllowedOrigins)
		}
	}
}

func TestCacheKeys(t *testing.T) {
	if got := CacheKey.ExamPaperKey("e1"); got != "exam:e1:paper" {
		t.Fatalf("unexpected paper key %q", got)
	}
	if got := CacheKey.SweepLockKey(); got != "lock:auto_submit_sweep" {
		t.Fatalf("unexpected lock key %q", got)
	}
}
