package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.AccessTokenTTL != time.Hour {
		t.Fatalf("expected default token ttl 1h, got %v", cfg.AccessTokenTTL)
	}
	if cfg.AllowOversell {
		t.Fatalf("oversell must default to off")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOW_OVERSELL", "true")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "15")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.Port)
	}
	if !cfg.AllowOversell {
		t.Fatalf("expected oversell enabled")
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected token ttl 15m, got %v", cfg.AccessTokenTTL)
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("bad int should fall back to default, got %d", cfg.RedisDB)
	}
}
