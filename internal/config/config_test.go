package config

import (
	"testing"
	"time"
)

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when JWT_SECRET is empty")
	}
}

func TestLoadConfigReadsSiteSettingsAndDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", "dev")
	t.Setenv("DEFAULT_CURRENCY", "eur")
	t.Setenv("CATALOG_CACHE_TTL_SECONDS", "60")
	t.Setenv("ENABLE_METRICS", "off")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !cfg.IsDevelopment() {
		t.Fatalf("expected development env, got %q", cfg.AppEnv)
	}
	if cfg.Site.DefaultCurrency != "EUR" {
		t.Fatalf("expected EUR, got %q", cfg.Site.DefaultCurrency)
	}
	if cfg.CatalogCacheTTL != time.Minute {
		t.Fatalf("expected 1m cache ttl, got %s", cfg.CatalogCacheTTL)
	}
	if cfg.EnableMetrics {
		t.Fatalf("expected metrics disabled")
	}
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	if got := getEnvInt("SOME_INT", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
	t.Setenv("SOME_INT", "-3")
	if got := getEnvInt("SOME_INT", 7); got != 7 {
		t.Fatalf("expected fallback for negative, got %d", got)
	}
}
