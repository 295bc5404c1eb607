package config_test

import (
	"errors"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/iho/payengine/internal/infrastructure/config"
	"github.com/iho/payengine/internal/usecase"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("ENGINE", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL != "" {
		t.Fatalf("expected export to be disabled by default, got %q", cfg.DatabaseURL)
	}

	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default HTTP port 8080, got %s", cfg.HTTPPort)
	}

	if cfg.MaxAccounts != 10000 || cfg.MaxDisputableTransactions != 50000 || cfg.MaxProcessedIDs != 1000000 {
		t.Fatalf("unexpected default capacities: %d/%d/%d",
			cfg.MaxAccounts, cfg.MaxDisputableTransactions, cfg.MaxProcessedIDs)
	}

	if cfg.QueueSize != 1024 {
		t.Fatalf("expected default queue size 1024, got %d", cfg.QueueSize)
	}

	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("expected idempotency keys to live 24h, got %s", cfg.IdempotencyTTL)
	}
	if cfg.RedisTimeout != 5*time.Second {
		t.Fatalf("expected 5s redis timeout, got %s", cfg.RedisTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("REDIS_TX_TTL", "1h")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_TIMEOUT", "45s")
	t.Setenv("ENGINE", "sharded")
	t.Setenv("WORKERS", "3")
	t.Setenv("BOUNDED_WORKERS", "true")
	t.Setenv("MEMORY_LIMIT_MB", "64")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL != "postgres://example" {
		t.Fatalf("expected custom database URL, got %s", cfg.DatabaseURL)
	}

	if cfg.RedisURL != "redis://example" || cfg.RedisTxTTL != time.Hour {
		t.Fatalf("expected redis settings, got url=%s ttl=%s", cfg.RedisURL, cfg.RedisTxTTL)
	}

	if cfg.HTTPPort != "9090" {
		t.Fatalf("expected HTTP port override, got %s", cfg.HTTPPort)
	}

	if cfg.DatabaseTimeout != 45*time.Second {
		t.Fatalf("expected database timeout override, got %s", cfg.DatabaseTimeout)
	}

	engine, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("unexpected error building engine config: %v", err)
	}

	if engine.Variant != usecase.VariantSharded || engine.Workers != 3 || !engine.Bounded {
		t.Fatalf("unexpected engine config: %+v", engine)
	}

	if engine.MemoryLimitMB != 64 {
		t.Fatalf("expected memory limit 64, got %d", engine.MemoryLimitMB)
	}
}

func TestEngineConfigDefaultsWorkersToCPUs(t *testing.T) {
	cfg := &config.Config{Engine: "concurrent", QueueSize: 8}

	engine, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if engine.Workers != runtime.NumCPU() {
		t.Fatalf("expected %d workers, got %d", runtime.NumCPU(), engine.Workers)
	}
}

func TestEngineConfigUnknownVariant(t *testing.T) {
	cfg := &config.Config{Engine: "turbo"}

	if _, err := cfg.EngineConfig(); !errors.Is(err, usecase.ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	original := os.Getenv("HTTP_READ_TIMEOUT")
	t.Setenv("HTTP_READ_TIMEOUT", "not-a-duration")
	t.Cleanup(func() {
		t.Setenv("HTTP_READ_TIMEOUT", original)
	})

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestLoadInvalidInteger(t *testing.T) {
	t.Setenv("MAX_ACCOUNTS", "lots")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for invalid integer")
	}
}
