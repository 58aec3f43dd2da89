package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.APIPort != "8080" {
		t.Fatalf("expected default API port 8080, got %s", cfg.APIPort)
	}
	if cfg.NATSSubject != "aliases.learned" {
		t.Fatalf("unexpected default NATS subject: %s", cfg.NATSSubject)
	}
	if cfg.CacheBackend != "memory" {
		t.Fatalf("expected memory cache backend by default, got %s", cfg.CacheBackend)
	}
	if cfg.ProviderTimeout != 20*time.Second {
		t.Fatalf("unexpected provider timeout: %v", cfg.ProviderTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PROVIDER_TIMEOUT_SECONDS", "5")
	t.Setenv("OLLAMA_RATE_LIMIT_RPS", "0.5")
	t.Setenv("CACHE_BACKEND", "redis")

	cfg := Load()
	if cfg.ProviderTimeout != 5*time.Second {
		t.Fatalf("expected 5s provider timeout, got %v", cfg.ProviderTimeout)
	}
	if cfg.OllamaRateLimit != 0.5 {
		t.Fatalf("expected 0.5 rps, got %v", cfg.OllamaRateLimit)
	}
	if cfg.CacheBackend != "redis" {
		t.Fatalf("expected redis backend, got %s", cfg.CacheBackend)
	}
}

func TestLoadIgnoresUnparsableNumbers(t *testing.T) {
	t.Setenv("EXCERPT_MAX_RUNES", "not-a-number")

	cfg := Load()
	if cfg.ExcerptMaxRunes != 2000 {
		t.Fatalf("expected fallback excerpt limit, got %d", cfg.ExcerptMaxRunes)
	}
}
