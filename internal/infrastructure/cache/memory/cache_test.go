package memory

import (
	"context"
	"testing"
	"time"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
)

func TestCacheSetGet(t *testing.T) {
	cache := New(time.Hour)
	ctx := context.Background()

	attempt := domain.ClassificationAttempt{Provider: "ollama", Label: "Technology", Confidence: 0.9, Succeeded: true}
	if err := cache.Set(ctx, "fp-1", attempt); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, hit, err := cache.Get(ctx, "fp-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !hit {
		t.Fatal("expected a hit")
	}
	if got.Label != "Technology" || got.Provider != "ollama" {
		t.Fatalf("got = %+v", got)
	}
}

func TestCacheMissForUnknownKey(t *testing.T) {
	cache := New(time.Hour)

	_, hit, err := cache.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if hit {
		t.Fatal("expected a miss")
	}
}

func TestCacheExpiresEntries(t *testing.T) {
	cache := New(time.Minute)
	current := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return current }
	ctx := context.Background()

	if err := cache.Set(ctx, "fp-1", domain.ClassificationAttempt{Label: "News"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	current = current.Add(59 * time.Second)
	if _, hit, _ := cache.Get(ctx, "fp-1"); !hit {
		t.Fatal("entry expired before its TTL")
	}

	current = current.Add(2 * time.Second)
	if _, hit, _ := cache.Get(ctx, "fp-1"); hit {
		t.Fatal("entry survived past its TTL")
	}
}

func TestCacheLastWriteWins(t *testing.T) {
	cache := New(time.Hour)
	ctx := context.Background()

	cache.Set(ctx, "fp-1", domain.ClassificationAttempt{Label: "Technology"})
	cache.Set(ctx, "fp-1", domain.ClassificationAttempt{Label: "News"})

	got, hit, _ := cache.Get(ctx, "fp-1")
	if !hit || got.Label != "News" {
		t.Fatalf("got = %+v, want the later write", got)
	}
}
