package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
)

// Cache is an in-process TTL cache of successful classification attempts
// keyed by content fingerprint. Suitable for single-instance deployments;
// shared deployments use the Redis cache instead.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	attempt   domain.ClassificationAttempt
	expiresAt time.Time
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

func (c *Cache) Get(_ context.Context, fingerprint string) (domain.ClassificationAttempt, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		return domain.ClassificationAttempt{}, false, nil
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, fingerprint)
		return domain.ClassificationAttempt{}, false, nil
	}
	return e.attempt, true, nil
}

// Set stores the attempt, replacing any previous entry for the fingerprint.
// Concurrent writers race benignly: last write wins.
func (c *Cache) Set(_ context.Context, fingerprint string, attempt domain.ClassificationAttempt) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[fingerprint] = entry{
		attempt:   attempt,
		expiresAt: c.now().Add(c.ttl),
	}
	// Opportunistic sweep keeps the map from accumulating dead entries on
	// write-heavy workloads without a background goroutine.
	if len(c.entries) > 1024 {
		cutoff := c.now()
		for key, e := range c.entries {
			if cutoff.After(e.expiresAt) {
				delete(c.entries, key)
			}
		}
	}
	return nil
}
