package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
)

const keyPrefix = "classify:"

// Cache stores classification attempts in Redis so multiple pipeline
// instances share one paid-call budget. SET with TTL is idempotent for
// identical keys; concurrent writes are last-write-wins.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(addr, password string, db int, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Cache{client: client, ttl: ttl}, nil
}

func (c *Cache) Get(ctx context.Context, fingerprint string) (domain.ClassificationAttempt, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+fingerprint).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ClassificationAttempt{}, false, nil
		}
		return domain.ClassificationAttempt{}, false, fmt.Errorf("redis get: %w", err)
	}

	var attempt domain.ClassificationAttempt
	if err := json.Unmarshal(raw, &attempt); err != nil {
		// A corrupt entry is treated as a miss; the next Set overwrites it.
		return domain.ClassificationAttempt{}, false, nil
	}
	return attempt, true, nil
}

func (c *Cache) Set(ctx context.Context, fingerprint string, attempt domain.ClassificationAttempt) error {
	raw, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal cached attempt: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+fingerprint, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}
