package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
	"github.com/mkorchagin/content-pipeline/internal/core/ports"
)

const defaultProviderTimeout = 20 * time.Second

// ProviderChain calls classification providers in fixed priority order. Any
// provider failure (network, timeout, quota, unparsable response) advances to
// the next provider; only full exhaustion is reported, and even then as an
// absent result rather than an error.
type ProviderChain struct {
	providers    []ports.ClassificationProvider
	cache        ports.ClassificationCache
	callTimeout  time.Duration
	excerptRunes int
	logger       *slog.Logger
}

func NewProviderChain(
	providers []ports.ClassificationProvider,
	cache ports.ClassificationCache,
	callTimeout time.Duration,
	excerptRunes int,
	logger *slog.Logger,
) *ProviderChain {
	if callTimeout <= 0 {
		callTimeout = defaultProviderTimeout
	}
	if excerptRunes <= 0 {
		excerptRunes = 2000
	}
	return &ProviderChain{
		providers:    providers,
		cache:        cache,
		callTimeout:  callTimeout,
		excerptRunes: excerptRunes,
		logger:       logger,
	}
}

// Classify runs the chain for one item. It returns every attempt made plus
// the winning attempt, or nil when all providers were exhausted.
func (c *ProviderChain) Classify(
	ctx context.Context,
	item domain.ContentItem,
	hints []string,
	vocabulary []string,
) ([]domain.ClassificationAttempt, *domain.ClassificationAttempt) {
	fingerprint := domain.Fingerprint(item.RawContent)

	if c.cache != nil {
		cached, hit, err := c.cache.Get(ctx, fingerprint)
		if err != nil {
			c.logger.Warn("classification_cache_get_failed", "error", err)
		} else if hit {
			cached.Cached = true
			return []domain.ClassificationAttempt{cached}, &cached
		}
	}

	req := domain.ClassificationRequest{
		Title:      item.Title,
		Excerpt:    truncateRunes(item.RawContent, c.excerptRunes),
		Hints:      hints,
		Vocabulary: vocabulary,
	}

	attempts := make([]domain.ClassificationAttempt, 0, len(c.providers))
	for _, provider := range c.providers {
		attempt := c.callProvider(ctx, provider, req)
		attempts = append(attempts, attempt)
		if !attempt.Succeeded {
			c.logger.Warn("classification_provider_failed",
				"provider", provider.Name(),
				"item_id", item.ID,
				"error", attempt.Error,
			)
			continue
		}

		if c.cache != nil {
			if err := c.cache.Set(ctx, fingerprint, attempt); err != nil {
				c.logger.Warn("classification_cache_set_failed", "error", err)
			}
		}
		return attempts, &attempt
	}

	return attempts, nil
}

func (c *ProviderChain) callProvider(
	ctx context.Context,
	provider ports.ClassificationProvider,
	req domain.ClassificationRequest,
) domain.ClassificationAttempt {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	start := time.Now()
	attempt, err := provider.Classify(callCtx, req)
	attempt.Provider = provider.Name()
	attempt.Duration = time.Since(start)

	if err != nil {
		return failedAttempt(provider.Name(), attempt.Duration, err)
	}
	if err := validateAttempt(attempt); err != nil {
		return failedAttempt(provider.Name(), attempt.Duration, err)
	}
	attempt.Succeeded = true
	return attempt
}

// validateAttempt re-checks the response shape even though each provider
// validates its own parse: an unvalidated label must never reach the resolver
// as a trusted value.
func validateAttempt(attempt domain.ClassificationAttempt) error {
	if strings.TrimSpace(attempt.Label) == "" {
		return fmt.Errorf("empty label in provider response")
	}
	if attempt.Confidence < 0 || attempt.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range", attempt.Confidence)
	}
	return nil
}

func failedAttempt(provider string, duration time.Duration, err error) domain.ClassificationAttempt {
	return domain.ClassificationAttempt{
		Provider:  provider,
		Succeeded: false,
		Error:     err.Error(),
		Duration:  duration,
	}
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
