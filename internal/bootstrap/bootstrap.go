package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkorchagin/content-pipeline/internal/config"
	"github.com/mkorchagin/content-pipeline/internal/core/ports"
	"github.com/mkorchagin/content-pipeline/internal/core/usecase"
	"github.com/mkorchagin/content-pipeline/internal/infrastructure/actions"
	memorycache "github.com/mkorchagin/content-pipeline/internal/infrastructure/cache/memory"
	rediscache "github.com/mkorchagin/content-pipeline/internal/infrastructure/cache/redis"
	"github.com/mkorchagin/content-pipeline/internal/infrastructure/provider/ollama"
	"github.com/mkorchagin/content-pipeline/internal/infrastructure/provider/openaicompat"
	"github.com/mkorchagin/content-pipeline/internal/infrastructure/queue/nats"
	"github.com/mkorchagin/content-pipeline/internal/infrastructure/repository/postgres"
	"github.com/mkorchagin/content-pipeline/internal/infrastructure/resilience"
	"github.com/mkorchagin/content-pipeline/internal/infrastructure/seed"
	"github.com/mkorchagin/content-pipeline/internal/infrastructure/snapshot"
	"github.com/mkorchagin/content-pipeline/internal/observability/metrics"
)

// App wires the pipeline's dependencies explicitly. Construction fails when
// any dependency is unavailable or the initial rule snapshot does not
// validate: the pipeline never starts in a half-initialized state.
type App struct {
	Config  config.Config
	Metrics *metrics.PipelineMetrics

	Repo      ports.RuleRepository
	Contents  ports.ContentRepository
	Snapshots *snapshot.Store
	Queue     *nats.Queue

	ClassifyUC  *usecase.ClassifyContentUseCase
	AliasUC     *usecase.LearnAliasUseCase
	ReprocessUC *usecase.ReprocessUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, service string) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewRuleRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	contents := postgres.NewContentRepository(db)

	if cfg.SeedPath != "" {
		pack, err := seed.LoadPack(cfg.SeedPath)
		if err != nil {
			return nil, fmt.Errorf("load seed pack: %w", err)
		}
		if err := seed.Apply(ctx, repo, pack, logger); err != nil {
			return nil, fmt.Errorf("apply seed pack: %w", err)
		}
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaModel, cfg.OllamaRateLimit, executor)

	providers := []ports.ClassificationProvider{ollamaClient}
	if cfg.OpenAICompatURL != "" || cfg.OpenAICompatAPIKey != "" {
		providers = append(providers, openaicompat.New(
			cfg.OpenAICompatURL,
			cfg.OpenAICompatAPIKey,
			cfg.OpenAICompatModel,
			cfg.OpenAICompatRateLimit,
		))
	}

	var cache ports.ClassificationCache
	var closeCache func()
	switch strings.ToLower(cfg.CacheBackend) {
	case "redis":
		redisCache, err := rediscache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("init redis cache: %w", err)
		}
		cache = redisCache
		closeCache = func() { _ = redisCache.Close() }
	default:
		cache = memorycache.New(cfg.CacheTTL)
	}

	registry := actions.NewRegistry()
	registry.Register("summarize", actions.NewSummarizeHandler(ollamaClient))
	registry.Register("extract_keywords", actions.NewKeywordsHandler())
	registry.Register("webhook_notify", actions.NewWebhookHandler(cfg.WebhookTimeout))

	snapshots := snapshot.NewStore(repo, registry, logger)
	if err := snapshots.Reload(ctx); err != nil {
		return nil, fmt.Errorf("load initial snapshot: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init reprocess queue: %w", err)
	}

	chain := usecase.NewProviderChain(providers, cache, cfg.ProviderTimeout, cfg.ExcerptMaxRunes, logger)
	dispatcher := usecase.NewActionDispatcher(registry, cfg.ActionTimeout, logger)
	classifyUC := usecase.NewClassifyContentUseCase(snapshots, chain, dispatcher, logger)
	aliasUC := usecase.NewLearnAliasUseCase(repo, snapshots, queue, logger)
	reprocessUC := usecase.NewReprocessUseCase(contents, classifyUC, logger)

	return &App{
		Config:  cfg,
		Metrics: metrics.NewPipelineMetrics(service),

		Repo:      repo,
		Contents:  contents,
		Snapshots: snapshots,
		Queue:     queue,

		ClassifyUC:  classifyUC,
		AliasUC:     aliasUC,
		ReprocessUC: reprocessUC,

		closeFn: func() {
			queue.Close()
			if closeCache != nil {
				closeCache()
			}
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
