package ports

import (
	"context"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
)

// RuleRepository is the persistence surface for the operator-curated rule
// tables. Invariants (single fallback category, unique alias) are enforced by
// the storage layer; the snapshot builder re-validates them before serving.
type RuleRepository interface {
	LoadRuleSet(ctx context.Context) (domain.RuleSet, error)

	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, cat *domain.Category) error
	UpdateCategory(ctx context.Context, cat *domain.Category) error

	ListActions(ctx context.Context) ([]domain.Action, error)
	CreateAction(ctx context.Context, act *domain.Action) error

	ListMatchers(ctx context.Context) ([]domain.Matcher, error)
	CreateMatcher(ctx context.Context, m *domain.Matcher) error

	BindAction(ctx context.Context, binding *domain.CategoryAction) error
	UpsertAlias(ctx context.Context, alias *domain.CategoryAlias) error
}

// ContentRepository reads stored content items for batch reprocessing and
// lets the worker persist the outcome. The synchronous pipeline itself never
// touches it.
type ContentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.ContentItem, error)
	ListByRawLabel(ctx context.Context, normalizedLabel string) ([]domain.ContentItem, error)
	SaveResolution(ctx context.Context, itemID string, res domain.ResolutionResult) error
}

// SnapshotSource yields the current rule snapshot. Current fails only when no
// valid snapshot has ever been loaded.
type SnapshotSource interface {
	Current() (*domain.Snapshot, error)
}

// SnapshotReloader rebuilds the snapshot from storage and swaps it in
// atomically. A failed reload leaves the previous snapshot serving.
type SnapshotReloader interface {
	Reload(ctx context.Context) error
}

// ClassificationProvider is one external AI classifier. Implementations share
// a uniform contract: a context-bounded call returning a validated attempt or
// an error. The chain treats every error identically and advances.
type ClassificationProvider interface {
	Name() string
	Classify(ctx context.Context, req domain.ClassificationRequest) (domain.ClassificationAttempt, error)
}

// ClassificationCache stores successful attempts by content fingerprint with
// a TTL. Concurrent writes for the same fingerprint are last-write-wins.
type ClassificationCache interface {
	Get(ctx context.Context, fingerprint string) (domain.ClassificationAttempt, bool, error)
	Set(ctx context.Context, fingerprint string, attempt domain.ClassificationAttempt) error
}

// ActionHandler is one pluggable enrichment operation. ValidateConfig is
// called at snapshot load so misconfiguration is caught before execution.
type ActionHandler interface {
	Execute(ctx context.Context, item domain.ContentItem, config map[string]any) (any, error)
	ValidateConfig(config map[string]any) error
}

// HandlerRegistry maps stable handler keys to implementations. It is
// populated at startup; new actions register a key rather than modifying the
// dispatcher.
type HandlerRegistry interface {
	Resolve(key string) (ActionHandler, bool)
	Keys() []string
}

// ReprocessQueue carries newly learned aliases to the out-of-band batch
// reprocessing worker.
type ReprocessQueue interface {
	PublishAliasLearned(ctx context.Context, normalizedLabel string) error
	SubscribeAliasLearned(ctx context.Context, handler func(context.Context, string) error) error
}
