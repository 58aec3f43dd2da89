package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
	"github.com/mkorchagin/content-pipeline/internal/core/ports"
)

// LearnAliasUseCase binds an unrecognized raw label to a primary category.
// A duplicate alias is an update, not a constraint violation. Learning an
// alias may additionally enqueue a batch reprocess of stored items that
// carried the raw label; that path is out-of-band and never blocks the
// synchronous resolution flow.
type LearnAliasUseCase struct {
	repo      ports.RuleRepository
	snapshots interface {
		ports.SnapshotSource
		ports.SnapshotReloader
	}
	queue  ports.ReprocessQueue
	logger *slog.Logger
}

func NewLearnAliasUseCase(
	repo ports.RuleRepository,
	snapshots interface {
		ports.SnapshotSource
		ports.SnapshotReloader
	},
	queue ports.ReprocessQueue,
	logger *slog.Logger,
) *LearnAliasUseCase {
	return &LearnAliasUseCase{
		repo:      repo,
		snapshots: snapshots,
		queue:     queue,
		logger:    logger,
	}
}

func (uc *LearnAliasUseCase) LearnAlias(
	ctx context.Context,
	rawLabel string,
	categoryID string,
	threshold float64,
	reprocess bool,
) (*domain.CategoryAlias, error) {
	normalized := domain.NormalizeAlias(rawLabel)
	if normalized == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "learn alias", errors.New("raw label is empty"))
	}
	if threshold < 0 || threshold > 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "learn alias", fmt.Errorf("threshold %v out of range", threshold))
	}

	snap, err := uc.snapshots.Current()
	if err != nil {
		return nil, domain.WrapError(domain.ErrSnapshotUnavailable, "learn alias", err)
	}
	target, ok := snap.CategoryByID(categoryID)
	if !ok || !target.Active {
		return nil, domain.WrapError(domain.ErrNotFound, "learn alias", fmt.Errorf("active category %s", categoryID))
	}

	now := time.Now().UTC()
	alias := &domain.CategoryAlias{
		ID:         uuid.NewString(),
		Alias:      normalized,
		CategoryID: categoryID,
		Threshold:  threshold,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.repo.UpsertAlias(ctx, alias); err != nil {
		return nil, fmt.Errorf("upsert alias: %w", err)
	}

	if err := uc.snapshots.Reload(ctx); err != nil {
		// The alias is durable; the stale snapshot keeps serving until the
		// next successful reload.
		uc.logger.Warn("snapshot_reload_after_alias_failed", "alias", normalized, "error", err)
	}

	if reprocess && uc.queue != nil {
		if err := uc.queue.PublishAliasLearned(ctx, normalized); err != nil {
			uc.logger.Warn("alias_reprocess_enqueue_failed", "alias", normalized, "error", err)
		}
	}

	uc.logger.Info("alias_learned",
		"alias", normalized,
		"category", target.Name,
		"reprocess", reprocess,
	)
	return alias, nil
}
