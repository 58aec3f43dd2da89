package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
	"github.com/mkorchagin/content-pipeline/internal/core/ports"
)

// ReprocessUseCase re-runs the pipeline for stored items whose recorded raw
// label matches a newly learned alias. Per-item failures are logged and
// skipped; the batch keeps going.
type ReprocessUseCase struct {
	contents ports.ContentRepository
	classify *ClassifyContentUseCase
	logger   *slog.Logger
}

func NewReprocessUseCase(
	contents ports.ContentRepository,
	classify *ClassifyContentUseCase,
	logger *slog.Logger,
) *ReprocessUseCase {
	return &ReprocessUseCase{
		contents: contents,
		classify: classify,
		logger:   logger,
	}
}

// HandleAliasLearned processes one reprocess request from the queue.
func (uc *ReprocessUseCase) HandleAliasLearned(ctx context.Context, normalizedLabel string) error {
	items, err := uc.contents.ListByRawLabel(ctx, normalizedLabel)
	if err != nil {
		return fmt.Errorf("list items for label %q: %w", normalizedLabel, err)
	}

	reprocessed := 0
	for _, item := range items {
		result, err := uc.classify.Run(ctx, item)
		if err != nil {
			// Snapshot unavailability aborts the batch; anything else would
			// too, but Run only fails on invalid input or missing snapshot.
			if domain.IsKind(err, domain.ErrSnapshotUnavailable) {
				return err
			}
			uc.logger.Warn("reprocess_item_failed", "item_id", item.ID, "error", err)
			continue
		}
		if err := uc.contents.SaveResolution(ctx, item.ID, result.Resolution); err != nil {
			uc.logger.Warn("reprocess_save_failed", "item_id", item.ID, "error", err)
			continue
		}
		reprocessed++
	}

	uc.logger.Info("alias_reprocess_finished",
		"alias", normalizedLabel,
		"matched", len(items),
		"reprocessed", reprocessed,
	)
	return nil
}
