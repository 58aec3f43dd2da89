package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
	"github.com/mkorchagin/content-pipeline/internal/core/ports"
)

// ClassifyContentUseCase runs one item through the full pipeline:
// hints -> provider chain -> tiered resolution -> ordered action dispatch.
//
// A classification failure is never terminal: it degrades to a fallback-tier
// resolution and the item still reaches dispatch. The only fatal condition is
// an unavailable rule snapshot, since there is no safe default to dispatch
// against.
type ClassifyContentUseCase struct {
	snapshots  ports.SnapshotSource
	chain      *ProviderChain
	dispatcher *ActionDispatcher
	logger     *slog.Logger
}

func NewClassifyContentUseCase(
	snapshots ports.SnapshotSource,
	chain *ProviderChain,
	dispatcher *ActionDispatcher,
	logger *slog.Logger,
) *ClassifyContentUseCase {
	return &ClassifyContentUseCase{
		snapshots:  snapshots,
		chain:      chain,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (uc *ClassifyContentUseCase) Run(ctx context.Context, item domain.ContentItem) (*domain.PipelineResult, error) {
	if strings.TrimSpace(item.ID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "classify content", errors.New("item id is required"))
	}
	if strings.TrimSpace(item.Title) == "" && strings.TrimSpace(item.RawContent) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "classify content", errors.New("item has neither title nor content"))
	}

	snap, err := uc.snapshots.Current()
	if err != nil {
		return nil, domain.WrapError(domain.ErrSnapshotUnavailable, "classify content", err)
	}

	start := time.Now()
	result := &domain.PipelineResult{
		RunID:     uuid.NewString(),
		ItemID:    item.ID,
		State:     domain.StateCaptured,
		StartedAt: start.UTC(),
	}

	result.Hints = GenerateHints(snap, item)
	result.State = domain.StateHinted

	attempts, winner := uc.chain.Classify(ctx, item, result.Hints, snap.Vocabulary())
	result.Attempts = attempts

	rawLabel := ""
	if winner != nil {
		rawLabel = winner.Label
		result.State = domain.StateClassified
	} else {
		result.State = domain.StateClassificationFailed
		uc.logger.Info("classification_exhausted",
			"item_id", item.ID,
			"providers_tried", len(attempts),
		)
	}

	result.Resolution = ResolveLabel(snap, rawLabel)
	result.State = domain.StateResolved

	result.Dispatch = uc.dispatcher.Dispatch(ctx, snap, item, result.Resolution.Category)
	result.State = domain.StateDispatched

	if result.Dispatch.Errored > 0 {
		result.State = domain.StatePartiallyFailed
	} else {
		result.State = domain.StateCompleted
	}
	result.Duration = time.Since(start)

	uc.logger.Info("pipeline_run_finished",
		"run_id", result.RunID,
		"item_id", item.ID,
		"state", string(result.State),
		"category", result.Resolution.Category.Name,
		"tier", string(result.Resolution.Tier),
		"actions_executed", result.Dispatch.Executed,
		"actions_errored", result.Dispatch.Errored,
		"duration_ms", float64(result.Duration.Microseconds())/1000.0,
	)
	return result, nil
}
