package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
	"github.com/mkorchagin/content-pipeline/internal/core/ports"
)

// Store holds the current rule snapshot behind an atomic pointer. Readers do
// a single pointer load; Reload builds and validates a complete replacement
// before swapping, so a reader never observes a partially updated snapshot
// and a failed reload leaves the previous snapshot serving.
type Store struct {
	repo     ports.RuleRepository
	registry ports.HandlerRegistry
	logger   *slog.Logger

	current atomic.Pointer[domain.Snapshot]
}

func NewStore(repo ports.RuleRepository, registry ports.HandlerRegistry, logger *slog.Logger) *Store {
	return &Store{
		repo:     repo,
		registry: registry,
		logger:   logger,
	}
}

// Current returns the active snapshot. It fails only before the first
// successful Reload; the pipeline must not start in that state.
func (s *Store) Current() (*domain.Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, domain.ErrSnapshotUnavailable
	}
	return snap, nil
}

// Reload rebuilds the snapshot from the rule tables and swaps it in.
func (s *Store) Reload(ctx context.Context) error {
	rs, err := s.repo.LoadRuleSet(ctx)
	if err != nil {
		return fmt.Errorf("load rule set: %w", err)
	}

	snap, err := domain.BuildSnapshot(rs)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "build snapshot", err)
	}

	if err := s.checkBindings(snap); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "validate bindings", err)
	}

	s.current.Store(snap)
	s.logger.Info("snapshot_reloaded",
		"categories", len(rs.Categories),
		"actions", len(rs.Actions),
		"matchers", len(rs.Matchers),
		"aliases", len(rs.Aliases),
	)
	return nil
}

// checkBindings resolves every bound handler key against the registry.
// Unknown keys are warned about, not fatal: the dispatcher records them as a
// configuration mismatch per action at run time. Config validation is fatal,
// so misconfiguration is caught at load rather than during execution.
func (s *Store) checkBindings(snap *domain.Snapshot) error {
	for _, cat := range snap.Vocabulary() {
		category, ok := snap.CategoryByName(cat)
		if !ok {
			continue
		}
		for _, binding := range snap.Bindings(category.ID) {
			handler, ok := s.registry.Resolve(binding.Action.HandlerKey)
			if !ok {
				s.logger.Warn("unknown_handler_key",
					"category", category.Name,
					"action", binding.Action.Name,
					"handler_key", binding.Action.HandlerKey,
				)
				continue
			}
			if err := handler.ValidateConfig(binding.Config); err != nil {
				return fmt.Errorf("action %q config: %w", binding.Action.Name, err)
			}
		}
	}
	return nil
}
