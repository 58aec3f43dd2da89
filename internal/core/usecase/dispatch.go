package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
	"github.com/mkorchagin/content-pipeline/internal/core/ports"
)

const defaultActionTimeout = 30 * time.Second

// ActionDispatcher executes a category's bound actions strictly in
// execution_order. A later action may consume an earlier one's output, so
// ordering is a correctness requirement even while current actions are
// independent. One action's failure never aborts the rest.
type ActionDispatcher struct {
	registry      ports.HandlerRegistry
	actionTimeout time.Duration
	logger        *slog.Logger
}

func NewActionDispatcher(registry ports.HandlerRegistry, actionTimeout time.Duration, logger *slog.Logger) *ActionDispatcher {
	if actionTimeout <= 0 {
		actionTimeout = defaultActionTimeout
	}
	return &ActionDispatcher{
		registry:      registry,
		actionTimeout: actionTimeout,
		logger:        logger,
	}
}

// Dispatch runs every binding of the resolved category and aggregates the
// per-action outcomes.
func (d *ActionDispatcher) Dispatch(
	ctx context.Context,
	snap *domain.Snapshot,
	item domain.ContentItem,
	category domain.Category,
) domain.DispatchResult {
	bindings := snap.Bindings(category.ID)
	result := domain.DispatchResult{
		Total:   len(bindings),
		Records: make([]domain.ActionExecutionRecord, 0, len(bindings)),
	}

	for _, binding := range bindings {
		record := d.runAction(ctx, item, binding)
		if record.Success {
			result.Executed++
		} else {
			result.Errored++
		}
		result.Records = append(result.Records, record)
	}
	return result
}

func (d *ActionDispatcher) runAction(ctx context.Context, item domain.ContentItem, binding domain.Binding) domain.ActionExecutionRecord {
	record := domain.ActionExecutionRecord{
		ActionName: binding.Action.Name,
		HandlerKey: binding.Action.HandlerKey,
	}

	handler, ok := d.registry.Resolve(binding.Action.HandlerKey)
	if !ok {
		// A binding pointing at an unregistered key is a configuration
		// mismatch, not an execution failure.
		d.logger.Warn("action_handler_not_found",
			"action", binding.Action.Name,
			"handler_key", binding.Action.HandlerKey,
		)
		record.FailureKind = domain.FailureHandlerNotFound
		record.Error = fmt.Sprintf("no handler registered for key %q", binding.Action.HandlerKey)
		return record
	}

	actionCtx, cancel := context.WithTimeout(ctx, d.actionTimeout)
	defer cancel()

	start := time.Now()
	payload, err := executeHandler(actionCtx, handler, item, binding.Config)
	record.Duration = time.Since(start)

	if err != nil {
		record.Error = err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			record.FailureKind = domain.FailureHandlerTimeout
		} else {
			record.FailureKind = domain.FailureHandlerError
		}
		d.logger.Warn("action_failed",
			"action", binding.Action.Name,
			"handler_key", binding.Action.HandlerKey,
			"failure_kind", string(record.FailureKind),
			"error", err,
		)
		return record
	}

	record.Success = true
	record.Result = payload
	return record
}

// executeHandler isolates a panicking handler the same way a returned error
// is isolated.
func executeHandler(ctx context.Context, handler ports.ActionHandler, item domain.ContentItem, config map[string]any) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Execute(ctx, item, config)
}
