package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ContentItem is the read-only input to the pipeline. It is supplied by the
// content store; the pipeline never writes it back.
type ContentItem struct {
	ID           string `json:"id"`
	URL          string `json:"url,omitempty"`
	Title        string `json:"title"`
	RawContent   string `json:"raw_content"`
	SourceDomain string `json:"source_domain,omitempty"`
}

// Fingerprint is a stable hash of the item's text, used as the
// classification cache key.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

type RunState string

const (
	StateCaptured             RunState = "captured"
	StateHinted               RunState = "hinted"
	StateClassified           RunState = "classified"
	StateClassificationFailed RunState = "classification_failed"
	StateResolved             RunState = "resolved"
	StateDispatched           RunState = "dispatched"
	StateCompleted            RunState = "completed"
	StatePartiallyFailed      RunState = "partially_failed"
)

// ClassificationRequest is the provider-facing payload: the item's title, a
// length-bounded excerpt, matcher hints, and the closed category vocabulary.
type ClassificationRequest struct {
	Title      string   `json:"title"`
	Excerpt    string   `json:"excerpt"`
	Hints      []string `json:"hints,omitempty"`
	Vocabulary []string `json:"vocabulary"`
}

// ClassificationAttempt records one provider call, successful or not.
type ClassificationAttempt struct {
	Provider   string        `json:"provider"`
	Label      string        `json:"label,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Reasoning  string        `json:"reasoning,omitempty"`
	Succeeded  bool          `json:"succeeded"`
	Cached     bool          `json:"cached,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

type ResolutionTier string

const (
	TierExact    ResolutionTier = "exact"
	TierAlias    ResolutionTier = "alias"
	TierFallback ResolutionTier = "fallback"
)

// Fixed per-tier confidences. The provider's raw confidence stays on the
// attempt record for operator visibility.
const (
	ExactConfidence    = 1.0
	AliasConfidence    = 0.9
	FallbackConfidence = 0.5
)

// ResolutionResult describes how a raw label became a primary category.
type ResolutionResult struct {
	Category   Category       `json:"category"`
	Tier       ResolutionTier `json:"tier"`
	Confidence float64        `json:"confidence"`
	RawLabel   string         `json:"raw_label,omitempty"`
}

type ActionFailureKind string

const (
	FailureHandlerError    ActionFailureKind = "handler_error"
	FailureHandlerTimeout  ActionFailureKind = "handler_timeout"
	FailureHandlerNotFound ActionFailureKind = "handler_not_found"
)

// ActionExecutionRecord is the per-action outcome inside a dispatch.
type ActionExecutionRecord struct {
	ActionName  string            `json:"action_name"`
	HandlerKey  string            `json:"handler_key"`
	Success     bool              `json:"success"`
	Result      any               `json:"result,omitempty"`
	FailureKind ActionFailureKind `json:"failure_kind,omitempty"`
	Error       string            `json:"error,omitempty"`
	Duration    time.Duration     `json:"duration_ns"`
}

// DispatchResult aggregates one category's action run.
type DispatchResult struct {
	Total    int                     `json:"total"`
	Executed int                     `json:"executed"`
	Errored  int                     `json:"errored"`
	Records  []ActionExecutionRecord `json:"records"`
}

// PipelineResult is the structured outcome of one item's run. The caller
// decides whether and where to persist it.
type PipelineResult struct {
	RunID      string                  `json:"run_id"`
	ItemID     string                  `json:"item_id"`
	State      RunState                `json:"state"`
	Hints      []string                `json:"hints,omitempty"`
	Attempts   []ClassificationAttempt `json:"attempts,omitempty"`
	Resolution ResolutionResult        `json:"resolution"`
	Dispatch   DispatchResult          `json:"dispatch"`
	StartedAt  time.Time               `json:"started_at"`
	Duration   time.Duration           `json:"duration_ns"`
}
