package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
)

// TextGenerator is the slice of the LLM client summarization needs.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SummarizeHandler produces a short abstract of the item via the local LLM.
// Config: max_sentences (optional, default 3).
type SummarizeHandler struct {
	generator TextGenerator
}

func NewSummarizeHandler(generator TextGenerator) *SummarizeHandler {
	return &SummarizeHandler{generator: generator}
}

func (h *SummarizeHandler) ValidateConfig(config map[string]any) error {
	if _, err := maxSentences(config); err != nil {
		return err
	}
	return nil
}

func (h *SummarizeHandler) Execute(ctx context.Context, item domain.ContentItem, config map[string]any) (any, error) {
	sentences, err := maxSentences(config)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"Summarize the following content in at most %d sentences. Respond with the summary only.\n\nTitle: %s\n\n%s",
		sentences, item.Title, item.RawContent,
	)
	summary, err := h.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate summary: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, fmt.Errorf("generator returned empty summary")
	}
	return map[string]any{"summary": summary}, nil
}

func maxSentences(config map[string]any) (int, error) {
	raw, ok := config["max_sentences"]
	if !ok {
		return 3, nil
	}
	// JSON numbers decode as float64.
	switch v := raw.(type) {
	case float64:
		if v < 1 || v != float64(int(v)) {
			return 0, fmt.Errorf("max_sentences must be a positive integer, got %v", v)
		}
		return int(v), nil
	case int:
		if v < 1 {
			return 0, fmt.Errorf("max_sentences must be a positive integer, got %d", v)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("max_sentences must be a number, got %T", raw)
	}
}
