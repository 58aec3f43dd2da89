package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
	"github.com/mkorchagin/content-pipeline/internal/infrastructure/resilience"
)

// Client classifies content against a local Ollama instance. It is the
// first-priority provider in the chain: retried and circuit-broken via the
// resilience executor, rate-limited so bursts of items cannot saturate the
// model server.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

func New(baseURL, model string, requestsPerSecond float64, executor *resilience.Executor) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		executor:   executor,
	}
}

func (c *Client) Name() string { return "ollama" }

type classificationPayload struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

func (c *Client) Classify(ctx context.Context, req domain.ClassificationRequest) (domain.ClassificationAttempt, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.ClassificationAttempt{}, fmt.Errorf("rate limit wait: %w", err)
	}

	var raw string
	call := func(callCtx context.Context) error {
		var err error
		raw, err = c.generateJSON(callCtx, buildClassificationPrompt(req))
		return err
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.classify", call, classifyProviderError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.ClassificationAttempt{}, err
	}

	var payload classificationPayload
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return domain.ClassificationAttempt{}, fmt.Errorf("parse classification json: %w", err)
	}
	if strings.TrimSpace(payload.Label) == "" {
		return domain.ClassificationAttempt{}, fmt.Errorf("classification response missing label")
	}
	if payload.Confidence < 0 || payload.Confidence > 1 {
		return domain.ClassificationAttempt{}, fmt.Errorf("classification confidence %v out of range", payload.Confidence)
	}

	return domain.ClassificationAttempt{
		Label:      payload.Label,
		Confidence: payload.Confidence,
		Reasoning:  payload.Reasoning,
	}, nil
}

// Generate produces free-form text. Used by enrichment actions such as
// summarization, not by the classification chain.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
