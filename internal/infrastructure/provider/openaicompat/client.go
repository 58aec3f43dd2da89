package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
)

// Client classifies content through an OpenAI-compatible chat-completions
// endpoint. It is the second-priority provider: a hosted paid API, so calls
// are rate-limited and the quota is protected by the chain's fallthrough
// rather than retries.
type Client struct {
	baseURL          string
	apiKey           string
	model            string
	httpClient       *http.Client
	limiter          *rate.Limiter
	maxResponseBytes int64
}

func New(baseURL, apiKey, model string, requestsPerSecond float64) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2
	}
	return &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		apiKey:           apiKey,
		model:            model,
		httpClient:       &http.Client{Timeout: 60 * time.Second},
		limiter:          rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		maxResponseBytes: 1 << 20,
	}
}

func (c *Client) Name() string { return "openai-compat" }

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type classificationPayload struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

func (c *Client) Classify(ctx context.Context, req domain.ClassificationRequest) (domain.ClassificationAttempt, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.ClassificationAttempt{}, fmt.Errorf("rate limit wait: %w", err)
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: buildSystemPrompt(req)},
			{Role: "user", Content: buildUserPrompt(req)},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.ClassificationAttempt{}, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.ClassificationAttempt{}, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.ClassificationAttempt{}, fmt.Errorf("call chat completions: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes))
	if err != nil {
		return domain.ClassificationAttempt{}, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return domain.ClassificationAttempt{}, fmt.Errorf("chat completions status %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return domain.ClassificationAttempt{}, fmt.Errorf("decode chat response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return domain.ClassificationAttempt{}, fmt.Errorf("chat response has no choices")
	}

	var result classificationPayload
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &result); err != nil {
		return domain.ClassificationAttempt{}, fmt.Errorf("parse classification json: %w", err)
	}
	if strings.TrimSpace(result.Label) == "" {
		return domain.ClassificationAttempt{}, fmt.Errorf("classification response missing label")
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return domain.ClassificationAttempt{}, fmt.Errorf("classification confidence %v out of range", result.Confidence)
	}

	return domain.ClassificationAttempt{
		Label:      result.Label,
		Confidence: result.Confidence,
		Reasoning:  result.Reasoning,
	}, nil
}

func buildSystemPrompt(req domain.ClassificationRequest) string {
	var b strings.Builder
	b.WriteString("You are a content classifier. Assign the content to exactly one of these categories:\n")
	for _, name := range req.Vocabulary {
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	b.WriteString(`Respond with a JSON object: {"label": "<category name>", "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}`)
	return b.String()
}

func buildUserPrompt(req domain.ClassificationRequest) string {
	var b strings.Builder
	if len(req.Hints) > 0 {
		b.WriteString("Rule-based hints (soft prior): ")
		b.WriteString(strings.Join(req.Hints, ", "))
		b.WriteString("\n\n")
	}
	b.WriteString("Title: ")
	b.WriteString(req.Title)
	b.WriteString("\n\nContent:\n")
	b.WriteString(req.Excerpt)
	return b.String()
}
