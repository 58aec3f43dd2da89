package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
)

// WebhookHandler POSTs the item reference to an operator-configured URL.
// Config: url (required, http/https), headers (optional string map).
type WebhookHandler struct {
	httpClient *http.Client
}

func NewWebhookHandler(timeout time.Duration) *WebhookHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookHandler{
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (h *WebhookHandler) ValidateConfig(config map[string]any) error {
	if _, _, err := webhookParams(config); err != nil {
		return err
	}
	return nil
}

func (h *WebhookHandler) Execute(ctx context.Context, item domain.ContentItem, config map[string]any) (any, error) {
	target, headers, err := webhookParams(config)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"item_id": item.ID,
		"url":     item.URL,
		"title":   item.Title,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook status: %s", resp.Status)
	}
	return map[string]any{"status_code": resp.StatusCode}, nil
}

func webhookParams(config map[string]any) (target string, headers map[string]string, err error) {
	raw, ok := config["url"]
	if !ok {
		return "", nil, fmt.Errorf("url is required")
	}
	target, ok = raw.(string)
	if !ok {
		return "", nil, fmt.Errorf("url must be a string, got %T", raw)
	}
	parsed, err := url.Parse(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", nil, fmt.Errorf("url must be an absolute http(s) URL, got %q", target)
	}

	if rawHeaders, ok := config["headers"]; ok {
		asMap, ok := rawHeaders.(map[string]any)
		if !ok {
			return "", nil, fmt.Errorf("headers must be a string map, got %T", rawHeaders)
		}
		headers = make(map[string]string, len(asMap))
		for key, value := range asMap {
			str, ok := value.(string)
			if !ok {
				return "", nil, fmt.Errorf("header %q must be a string, got %T", key, value)
			}
			headers[key] = str
		}
	}
	return target, headers, nil
}
