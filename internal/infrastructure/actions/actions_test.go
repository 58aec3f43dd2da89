package actions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
)

func TestRegistryResolveAndKeys(t *testing.T) {
	registry := NewRegistry()
	registry.Register("extract_keywords", NewKeywordsHandler())
	registry.Register("webhook_notify", NewWebhookHandler(time.Second))

	if _, ok := registry.Resolve("extract_keywords"); !ok {
		t.Fatal("expected extract_keywords to resolve")
	}
	if _, ok := registry.Resolve("unknown"); ok {
		t.Fatal("unknown key must not resolve")
	}

	keys := registry.Keys()
	if len(keys) != 2 || keys[0] != "extract_keywords" || keys[1] != "webhook_notify" {
		t.Fatalf("keys = %v, want sorted pair", keys)
	}
}

type stubGenerator struct {
	text string
	err  error
}

func (g *stubGenerator) Generate(context.Context, string) (string, error) {
	return g.text, g.err
}

func TestSummarizeHandler(t *testing.T) {
	handler := NewSummarizeHandler(&stubGenerator{text: " A concise summary. "})

	result, err := handler.Execute(context.Background(), domain.ContentItem{
		ID: "i1", Title: "t", RawContent: "long body",
	}, map[string]any{"max_sentences": float64(2)})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	payload := result.(map[string]any)
	if payload["summary"] != "A concise summary." {
		t.Fatalf("summary = %v", payload["summary"])
	}
}

func TestSummarizeHandlerGeneratorFailure(t *testing.T) {
	handler := NewSummarizeHandler(&stubGenerator{err: errors.New("model down")})

	if _, err := handler.Execute(context.Background(), domain.ContentItem{ID: "i1"}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestSummarizeValidateConfig(t *testing.T) {
	handler := NewSummarizeHandler(&stubGenerator{})

	if err := handler.ValidateConfig(nil); err != nil {
		t.Fatalf("nil config should default: %v", err)
	}
	if err := handler.ValidateConfig(map[string]any{"max_sentences": float64(5)}); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	for _, bad := range []any{float64(0), float64(2.5), "three"} {
		if err := handler.ValidateConfig(map[string]any{"max_sentences": bad}); err == nil {
			t.Fatalf("config %v should be rejected", bad)
		}
	}
}

func TestKeywordsHandler(t *testing.T) {
	handler := NewKeywordsHandler()

	result, err := handler.Execute(context.Background(), domain.ContentItem{
		ID:         "i1",
		Title:      "Printer firmware update",
		RawContent: "The printer firmware improves printing speed. Firmware flashing requires a printer restart.",
	}, map[string]any{"top_n": float64(2)})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	keywords := result.(map[string]any)["keywords"].([]string)
	if len(keywords) != 2 {
		t.Fatalf("keywords = %v, want 2", keywords)
	}
	// "printer" and "firmware" appear three times each; alphabetical tiebreak.
	if keywords[0] != "firmware" || keywords[1] != "printer" {
		t.Fatalf("keywords = %v, want [firmware printer]", keywords)
	}
}

func TestKeywordsHandlerFiltersShortAndStopwords(t *testing.T) {
	handler := NewKeywordsHandler()

	result, err := handler.Execute(context.Background(), domain.ContentItem{
		ID:         "i1",
		RawContent: "this is a cat that would like more of the same",
	}, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	keywords := result.(map[string]any)["keywords"].([]string)
	if len(keywords) != 0 {
		t.Fatalf("keywords = %v, want none", keywords)
	}
}

func TestKeywordsValidateConfig(t *testing.T) {
	handler := NewKeywordsHandler()

	if err := handler.ValidateConfig(map[string]any{"top_n": float64(5), "min_length": float64(3)}); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if err := handler.ValidateConfig(map[string]any{"top_n": "many"}); err == nil {
		t.Fatal("non-numeric top_n should be rejected")
	}
	if err := handler.ValidateConfig(map[string]any{"min_length": float64(-1)}); err == nil {
		t.Fatal("negative min_length should be rejected")
	}
}

func TestWebhookHandlerPostsItemReference(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Token"); got != "secret" {
			t.Errorf("X-Token = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	handler := NewWebhookHandler(time.Second)
	result, err := handler.Execute(context.Background(), domain.ContentItem{
		ID: "item-1", URL: "https://example.com/a", Title: "A title",
	}, map[string]any{
		"url":     server.URL,
		"headers": map[string]any{"X-Token": "secret"},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if received["item_id"] != "item-1" || received["title"] != "A title" {
		t.Fatalf("payload = %v", received)
	}
	if result.(map[string]any)["status_code"] != http.StatusNoContent {
		t.Fatalf("result = %v", result)
	}
}

func TestWebhookHandlerErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	handler := NewWebhookHandler(time.Second)
	if _, err := handler.Execute(context.Background(), domain.ContentItem{ID: "i1"}, map[string]any{"url": server.URL}); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestWebhookValidateConfig(t *testing.T) {
	handler := NewWebhookHandler(time.Second)

	if err := handler.ValidateConfig(map[string]any{"url": "https://example.com/hook"}); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := []map[string]any{
		nil,
		{},
		{"url": 42},
		{"url": "not-a-url"},
		{"url": "ftp://example.com"},
		{"url": "https://example.com", "headers": "inline"},
		{"url": "https://example.com", "headers": map[string]any{"X": 1}},
	}
	for _, config := range bad {
		if err := handler.ValidateConfig(config); err == nil {
			t.Fatalf("config %v should be rejected", config)
		}
	}
}
