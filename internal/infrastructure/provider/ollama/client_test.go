package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
)

func classificationServer(t *testing.T, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["format"] != "json" {
			t.Errorf("format = %v, want json", body["format"])
		}
		if body["stream"] != false {
			t.Errorf("stream = %v, want false", body["stream"])
		}
		json.NewEncoder(w).Encode(map[string]string{"response": response})
	}))
}

func TestClassifyParsesResponse(t *testing.T) {
	server := classificationServer(t, `{"label": "Technology", "confidence": 0.92, "reasoning": "GPU review"}`)
	defer server.Close()

	client := New(server.URL, "llama3", 100, nil)
	attempt, err := client.Classify(context.Background(), domain.ClassificationRequest{
		Title:      "New GPU released",
		Excerpt:    "body",
		Vocabulary: []string{"Technology", "General"},
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if attempt.Label != "Technology" || attempt.Confidence != 0.92 {
		t.Fatalf("attempt = %+v", attempt)
	}
}

func TestClassifyExtractsJSONFromProse(t *testing.T) {
	server := classificationServer(t, "Sure, here is the result:\n"+`{"label": "News", "confidence": 0.8, "reasoning": "x"}`+"\nHope this helps!")
	defer server.Close()

	client := New(server.URL, "llama3", 100, nil)
	attempt, err := client.Classify(context.Background(), domain.ClassificationRequest{Title: "t"})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if attempt.Label != "News" {
		t.Fatalf("label = %q, want News", attempt.Label)
	}
}

func TestClassifyRejectsMissingLabel(t *testing.T) {
	server := classificationServer(t, `{"confidence": 0.8}`)
	defer server.Close()

	client := New(server.URL, "llama3", 100, nil)
	if _, err := client.Classify(context.Background(), domain.ClassificationRequest{Title: "t"}); err == nil {
		t.Fatal("expected error for response without label")
	}
}

func TestClassifyRejectsOutOfRangeConfidence(t *testing.T) {
	server := classificationServer(t, `{"label": "News", "confidence": 1.7}`)
	defer server.Close()

	client := New(server.URL, "llama3", 100, nil)
	if _, err := client.Classify(context.Background(), domain.ClassificationRequest{Title: "t"}); err == nil {
		t.Fatal("expected error for out-of-range confidence")
	}
}

func TestClassifyServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, "llama3", 100, nil)
	if _, err := client.Classify(context.Background(), domain.ClassificationRequest{Title: "t"}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, hasFormat := body["format"]; hasFormat {
			t.Error("free-form generation must not force json format")
		}
		json.NewEncoder(w).Encode(map[string]string{"response": "  A short summary.  "})
	}))
	defer server.Close()

	client := New(server.URL, "llama3", 100, nil)
	text, err := client.Generate(context.Background(), "Summarize this")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "A short summary." {
		t.Fatalf("text = %q", text)
	}
}

func TestExtractJSONObject(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:              `{"a":1}`,
		`prefix {"a":1} trail`: `{"a":1}`,
		`no json here`:         `no json here`,
	}
	for input, want := range cases {
		if got := extractJSONObject(input); got != want {
			t.Fatalf("extractJSONObject(%q) = %q, want %q", input, got, want)
		}
	}
}
