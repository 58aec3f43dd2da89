package usecase

import (
	"testing"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
)

func TestGenerateHintsDomainMatch(t *testing.T) {
	snap := testSnapshot(t)

	item := domain.ContentItem{
		ID:           "item-1",
		Title:        "Benchy remix",
		SourceDomain: "thingiverse.com",
	}
	hints := GenerateHints(snap, item)
	if len(hints) != 1 || hints[0] != "3D Printing" {
		t.Fatalf("hints = %v, want [3D Printing]", hints)
	}
}

func TestGenerateHintsSubdomainMatch(t *testing.T) {
	snap := testSnapshot(t)

	hints := GenerateHints(snap, domain.ContentItem{
		ID:           "item-1",
		Title:        "a model",
		SourceDomain: "www.thingiverse.com",
	})
	if len(hints) != 1 || hints[0] != "3D Printing" {
		t.Fatalf("hints = %v, want [3D Printing]", hints)
	}

	// Suffix without a label boundary must not match.
	hints = GenerateHints(snap, domain.ContentItem{
		ID:           "item-2",
		Title:        "a model",
		SourceDomain: "notthingiverse.com",
	})
	if len(hints) != 0 {
		t.Fatalf("hints = %v, want none for notthingiverse.com", hints)
	}
}

func TestGenerateHintsHostFromURL(t *testing.T) {
	snap := testSnapshot(t)

	hints := GenerateHints(snap, domain.ContentItem{
		ID:    "item-1",
		Title: "a model",
		URL:   "https://Thingiverse.com:8443/thing/123",
	})
	if len(hints) != 1 || hints[0] != "3D Printing" {
		t.Fatalf("hints = %v, want [3D Printing]", hints)
	}
}

func TestGenerateHintsKeywordAndOrdering(t *testing.T) {
	snap := testSnapshot(t)

	hints := GenerateHints(snap, domain.ContentItem{
		ID:           "item-1",
		Title:        "BREAKING: new resin printer",
		RawContent:   "long text",
		SourceDomain: "thingiverse.com",
	})
	// Ordered by category priority: 3D Printing (20) before News (30).
	if len(hints) != 2 || hints[0] != "3D Printing" || hints[1] != "News" {
		t.Fatalf("hints = %v, want [3D Printing News]", hints)
	}
}

func TestGenerateHintsExclusionRemovesCategory(t *testing.T) {
	snap := testSnapshot(t)

	hints := GenerateHints(snap, domain.ContentItem{
		ID:         "item-1",
		Title:      "Breaking update",
		RawContent: "this sponsored post covers the news",
	})
	if len(hints) != 0 {
		t.Fatalf("hints = %v, want none after exclusion", hints)
	}
}

func TestGenerateHintsMalformedURLDegradesToEmpty(t *testing.T) {
	snap := testSnapshot(t)

	for _, item := range []domain.ContentItem{
		{ID: "i1", Title: "no source at all"},
		{ID: "i2", Title: "bad url", URL: "::not a url::"},
		{ID: "i3", Title: "scheme only", URL: "mailto:someone@example.com"},
	} {
		if hints := GenerateHints(snap, item); len(hints) != 0 {
			t.Fatalf("item %s: hints = %v, want none", item.ID, hints)
		}
	}
}
