package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
	"github.com/mkorchagin/content-pipeline/internal/core/ports"
)

func newReprocess(t *testing.T, contents *fakeContentRepo, snapshots ports.SnapshotSource, provider ports.ClassificationProvider) *ReprocessUseCase {
	t.Helper()
	chain := NewProviderChain([]ports.ClassificationProvider{provider}, nil, time.Second, 2000, testLogger())
	dispatcher := NewActionDispatcher(&fakeRegistry{handlers: map[string]ports.ActionHandler{}}, time.Second, testLogger())
	classify := NewClassifyContentUseCase(snapshots, chain, dispatcher, testLogger())
	return NewReprocessUseCase(contents, classify, testLogger())
}

func TestHandleAliasLearnedReprocessesMatchedItems(t *testing.T) {
	contents := &fakeContentRepo{items: []domain.ContentItem{
		{ID: "i1", Title: "first", RawContent: "a"},
		{ID: "i2", Title: "second", RawContent: "b"},
	}}
	provider := &fakeProvider{
		name:    "ollama",
		attempt: domain.ClassificationAttempt{Label: "tech news", Confidence: 0.85},
	}
	uc := newReprocess(t, contents, &fakeSnapshots{snap: testSnapshot(t)}, provider)

	if err := uc.HandleAliasLearned(context.Background(), "tech news"); err != nil {
		t.Fatalf("HandleAliasLearned() error = %v", err)
	}
	if len(contents.saved) != 2 {
		t.Fatalf("saved = %d items, want 2", len(contents.saved))
	}
	for id, res := range contents.saved {
		if res.Tier != domain.TierAlias || res.Category.ID != "cat-tech" {
			t.Fatalf("item %s: resolution = %+v, want alias tier to cat-tech", id, res)
		}
	}
}

func TestHandleAliasLearnedSkipsFailingItems(t *testing.T) {
	contents := &fakeContentRepo{items: []domain.ContentItem{
		{ID: "i1"}, // no title or content: invalid for the pipeline
		{ID: "i2", Title: "ok", RawContent: "b"},
	}}
	provider := &fakeProvider{
		name:    "ollama",
		attempt: domain.ClassificationAttempt{Label: "Technology", Confidence: 0.9},
	}
	uc := newReprocess(t, contents, &fakeSnapshots{snap: testSnapshot(t)}, provider)

	if err := uc.HandleAliasLearned(context.Background(), "tech news"); err != nil {
		t.Fatalf("HandleAliasLearned() error = %v, per-item failure must not abort batch", err)
	}
	if len(contents.saved) != 1 {
		t.Fatalf("saved = %d items, want only the valid one", len(contents.saved))
	}
	if _, ok := contents.saved["i2"]; !ok {
		t.Fatal("i2 should have been reprocessed")
	}
}

func TestHandleAliasLearnedAbortsWithoutSnapshot(t *testing.T) {
	contents := &fakeContentRepo{items: []domain.ContentItem{{ID: "i1", Title: "t", RawContent: "c"}}}
	uc := newReprocess(t, contents, &fakeSnapshots{err: errors.New("never loaded")}, &fakeProvider{name: "ollama"})

	err := uc.HandleAliasLearned(context.Background(), "tech news")
	if !domain.IsKind(err, domain.ErrSnapshotUnavailable) {
		t.Fatalf("error = %v, want snapshot unavailable kind", err)
	}
}

func TestHandleAliasLearnedListErrorPropagates(t *testing.T) {
	contents := &fakeContentRepo{listErr: errors.New("db down")}
	uc := newReprocess(t, contents, &fakeSnapshots{snap: testSnapshot(t)}, &fakeProvider{name: "ollama"})

	if err := uc.HandleAliasLearned(context.Background(), "tech news"); err == nil {
		t.Fatal("expected error when listing fails")
	}
}

func TestHandleAliasLearnedSaveFailureSkipsItem(t *testing.T) {
	contents := &fakeContentRepo{
		items:   []domain.ContentItem{{ID: "i1", Title: "t", RawContent: "c"}},
		saveErr: errors.New("write conflict"),
	}
	provider := &fakeProvider{
		name:    "ollama",
		attempt: domain.ClassificationAttempt{Label: "Technology", Confidence: 0.9},
	}
	uc := newReprocess(t, contents, &fakeSnapshots{snap: testSnapshot(t)}, provider)

	if err := uc.HandleAliasLearned(context.Background(), "tech news"); err != nil {
		t.Fatalf("HandleAliasLearned() error = %v, save failure must not abort batch", err)
	}
}
