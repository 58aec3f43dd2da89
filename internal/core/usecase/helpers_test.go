package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
	"github.com/mkorchagin/content-pipeline/internal/core/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testSnapshot builds a small but complete rule snapshot:
// Technology (priority 10), 3D Printing (priority 20, one domain matcher on
// thingiverse.com), News (priority 30, keyword matcher "breaking" with an
// exclusion on "sponsored"), General (fallback), plus the alias
// "tech news" -> Technology.
func testSnapshot(t *testing.T, bindings ...domain.CategoryAction) *domain.Snapshot {
	t.Helper()

	rs := domain.RuleSet{
		Categories: []domain.Category{
			{ID: "cat-tech", Name: "Technology", Priority: 10, Active: true},
			{ID: "cat-print", Name: "3D Printing", Priority: 20, Active: true},
			{ID: "cat-news", Name: "News", Priority: 30, Active: true},
			{ID: "cat-general", Name: "General", Priority: 100, Active: true, Fallback: true},
		},
		Actions: []domain.Action{
			{ID: "act-a", Name: "summarize", HandlerKey: "summarize", Active: true},
			{ID: "act-b", Name: "keywords", HandlerKey: "extract_keywords", Active: true},
			{ID: "act-c", Name: "notify", HandlerKey: "webhook_notify", Active: true},
		},
		Matchers: []domain.Matcher{
			{ID: "m-print", CategoryID: "cat-print", Type: domain.MatcherTypeDomain, Pattern: "thingiverse.com", Active: true},
			{ID: "m-news", CategoryID: "cat-news", Type: domain.MatcherTypeKeyword, Pattern: "breaking", Active: true},
			{ID: "m-news-x", CategoryID: "cat-news", Type: domain.MatcherTypeKeyword, Pattern: "sponsored", Exclude: true, Active: true},
		},
		Aliases: []domain.CategoryAlias{
			{ID: "al-1", Alias: "tech news", CategoryID: "cat-tech", Threshold: 0.7},
		},
		Bindings: bindings,
	}

	snap, err := domain.BuildSnapshot(rs)
	if err != nil {
		t.Fatalf("BuildSnapshot() error = %v", err)
	}
	return snap
}

// fakeProvider returns a scripted sequence of responses, one per call.
type fakeProvider struct {
	name     string
	attempt  domain.ClassificationAttempt
	err      error
	calls    int
	lastReq  domain.ClassificationRequest
	waitCtx  bool
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Classify(ctx context.Context, req domain.ClassificationRequest) (domain.ClassificationAttempt, error) {
	p.calls++
	p.lastReq = req
	if p.waitCtx {
		<-ctx.Done()
		return domain.ClassificationAttempt{}, ctx.Err()
	}
	return p.attempt, p.err
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]domain.ClassificationAttempt
	getErr  error
	setErr  error
	gets    int
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]domain.ClassificationAttempt)}
}

func (c *fakeCache) Get(_ context.Context, fingerprint string) (domain.ClassificationAttempt, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return domain.ClassificationAttempt{}, false, c.getErr
	}
	attempt, ok := c.entries[fingerprint]
	return attempt, ok, nil
}

func (c *fakeCache) Set(_ context.Context, fingerprint string, attempt domain.ClassificationAttempt) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[fingerprint] = attempt
	return nil
}

// fakeHandler records executions and optionally fails or panics.
type fakeHandler struct {
	mu       sync.Mutex
	executed []string
	err      error
	panics   bool
	blockCtx bool
	validate error
}

func (h *fakeHandler) Execute(ctx context.Context, item domain.ContentItem, _ map[string]any) (any, error) {
	h.mu.Lock()
	h.executed = append(h.executed, item.ID)
	h.mu.Unlock()
	if h.panics {
		panic("boom")
	}
	if h.blockCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if h.err != nil {
		return nil, h.err
	}
	return map[string]any{"ok": true}, nil
}

func (h *fakeHandler) ValidateConfig(map[string]any) error { return h.validate }

type fakeRegistry struct {
	handlers map[string]ports.ActionHandler
}

func (r *fakeRegistry) Resolve(key string) (ports.ActionHandler, bool) {
	h, ok := r.handlers[key]
	return h, ok
}

func (r *fakeRegistry) Keys() []string {
	keys := make([]string, 0, len(r.handlers))
	for key := range r.handlers {
		keys = append(keys, key)
	}
	return keys
}

// fakeSnapshots serves a fixed snapshot and counts reloads.
type fakeSnapshots struct {
	snap      *domain.Snapshot
	err       error
	reloadErr error
	reloads   int
}

func (s *fakeSnapshots) Current() (*domain.Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snap, nil
}

func (s *fakeSnapshots) Reload(context.Context) error {
	s.reloads++
	return s.reloadErr
}

type fakeRuleRepo struct {
	ports.RuleRepository

	upserted  []*domain.CategoryAlias
	upsertErr error
}

func (r *fakeRuleRepo) UpsertAlias(_ context.Context, alias *domain.CategoryAlias) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.upserted = append(r.upserted, alias)
	return nil
}

type fakeQueue struct {
	published  []string
	publishErr error
}

func (q *fakeQueue) PublishAliasLearned(_ context.Context, label string) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, label)
	return nil
}

func (q *fakeQueue) SubscribeAliasLearned(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type fakeContentRepo struct {
	items   []domain.ContentItem
	listErr error
	saveErr error
	saved   map[string]domain.ResolutionResult
}

func (r *fakeContentRepo) GetByID(_ context.Context, id string) (*domain.ContentItem, error) {
	for _, item := range r.items {
		if item.ID == id {
			return &item, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeContentRepo) ListByRawLabel(_ context.Context, _ string) ([]domain.ContentItem, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.items, nil
}

func (r *fakeContentRepo) SaveResolution(_ context.Context, itemID string, res domain.ResolutionResult) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	if r.saved == nil {
		r.saved = make(map[string]domain.ResolutionResult)
	}
	r.saved[itemID] = res
	return nil
}
