package usecase

import (
	"net/url"
	"sort"
	"strings"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
)

// GenerateHints derives category hints from the snapshot's matcher rules.
// Domain matchers fire on an exact host match or any subdomain of the
// pattern; keyword matchers fire on a case-insensitive substring of title or
// text. Exclusion matchers remove a category from the hint set. The result
// is ordered by category priority ascending, then matcher id.
//
// Pure function over the snapshot: a malformed or absent URL/domain never
// produces an error, only fewer hints.
func GenerateHints(snap *domain.Snapshot, item domain.ContentItem) []string {
	host := hintHost(item)
	title := strings.ToLower(item.Title)
	text := strings.ToLower(item.RawContent)

	type firing struct {
		category  domain.Category
		matcherID string
	}
	included := make(map[string]firing)
	excluded := make(map[string]struct{})

	for _, m := range snap.Matchers() {
		if !matcherFires(m, host, title, text) {
			continue
		}
		cat, ok := snap.CategoryByID(m.CategoryID)
		if !ok || !cat.Active {
			continue
		}
		if m.Exclude {
			excluded[cat.ID] = struct{}{}
			continue
		}
		if prev, ok := included[cat.ID]; !ok || m.ID < prev.matcherID {
			included[cat.ID] = firing{category: cat, matcherID: m.ID}
		}
	}

	hits := make([]firing, 0, len(included))
	for id, f := range included {
		if _, out := excluded[id]; out {
			continue
		}
		hits = append(hits, f)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].category.Priority != hits[j].category.Priority {
			return hits[i].category.Priority < hits[j].category.Priority
		}
		return hits[i].matcherID < hits[j].matcherID
	})

	hints := make([]string, len(hits))
	for i, f := range hits {
		hints[i] = f.category.Name
	}
	return hints
}

func matcherFires(m domain.Matcher, host, title, text string) bool {
	switch m.Type {
	case domain.MatcherTypeDomain:
		return domainMatches(host, m.Pattern)
	case domain.MatcherTypeKeyword:
		pattern := strings.ToLower(m.Pattern)
		return strings.Contains(title, pattern) || strings.Contains(text, pattern)
	default:
		return false
	}
}

// domainMatches reports whether host equals pattern or is a subdomain of it,
// on label boundaries ("news.example.com" matches "example.com",
// "notexample.com" does not).
func domainMatches(host, pattern string) bool {
	if host == "" {
		return false
	}
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return false
	}
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}

func hintHost(item domain.ContentItem) string {
	host := strings.ToLower(strings.TrimSpace(item.SourceDomain))
	if host == "" && item.URL != "" {
		if parsed, err := url.Parse(item.URL); err == nil {
			host = strings.ToLower(parsed.Hostname())
		}
	}
	// Strip a port if the domain was captured as host:port.
	if idx := strings.LastIndex(host, ":"); idx >= 0 && !strings.Contains(host, "]") {
		host = host[:idx]
	}
	return host
}
