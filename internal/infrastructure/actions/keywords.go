package actions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
)

// KeywordsHandler extracts the most frequent non-stopword terms from the
// item's title and text. Config: top_n (optional, default 10), min_length
// (optional, default 4).
type KeywordsHandler struct{}

func NewKeywordsHandler() *KeywordsHandler {
	return &KeywordsHandler{}
}

var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "because": {}, "been": {},
	"before": {}, "being": {}, "between": {}, "both": {}, "could": {}, "does": {},
	"down": {}, "each": {}, "from": {}, "have": {}, "here": {}, "into": {},
	"just": {}, "like": {}, "more": {}, "most": {}, "only": {}, "other": {},
	"over": {}, "same": {}, "should": {}, "some": {}, "such": {}, "than": {},
	"that": {}, "their": {}, "them": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "through": {}, "under": {}, "very": {}, "were": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "while": {}, "will": {},
	"with": {}, "would": {}, "your": {},
}

func (h *KeywordsHandler) ValidateConfig(config map[string]any) error {
	if _, _, err := keywordParams(config); err != nil {
		return err
	}
	return nil
}

func (h *KeywordsHandler) Execute(_ context.Context, item domain.ContentItem, config map[string]any) (any, error) {
	topN, minLength, err := keywordParams(config)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	tokenize(item.Title+" "+item.RawContent, func(word string) {
		if len([]rune(word)) < minLength {
			return
		}
		if _, stop := stopwords[word]; stop {
			return
		}
		counts[word]++
	})

	type scored struct {
		word  string
		count int
	}
	ranked := make([]scored, 0, len(counts))
	for word, count := range counts {
		ranked = append(ranked, scored{word: word, count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	keywords := make([]string, len(ranked))
	for i, s := range ranked {
		keywords[i] = s.word
	}
	return map[string]any{"keywords": keywords}, nil
}

func tokenize(text string, emit func(word string)) {
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			emit(strings.ToLower(b.String()))
			b.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
}

func keywordParams(config map[string]any) (topN, minLength int, err error) {
	topN, err = positiveIntOption(config, "top_n", 10)
	if err != nil {
		return 0, 0, err
	}
	minLength, err = positiveIntOption(config, "min_length", 4)
	if err != nil {
		return 0, 0, err
	}
	return topN, minLength, nil
}

func positiveIntOption(config map[string]any, key string, fallback int) (int, error) {
	raw, ok := config[key]
	if !ok {
		return fallback, nil
	}
	switch v := raw.(type) {
	case float64:
		if v < 1 || v != float64(int(v)) {
			return 0, fmt.Errorf("%s must be a positive integer, got %v", key, v)
		}
		return int(v), nil
	case int:
		if v < 1 {
			return 0, fmt.Errorf("%s must be a positive integer, got %d", key, v)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", key, raw)
	}
}
