package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Binding is a resolved CategoryAction: the bound action plus its position
// and config, ready for dispatch.
type Binding struct {
	Action         Action
	ExecutionOrder int
	Config         map[string]any
}

// Snapshot is an immutable view of the rule tables. It is built once from a
// RuleSet, validated, and then shared read-only by every in-flight pipeline
// run. Reload replaces the whole snapshot; it is never mutated in place.
type Snapshot struct {
	LoadedAt time.Time

	categoriesByID   map[string]Category
	categoriesByName map[string]Category
	fallback         Category
	matchers         []Matcher
	bindings         map[string][]Binding
	aliases          map[string]CategoryAlias
	vocabulary       []string
}

// BuildSnapshot validates a rule set and assembles the lookup structures the
// pipeline reads on every run. Validation mirrors the storage-layer
// constraints: a database that drifted out of invariants must not produce a
// servable snapshot.
func BuildSnapshot(rs RuleSet) (*Snapshot, error) {
	snap := &Snapshot{
		LoadedAt:         time.Now().UTC(),
		categoriesByID:   make(map[string]Category, len(rs.Categories)),
		categoriesByName: make(map[string]Category, len(rs.Categories)),
		bindings:         make(map[string][]Binding),
		aliases:          make(map[string]CategoryAlias, len(rs.Aliases)),
	}

	fallbackCount := 0
	for _, cat := range rs.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			return nil, fmt.Errorf("category %s has empty name", cat.ID)
		}
		if _, dup := snap.categoriesByID[cat.ID]; dup {
			return nil, fmt.Errorf("duplicate category id %s", cat.ID)
		}
		snap.categoriesByID[cat.ID] = cat
		if !cat.Active {
			continue
		}
		key := strings.ToLower(cat.Name)
		if _, dup := snap.categoriesByName[key]; dup {
			return nil, fmt.Errorf("duplicate active category name %q", cat.Name)
		}
		snap.categoriesByName[key] = cat
		if cat.Fallback {
			fallbackCount++
			snap.fallback = cat
		}
	}
	if fallbackCount != 1 {
		return nil, fmt.Errorf("expected exactly one active fallback category, found %d", fallbackCount)
	}

	actionsByID := make(map[string]Action, len(rs.Actions))
	for _, act := range rs.Actions {
		if strings.TrimSpace(act.Name) == "" || strings.TrimSpace(act.HandlerKey) == "" {
			return nil, fmt.Errorf("action %s has empty name or handler key", act.ID)
		}
		actionsByID[act.ID] = act
	}

	seenBindings := make(map[string]struct{}, len(rs.Bindings))
	for _, b := range rs.Bindings {
		cat, ok := snap.categoriesByID[b.CategoryID]
		if !ok {
			return nil, fmt.Errorf("binding references unknown category %s", b.CategoryID)
		}
		act, ok := actionsByID[b.ActionID]
		if !ok {
			return nil, fmt.Errorf("binding references unknown action %s", b.ActionID)
		}
		pairKey := b.CategoryID + "/" + b.ActionID
		if _, dup := seenBindings[pairKey]; dup {
			return nil, fmt.Errorf("duplicate binding for category %s action %s", cat.Name, act.Name)
		}
		seenBindings[pairKey] = struct{}{}
		if !act.Active {
			continue
		}
		snap.bindings[b.CategoryID] = append(snap.bindings[b.CategoryID], Binding{
			Action:         act,
			ExecutionOrder: b.ExecutionOrder,
			Config:         b.Config,
		})
	}
	// Stable sort keeps insertion order for equal execution_order values.
	for id := range snap.bindings {
		list := snap.bindings[id]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].ExecutionOrder < list[j].ExecutionOrder
		})
	}

	for _, m := range rs.Matchers {
		if m.Type != MatcherTypeDomain && m.Type != MatcherTypeKeyword {
			return nil, fmt.Errorf("matcher %s has unknown type %q", m.ID, m.Type)
		}
		if strings.TrimSpace(m.Pattern) == "" {
			return nil, fmt.Errorf("matcher %s has empty pattern", m.ID)
		}
		if _, ok := snap.categoriesByID[m.CategoryID]; !ok {
			return nil, fmt.Errorf("matcher %s references unknown category %s", m.ID, m.CategoryID)
		}
		if !m.Active {
			continue
		}
		snap.matchers = append(snap.matchers, m)
	}

	for _, a := range rs.Aliases {
		key := NormalizeAlias(a.Alias)
		if key == "" {
			return nil, fmt.Errorf("alias %s normalizes to empty string", a.ID)
		}
		if _, dup := snap.aliases[key]; dup {
			return nil, fmt.Errorf("duplicate alias %q", key)
		}
		target, ok := snap.categoriesByID[a.CategoryID]
		if !ok || !target.Active {
			return nil, fmt.Errorf("alias %q targets unknown or inactive category %s", key, a.CategoryID)
		}
		a.Alias = key
		snap.aliases[key] = a
	}

	vocab := make([]Category, 0, len(snap.categoriesByName))
	for _, cat := range snap.categoriesByName {
		vocab = append(vocab, cat)
	}
	sort.Slice(vocab, func(i, j int) bool {
		if vocab[i].Priority != vocab[j].Priority {
			return vocab[i].Priority < vocab[j].Priority
		}
		return vocab[i].Name < vocab[j].Name
	})
	snap.vocabulary = make([]string, len(vocab))
	for i, cat := range vocab {
		snap.vocabulary[i] = cat.Name
	}

	return snap, nil
}

// CategoryByName resolves an active category by case-insensitive name.
func (s *Snapshot) CategoryByName(name string) (Category, bool) {
	cat, ok := s.categoriesByName[strings.ToLower(name)]
	return cat, ok
}

func (s *Snapshot) CategoryByID(id string) (Category, bool) {
	cat, ok := s.categoriesByID[id]
	return cat, ok
}

// AliasTarget resolves a raw label through the alias table. The label is
// normalized before lookup.
func (s *Snapshot) AliasTarget(rawLabel string) (Category, CategoryAlias, bool) {
	alias, ok := s.aliases[NormalizeAlias(rawLabel)]
	if !ok {
		return Category{}, CategoryAlias{}, false
	}
	cat := s.categoriesByID[alias.CategoryID]
	return cat, alias, true
}

// Fallback returns the single active fallback category.
func (s *Snapshot) Fallback() Category {
	return s.fallback
}

// Matchers returns the active matchers in load order.
func (s *Snapshot) Matchers() []Matcher {
	return s.matchers
}

// Bindings returns the category's actions ordered by execution_order,
// insertion order breaking ties.
func (s *Snapshot) Bindings(categoryID string) []Binding {
	return s.bindings[categoryID]
}

// Vocabulary lists active category names by priority ascending. It is sent to
// classification providers as the closed label set.
func (s *Snapshot) Vocabulary() []string {
	return s.vocabulary
}
