package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
	"github.com/mkorchagin/content-pipeline/internal/core/ports"
)

// RulePack is a declarative YAML rule set. A fresh database is seeded from
// one so the pipeline starts with a valid fallback category and a working
// matcher/action configuration.
type RulePack struct {
	Categories []CategorySpec `yaml:"categories"`
	Actions    []ActionSpec   `yaml:"actions"`
	Matchers   []MatcherSpec  `yaml:"matchers"`
	Bindings   []BindingSpec  `yaml:"bindings"`
	Aliases    []AliasSpec    `yaml:"aliases"`
}

type CategorySpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Priority    int    `yaml:"priority"`
	Fallback    bool   `yaml:"fallback"`
	Inactive    bool   `yaml:"inactive"`
}

type ActionSpec struct {
	Name     string `yaml:"name"`
	Handler  string `yaml:"handler"`
	Inactive bool   `yaml:"inactive"`
}

type MatcherSpec struct {
	Category string `yaml:"category"`
	Type     string `yaml:"type"`
	Pattern  string `yaml:"pattern"`
	Exclude  bool   `yaml:"exclude"`
}

type BindingSpec struct {
	Category string         `yaml:"category"`
	Action   string         `yaml:"action"`
	Order    int            `yaml:"order"`
	Config   map[string]any `yaml:"config"`
}

type AliasSpec struct {
	Alias     string  `yaml:"alias"`
	Category  string  `yaml:"category"`
	Threshold float64 `yaml:"threshold"`
}

func LoadPack(path string) (*RulePack, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule pack: %w", err)
	}
	return ParsePack(raw)
}

func ParsePack(raw []byte) (*RulePack, error) {
	var pack RulePack
	if err := yaml.Unmarshal(raw, &pack); err != nil {
		return nil, fmt.Errorf("parse rule pack: %w", err)
	}

	fallbacks := 0
	names := make(map[string]struct{}, len(pack.Categories))
	for _, cat := range pack.Categories {
		if cat.Name == "" {
			return nil, fmt.Errorf("rule pack category with empty name")
		}
		if _, dup := names[cat.Name]; dup {
			return nil, fmt.Errorf("rule pack has duplicate category %q", cat.Name)
		}
		names[cat.Name] = struct{}{}
		if cat.Fallback && !cat.Inactive {
			fallbacks++
		}
	}
	if len(pack.Categories) > 0 && fallbacks != 1 {
		return nil, fmt.Errorf("rule pack must declare exactly one active fallback category, has %d", fallbacks)
	}
	return &pack, nil
}

// Apply inserts the pack into an empty rule store. A store that already has
// categories is left untouched: seeding never overwrites operator curation.
func Apply(ctx context.Context, repo ports.RuleRepository, pack *RulePack, logger *slog.Logger) error {
	existing, err := repo.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("check existing categories: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("seed_skipped", "existing_categories", len(existing))
		return nil
	}

	now := time.Now().UTC()
	categoryIDs := make(map[string]string, len(pack.Categories))
	for _, spec := range pack.Categories {
		cat := &domain.Category{
			ID:          uuid.NewString(),
			Name:        spec.Name,
			Description: spec.Description,
			Priority:    spec.Priority,
			Active:      !spec.Inactive,
			Fallback:    spec.Fallback,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := repo.CreateCategory(ctx, cat); err != nil {
			return fmt.Errorf("seed category %q: %w", spec.Name, err)
		}
		categoryIDs[spec.Name] = cat.ID
	}

	actionIDs := make(map[string]string, len(pack.Actions))
	for _, spec := range pack.Actions {
		act := &domain.Action{
			ID:         uuid.NewString(),
			Name:       spec.Name,
			HandlerKey: spec.Handler,
			Active:     !spec.Inactive,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := repo.CreateAction(ctx, act); err != nil {
			return fmt.Errorf("seed action %q: %w", spec.Name, err)
		}
		actionIDs[spec.Name] = act.ID
	}

	for _, spec := range pack.Matchers {
		categoryID, ok := categoryIDs[spec.Category]
		if !ok {
			return fmt.Errorf("seed matcher references unknown category %q", spec.Category)
		}
		m := &domain.Matcher{
			ID:         uuid.NewString(),
			CategoryID: categoryID,
			Type:       domain.MatcherType(spec.Type),
			Pattern:    spec.Pattern,
			Exclude:    spec.Exclude,
			Active:     true,
			CreatedAt:  now,
		}
		if err := repo.CreateMatcher(ctx, m); err != nil {
			return fmt.Errorf("seed matcher %q: %w", spec.Pattern, err)
		}
	}

	for _, spec := range pack.Bindings {
		categoryID, ok := categoryIDs[spec.Category]
		if !ok {
			return fmt.Errorf("seed binding references unknown category %q", spec.Category)
		}
		actionID, ok := actionIDs[spec.Action]
		if !ok {
			return fmt.Errorf("seed binding references unknown action %q", spec.Action)
		}
		binding := &domain.CategoryAction{
			CategoryID:     categoryID,
			ActionID:       actionID,
			ExecutionOrder: spec.Order,
			Config:         spec.Config,
			CreatedAt:      now,
		}
		if err := repo.BindAction(ctx, binding); err != nil {
			return fmt.Errorf("seed binding %s/%s: %w", spec.Category, spec.Action, err)
		}
	}

	for _, spec := range pack.Aliases {
		categoryID, ok := categoryIDs[spec.Category]
		if !ok {
			return fmt.Errorf("seed alias references unknown category %q", spec.Category)
		}
		alias := &domain.CategoryAlias{
			ID:         uuid.NewString(),
			Alias:      domain.NormalizeAlias(spec.Alias),
			CategoryID: categoryID,
			Threshold:  spec.Threshold,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := repo.UpsertAlias(ctx, alias); err != nil {
			return fmt.Errorf("seed alias %q: %w", spec.Alias, err)
		}
	}

	logger.Info("seed_applied",
		"categories", len(pack.Categories),
		"actions", len(pack.Actions),
		"matchers", len(pack.Matchers),
		"bindings", len(pack.Bindings),
		"aliases", len(pack.Aliases),
	)
	return nil
}
