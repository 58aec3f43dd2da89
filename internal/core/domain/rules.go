package domain

import (
	"strings"
	"time"
)

type MatcherType string

const (
	MatcherTypeDomain  MatcherType = "domain"
	MatcherTypeKeyword MatcherType = "keyword"
)

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Priority    int       `json:"priority"`
	Active      bool      `json:"active"`
	Fallback    bool      `json:"fallback"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Action struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	HandlerKey string    `json:"handler_key"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CategoryAction binds an action to a category at a position in the
// category's execution sequence. Config carries action-specific parameters
// validated by the handler when the snapshot loads.
type CategoryAction struct {
	CategoryID     string         `json:"category_id"`
	ActionID       string         `json:"action_id"`
	ExecutionOrder int            `json:"execution_order"`
	Config         map[string]any `json:"config,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type Matcher struct {
	ID         string      `json:"id"`
	CategoryID string      `json:"category_id"`
	Type       MatcherType `json:"type"`
	Pattern    string      `json:"pattern"`
	Exclude    bool        `json:"exclude"`
	Active     bool        `json:"active"`
	CreatedAt  time.Time   `json:"created_at"`
}

// CategoryAlias maps a raw classifier label to a primary category.
// Alias is stored normalized (trimmed, lower-cased, inner whitespace
// collapsed) and is unique.
type CategoryAlias struct {
	ID         string    `json:"id"`
	Alias      string    `json:"alias"`
	CategoryID string    `json:"category_id"`
	Threshold  float64   `json:"threshold"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RuleSet is the raw, unvalidated content of the persisted rule tables.
type RuleSet struct {
	Categories []Category
	Actions    []Action
	Bindings   []CategoryAction
	Matchers   []Matcher
	Aliases    []CategoryAlias
}

// NormalizeAlias canonicalizes a raw label for alias storage and lookup.
func NormalizeAlias(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}
