package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
)

type RuleRepository struct {
	db *sql.DB
}

func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RuleRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS categories (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	priority INT NOT NULL DEFAULT 100,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	fallback BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

-- Exactly one active fallback category at any time.
CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_single_fallback
	ON categories ((TRUE)) WHERE fallback AND active;

CREATE TABLE IF NOT EXISTS actions (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	handler_key TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS category_actions (
	category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	action_id TEXT NOT NULL REFERENCES actions(id) ON DELETE CASCADE,
	execution_order INT NOT NULL DEFAULT 0,
	config JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (category_id, action_id)
);

CREATE TABLE IF NOT EXISTS matchers (
	id TEXT PRIMARY KEY,
	category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	pattern TEXT NOT NULL,
	exclude BOOLEAN NOT NULL DEFAULT FALSE,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS category_aliases (
	id TEXT PRIMARY KEY,
	alias TEXT NOT NULL UNIQUE,
	category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	threshold DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RuleRepository) LoadRuleSet(ctx context.Context) (domain.RuleSet, error) {
	var rs domain.RuleSet
	var err error

	if rs.Categories, err = r.ListCategories(ctx); err != nil {
		return domain.RuleSet{}, err
	}
	if rs.Actions, err = r.ListActions(ctx); err != nil {
		return domain.RuleSet{}, err
	}
	if rs.Bindings, err = r.listBindings(ctx); err != nil {
		return domain.RuleSet{}, err
	}
	if rs.Matchers, err = r.ListMatchers(ctx); err != nil {
		return domain.RuleSet{}, err
	}
	if rs.Aliases, err = r.listAliases(ctx); err != nil {
		return domain.RuleSet{}, err
	}
	return rs, nil
}

func (r *RuleRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, description, priority, active, fallback, created_at, updated_at
FROM categories
ORDER BY priority, name
`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Category, 0)
	for rows.Next() {
		var cat domain.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Description, &cat.Priority, &cat.Active, &cat.Fallback, &cat.CreatedAt, &cat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

func (r *RuleRepository) CreateCategory(ctx context.Context, cat *domain.Category) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO categories (id, name, description, priority, active, fallback, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, cat.ID, cat.Name, cat.Description, cat.Priority, cat.Active, cat.Fallback, cat.CreatedAt, cat.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *RuleRepository) UpdateCategory(ctx context.Context, cat *domain.Category) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE categories
SET name = $2, description = $3, priority = $4, active = $5, fallback = $6, updated_at = $7
WHERE id = $1
`, cat.ID, cat.Name, cat.Description, cat.Priority, cat.Active, cat.Fallback, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update category rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "update category", fmt.Errorf("id=%s", cat.ID))
	}
	return nil
}

func (r *RuleRepository) ListActions(ctx context.Context) ([]domain.Action, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, handler_key, active, created_at, updated_at
FROM actions
ORDER BY name
`)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Action, 0)
	for rows.Next() {
		var act domain.Action
		if err := rows.Scan(&act.ID, &act.Name, &act.HandlerKey, &act.Active, &act.CreatedAt, &act.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		out = append(out, act)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return out, nil
}

func (r *RuleRepository) CreateAction(ctx context.Context, act *domain.Action) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO actions (id, name, handler_key, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, act.ID, act.Name, act.HandlerKey, act.Active, act.CreatedAt, act.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

func (r *RuleRepository) listBindings(ctx context.Context) ([]domain.CategoryAction, error) {
	// created_at breaks execution_order ties by insertion order.
	rows, err := r.db.QueryContext(ctx, `
SELECT category_id, action_id, execution_order, config, created_at
FROM category_actions
ORDER BY category_id, execution_order, created_at
`)
	if err != nil {
		return nil, fmt.Errorf("list bindings: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CategoryAction, 0)
	for rows.Next() {
		var b domain.CategoryAction
		var configRaw []byte
		if err := rows.Scan(&b.CategoryID, &b.ActionID, &b.ExecutionOrder, &configRaw, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		if len(configRaw) > 0 {
			if err := json.Unmarshal(configRaw, &b.Config); err != nil {
				return nil, fmt.Errorf("unmarshal binding config: %w", err)
			}
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bindings: %w", err)
	}
	return out, nil
}

func (r *RuleRepository) BindAction(ctx context.Context, binding *domain.CategoryAction) error {
	configJSON, err := json.Marshal(binding.Config)
	if err != nil {
		return fmt.Errorf("marshal binding config: %w", err)
	}
	if binding.Config == nil {
		configJSON = []byte(`{}`)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO category_actions (category_id, action_id, execution_order, config, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (category_id, action_id)
DO UPDATE SET execution_order = EXCLUDED.execution_order, config = EXCLUDED.config
`, binding.CategoryID, binding.ActionID, binding.ExecutionOrder, configJSON, binding.CreatedAt)
	if err != nil {
		return fmt.Errorf("bind action: %w", err)
	}
	return nil
}

func (r *RuleRepository) ListMatchers(ctx context.Context) ([]domain.Matcher, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, category_id, type, pattern, exclude, active, created_at
FROM matchers
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("list matchers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Matcher, 0)
	for rows.Next() {
		var m domain.Matcher
		var matcherType string
		if err := rows.Scan(&m.ID, &m.CategoryID, &matcherType, &m.Pattern, &m.Exclude, &m.Active, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan matcher: %w", err)
		}
		m.Type = domain.MatcherType(matcherType)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matchers: %w", err)
	}
	return out, nil
}

func (r *RuleRepository) CreateMatcher(ctx context.Context, m *domain.Matcher) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO matchers (id, category_id, type, pattern, exclude, active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, m.ID, m.CategoryID, string(m.Type), m.Pattern, m.Exclude, m.Active, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert matcher: %w", err)
	}
	return nil
}

func (r *RuleRepository) listAliases(ctx context.Context) ([]domain.CategoryAlias, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, alias, category_id, threshold, created_at, updated_at
FROM category_aliases
ORDER BY alias
`)
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CategoryAlias, 0)
	for rows.Next() {
		var a domain.CategoryAlias
		if err := rows.Scan(&a.ID, &a.Alias, &a.CategoryID, &a.Threshold, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aliases: %w", err)
	}
	return out, nil
}

// UpsertAlias treats a duplicate alias as an update: the operator correcting
// a mapping must not hit a unique-constraint error.
func (r *RuleRepository) UpsertAlias(ctx context.Context, alias *domain.CategoryAlias) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO category_aliases (id, alias, category_id, threshold, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (alias)
DO UPDATE SET category_id = EXCLUDED.category_id, threshold = EXCLUDED.threshold, updated_at = EXCLUDED.updated_at
`, alias.ID, alias.Alias, alias.CategoryID, alias.Threshold, alias.CreatedAt, alias.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert alias: %w", err)
	}
	return nil
}
