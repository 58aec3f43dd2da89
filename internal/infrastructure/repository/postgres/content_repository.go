package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
)

// ContentRepository reads the external content store's items and lets the
// reprocess worker persist updated resolutions. The content_items table
// belongs to the content store; this repository never creates or drops it.
type ContentRepository struct {
	db *sql.DB
}

func NewContentRepository(db *sql.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) GetByID(ctx context.Context, id string) (*domain.ContentItem, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, url, title, raw_content, source_domain
FROM content_items
WHERE id = $1
`, id)

	var item domain.ContentItem
	err := row.Scan(&item.ID, &item.URL, &item.Title, &item.RawContent, &item.SourceDomain)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get content item", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan content item: %w", err)
	}
	return &item, nil
}

// ListByRawLabel finds items whose stored raw label normalizes to the given
// alias string. Used only by the out-of-band reprocess path.
func (r *ContentRepository) ListByRawLabel(ctx context.Context, normalizedLabel string) ([]domain.ContentItem, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, url, title, raw_content, source_domain
FROM content_items
WHERE lower(btrim(raw_label)) = $1
`, normalizedLabel)
	if err != nil {
		return nil, fmt.Errorf("list items by raw label: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ContentItem, 0)
	for rows.Next() {
		var item domain.ContentItem
		if err := rows.Scan(&item.ID, &item.URL, &item.Title, &item.RawContent, &item.SourceDomain); err != nil {
			return nil, fmt.Errorf("scan content item: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content items: %w", err)
	}
	return out, nil
}

func (r *ContentRepository) SaveResolution(ctx context.Context, itemID string, res domain.ResolutionResult) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE content_items
SET category_id = $2, resolution_tier = $3, resolution_confidence = $4, raw_label = $5, classified_at = $6
WHERE id = $1
`, itemID, res.Category.ID, string(res.Tier), res.Confidence, res.RawLabel, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save resolution: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save resolution rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "save resolution", fmt.Errorf("id=%s", itemID))
	}
	return nil
}
