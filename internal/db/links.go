package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"makosite/internal/directory"
	"makosite/internal/models"
)

var _ directory.Store = (*DB)(nil)

// linkColumns is the standard column list for link queries.
const linkColumns = `id::text, title, url, type, description, icon, is_active, priority,
	creator, created_at, updated_at`

// sortColumns maps directory sort fields to columns.
var sortColumns = map[string]string{
	"priority":  "priority",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"title":     "title",
}

// scanLink scans a row into a Link struct.
func scanLink(row pgx.Row) (*models.Link, error) {
	var link models.Link
	err := row.Scan(
		&link.ID,
		&link.Title,
		&link.URL,
		&link.Type,
		&link.Description,
		&link.Icon,
		&link.IsActive,
		&link.Priority,
		&link.Creator,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return nil, classify(err)
	}
	return &link, nil
}

// scanLinks scans multiple rows into a slice of Links.
func scanLinks(rows pgx.Rows) ([]models.Link, error) {
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *link)
	}

	return links, classify(rows.Err())
}

// orderBy builds an ORDER BY clause from known fields only. Unknown fields
// are skipped; an empty result falls back to the directory order.
func orderBy(sort []directory.SortField) string {
	parts := make([]string, 0, len(sort))
	for _, s := range sort {
		col, ok := sortColumns[s.Field]
		if !ok {
			continue
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	if len(parts) == 0 {
		return "ORDER BY priority DESC, created_at DESC"
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}

// List returns links matching filter in the requested order.
func (d *DB) List(ctx context.Context, filter directory.Filter, sort []directory.SortField) ([]models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links
		WHERE ($1::boolean IS NULL OR is_active = $1) ` + orderBy(sort)

	rows, err := d.Pool.Query(ctx, query, filter.IsActive)
	if err != nil {
		return nil, classify(err)
	}
	return scanLinks(rows)
}

// Create inserts link and returns the stored record with its new id.
func (d *DB) Create(ctx context.Context, link models.Link) (*models.Link, error) {
	query := `
		INSERT INTO links (title, url, type, description, icon, is_active, priority, creator, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
			COALESCE($9, NOW()), COALESCE($10, NOW()))
		RETURNING ` + linkColumns

	return scanLink(d.Pool.QueryRow(ctx, query,
		link.Title,
		link.URL,
		link.Type,
		link.Description,
		link.Icon,
		link.IsActive,
		link.Priority,
		link.Creator,
		nullTime(link.CreatedAt),
		nullTime(link.UpdatedAt),
	))
}

// Update applies the non-nil fields of patch to the link with the given id.
func (d *DB) Update(ctx context.Context, id string, patch models.LinkPatch) (*models.Link, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrLinkNotFound
	}

	query := `
		UPDATE links SET
			title       = COALESCE($2, title),
			url         = COALESCE($3, url),
			type        = COALESCE($4, type),
			description = COALESCE($5, description),
			icon        = COALESCE($6, icon),
			is_active   = COALESCE($7, is_active),
			priority    = COALESCE($8, priority),
			updated_at  = COALESCE($9, NOW())
		WHERE id = $1
		RETURNING ` + linkColumns

	link, err := scanLink(d.Pool.QueryRow(ctx, query,
		id,
		patch.Title,
		patch.URL,
		patch.Type,
		patch.Description,
		patch.Icon,
		patch.IsActive,
		patch.Priority,
		patch.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("update link %s: %w", id, err)
	}
	return link, nil
}

// Delete removes the link with the given id.
func (d *DB) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrLinkNotFound
	}

	tag, err := d.Pool.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// CountLinks returns the number of links, optionally only active ones.
func (d *DB) CountLinks(ctx context.Context, activeOnly bool) (int, error) {
	var n int
	err := d.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM links WHERE NOT $1::boolean OR is_active`, activeOnly).Scan(&n)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// nullTime maps the zero time to NULL so the column default applies.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
