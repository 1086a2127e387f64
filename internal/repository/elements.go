package repository

import (
	"context"

	"craftbot.io/craftbot/internal/domain"
)

const elementColumns = `id, name, emoji, is_base, created_at, updated_at`

func scanElement(row scanner) (domain.Element, error) {
	var e domain.Element
	err := row.Scan(&e.ID, &e.Name, &e.Emoji, &e.IsBase, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func collectElements(ctx context.Context, db DBTX, query string, args ...any) ([]domain.Element, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Element
	for rows.Next() {
		e, err := scanElement(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const createElement = `
INSERT INTO elements (id, name, emoji, is_base, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (name) DO NOTHING
RETURNING ` + elementColumns

// CreateElement inserts e. A taken name yields sql.ErrNoRows.
func (q *Queries) CreateElement(ctx context.Context, e domain.Element) (domain.Element, error) {
	row := q.db.QueryRowContext(ctx, createElement,
		e.ID, e.Name, e.Emoji, e.IsBase, e.CreatedAt, e.UpdatedAt)
	return scanElement(row)
}

const getElementByName = `SELECT ` + elementColumns + ` FROM elements WHERE name = $1`

func (q *Queries) GetElementByName(ctx context.Context, name string) (domain.Element, error) {
	return scanElement(q.db.QueryRowContext(ctx, getElementByName, name))
}

// GetElementsByIDs returns the elements among ids, ordered by id.
func (q *Queries) GetElementsByIDs(ctx context.Context, ids []int64) ([]domain.Element, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + elementColumns + ` FROM elements WHERE id IN (` + placeholders(1, len(ids)) + `) ORDER BY id`
	return collectElements(ctx, q.db, query, int64Args(nil, ids)...)
}

const listBaseElements = `SELECT ` + elementColumns + ` FROM elements WHERE is_base ORDER BY id`

func (q *Queries) ListBaseElements(ctx context.Context) ([]domain.Element, error) {
	return collectElements(ctx, q.db, listBaseElements)
}
