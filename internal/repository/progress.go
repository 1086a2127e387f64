package repository

import (
	"context"

	"craftbot.io/craftbot/internal/domain"
)

const progressColumns = `id, user_id, chat_instance, element_id, created_at, updated_at`

func scanProgress(row scanner) (domain.Progress, error) {
	var p domain.Progress
	err := row.Scan(&p.ID, &p.UserID, &p.ChatInstance, &p.ElementID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const createProgress = `
INSERT INTO progress (id, user_id, chat_instance, element_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, chat_instance, element_id) DO NOTHING
RETURNING ` + progressColumns

// CreateProgress inserts p. An existing fact yields sql.ErrNoRows.
func (q *Queries) CreateProgress(ctx context.Context, p domain.Progress) (domain.Progress, error) {
	row := q.db.QueryRowContext(ctx, createProgress,
		p.ID, p.UserID, p.ChatInstance, p.ElementID, p.CreatedAt, p.UpdatedAt)
	return scanProgress(row)
}

const getProgress = `SELECT ` + progressColumns + ` FROM progress
WHERE user_id = $1 AND chat_instance = $2 AND element_id = $3`

func (q *Queries) GetProgress(ctx context.Context, userID int64, chatInstance string, elementID int64) (domain.Progress, error) {
	return scanProgress(q.db.QueryRowContext(ctx, getProgress, userID, chatInstance, elementID))
}

// UnlockedElementIDs returns the ids among ids that the user may use: base
// elements plus those recorded in progress.
func (q *Queries) UnlockedElementIDs(ctx context.Context, userID int64, chatInstance string, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in := placeholders(3, len(ids))
	query := `SELECT id FROM elements WHERE is_base AND id IN (` + in + `)
UNION
SELECT element_id FROM progress WHERE user_id = $1 AND chat_instance = $2 AND element_id IN (` + in + `)`

	rows, err := q.db.QueryContext(ctx, query, int64Args([]any{userID, chatInstance}, ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

const listUnlockedElements = `SELECT ` + elementColumns + ` FROM elements e
WHERE e.is_base
   OR EXISTS (
       SELECT 1 FROM progress p
       WHERE p.element_id = e.id AND p.user_id = $1 AND p.chat_instance = $2
   )
ORDER BY e.is_base DESC, e.created_at, e.id`

// ListUnlockedElements returns base elements first, then discoveries in
// the order they were created.
func (q *Queries) ListUnlockedElements(ctx context.Context, userID int64, chatInstance string) ([]domain.Element, error) {
	return collectElements(ctx, q.db, listUnlockedElements, userID, chatInstance)
}
