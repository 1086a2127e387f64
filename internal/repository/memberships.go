package repository

import (
	"context"

	"craftbot.io/craftbot/internal/domain"
)

const membershipColumns = `id, user_id, chat_id, joined_at, created_at, updated_at`

func scanMembership(row scanner) (domain.Membership, error) {
	var m domain.Membership
	err := row.Scan(&m.ID, &m.UserID, &m.ChatID, &m.JoinedAt, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const upsertMembership = `
INSERT INTO memberships (id, user_id, chat_id, joined_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, chat_id) DO UPDATE SET
    updated_at = excluded.updated_at
RETURNING ` + membershipColumns

// UpsertMembership inserts m or touches the existing link, keeping the
// original join time.
func (q *Queries) UpsertMembership(ctx context.Context, m domain.Membership) (domain.Membership, error) {
	row := q.db.QueryRowContext(ctx, upsertMembership,
		m.ID, m.UserID, m.ChatID, m.JoinedAt, m.CreatedAt, m.UpdatedAt)
	return scanMembership(row)
}

const getMembership = `SELECT ` + membershipColumns + ` FROM memberships WHERE user_id = $1 AND chat_id = $2`

func (q *Queries) GetMembership(ctx context.Context, userID, chatID int64) (domain.Membership, error) {
	return scanMembership(q.db.QueryRowContext(ctx, getMembership, userID, chatID))
}

const deleteMembership = `DELETE FROM memberships WHERE user_id = $1 AND chat_id = $2`

// DeleteMembership returns the number of rows removed.
func (q *Queries) DeleteMembership(ctx context.Context, userID, chatID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteMembership, userID, chatID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
