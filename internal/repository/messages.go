package repository

import (
	"context"
	"database/sql"
	"time"

	"craftbot.io/craftbot/internal/domain"
)

const messageColumns = `id, telegram_id, chat_id, user_id, text, sent_at, created_at, updated_at`

func scanMessage(row scanner) (domain.Message, error) {
	var (
		m      domain.Message
		userID sql.NullInt64
	)
	err := row.Scan(&m.ID, &m.TelegramID, &m.ChatID, &userID, &m.Text, &m.SentAt, &m.CreatedAt, &m.UpdatedAt)
	if userID.Valid {
		m.UserID = &userID.Int64
	}
	return m, err
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

const insertMessage = `
INSERT INTO messages (id, telegram_id, chat_id, user_id, text, sent_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (chat_id, telegram_id) DO NOTHING
RETURNING ` + messageColumns

// InsertMessage stores m. A message already stored for the chat yields
// sql.ErrNoRows.
func (q *Queries) InsertMessage(ctx context.Context, m domain.Message) (domain.Message, error) {
	row := q.db.QueryRowContext(ctx, insertMessage,
		m.ID, m.TelegramID, m.ChatID, nullInt64(m.UserID), m.Text, m.SentAt, m.CreatedAt, m.UpdatedAt)
	return scanMessage(row)
}

const countMessagesByChat = `SELECT COUNT(*) FROM messages WHERE chat_id = $1`

func (q *Queries) CountMessagesByChat(ctx context.Context, chatID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countMessagesByChat, chatID).Scan(&n)
	return n, err
}

const deleteMessagesBefore = `DELETE FROM messages WHERE sent_at < $1`

// DeleteMessagesBefore removes messages sent before cutoff and returns how
// many were removed.
func (q *Queries) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteMessagesBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
