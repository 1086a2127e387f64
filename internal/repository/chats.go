package repository

import (
	"context"

	"craftbot.io/craftbot/internal/domain"
)

const chatColumns = `id, telegram_id, type, title, username, created_at, updated_at`

func scanChat(row scanner) (domain.Chat, error) {
	var c domain.Chat
	err := row.Scan(&c.ID, &c.TelegramID, &c.Type, &c.Title, &c.Username, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const upsertChat = `
INSERT INTO chats (id, telegram_id, type, title, username, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (telegram_id) DO UPDATE SET
    type = excluded.type,
    title = excluded.title,
    username = excluded.username,
    updated_at = excluded.updated_at
RETURNING ` + chatColumns

func (q *Queries) UpsertChat(ctx context.Context, c domain.Chat) (domain.Chat, error) {
	row := q.db.QueryRowContext(ctx, upsertChat,
		c.ID, c.TelegramID, c.Type, c.Title, c.Username, c.CreatedAt, c.UpdatedAt)
	return scanChat(row)
}

const getChatByID = `SELECT ` + chatColumns + ` FROM chats WHERE id = $1`

func (q *Queries) GetChatByID(ctx context.Context, id int64) (domain.Chat, error) {
	return scanChat(q.db.QueryRowContext(ctx, getChatByID, id))
}

const getChatByTelegramID = `SELECT ` + chatColumns + ` FROM chats WHERE telegram_id = $1`

func (q *Queries) GetChatByTelegramID(ctx context.Context, telegramID int64) (domain.Chat, error) {
	return scanChat(q.db.QueryRowContext(ctx, getChatByTelegramID, telegramID))
}
