package repository

import (
	"context"

	"craftbot.io/craftbot/internal/domain"
)

const userColumns = `id, telegram_id, username, first_name, last_name, language_code, is_bot, created_at, updated_at`

func scanUser(row scanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName,
		&u.LanguageCode, &u.IsBot, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const upsertUser = `
INSERT INTO users (id, telegram_id, username, first_name, last_name, language_code, is_bot, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (telegram_id) DO UPDATE SET
    username = excluded.username,
    first_name = excluded.first_name,
    last_name = excluded.last_name,
    language_code = excluded.language_code,
    is_bot = excluded.is_bot,
    updated_at = excluded.updated_at
RETURNING ` + userColumns

// UpsertUser inserts u or refreshes the profile of the user with the same
// Telegram id, keeping its identity.
func (q *Queries) UpsertUser(ctx context.Context, u domain.User) (domain.User, error) {
	row := q.db.QueryRowContext(ctx, upsertUser,
		u.ID, u.TelegramID, u.Username, u.FirstName, u.LastName, u.LanguageCode, u.IsBot,
		u.CreatedAt, u.UpdatedAt)
	return scanUser(row)
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const getUserByTelegramID = `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

func (q *Queries) GetUserByTelegramID(ctx context.Context, telegramID int64) (domain.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByTelegramID, telegramID))
}
