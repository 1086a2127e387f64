package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"craftbot.io/craftbot/internal/domain"
)

const pollColumns = `id, telegram_id, chat_id, question, options, is_anonymous, allows_multiple, created_at, updated_at`

func scanPoll(row scanner) (domain.Poll, error) {
	var (
		p       domain.Poll
		chatID  sql.NullInt64
		options string
	)
	if err := row.Scan(&p.ID, &p.TelegramID, &chatID, &p.Question, &options,
		&p.IsAnonymous, &p.AllowsMultiple, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, err
	}
	if chatID.Valid {
		p.ChatID = &chatID.Int64
	}
	if err := json.Unmarshal([]byte(options), &p.Options); err != nil {
		return p, fmt.Errorf("decode poll options: %w", err)
	}
	return p, nil
}

const upsertPoll = `
INSERT INTO polls (id, telegram_id, chat_id, question, options, is_anonymous, allows_multiple, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (telegram_id) DO UPDATE SET
    question = excluded.question,
    options = excluded.options,
    updated_at = excluded.updated_at
RETURNING ` + pollColumns

// UpsertPoll stores p or refreshes the poll with the same Telegram id.
func (q *Queries) UpsertPoll(ctx context.Context, p domain.Poll) (domain.Poll, error) {
	options, err := json.Marshal(nonNil(p.Options))
	if err != nil {
		return domain.Poll{}, fmt.Errorf("encode poll options: %w", err)
	}
	row := q.db.QueryRowContext(ctx, upsertPoll,
		p.ID, p.TelegramID, nullInt64(p.ChatID), p.Question, string(options),
		p.IsAnonymous, p.AllowsMultiple, p.CreatedAt, p.UpdatedAt)
	return scanPoll(row)
}

const getPollByTelegramID = `SELECT ` + pollColumns + ` FROM polls WHERE telegram_id = $1`

func (q *Queries) GetPollByTelegramID(ctx context.Context, telegramID string) (domain.Poll, error) {
	return scanPoll(q.db.QueryRowContext(ctx, getPollByTelegramID, telegramID))
}

const pollAnswerColumns = `id, poll_id, user_id, option_ids, created_at, updated_at`

func scanPollAnswer(row scanner) (domain.PollAnswer, error) {
	var (
		a   domain.PollAnswer
		ids string
	)
	if err := row.Scan(&a.ID, &a.PollID, &a.UserID, &ids, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return a, err
	}
	if err := json.Unmarshal([]byte(ids), &a.OptionIDs); err != nil {
		return a, fmt.Errorf("decode poll answer: %w", err)
	}
	return a, nil
}

const upsertPollAnswer = `
INSERT INTO poll_answers (id, poll_id, user_id, option_ids, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (poll_id, user_id) DO UPDATE SET
    option_ids = excluded.option_ids,
    updated_at = excluded.updated_at
RETURNING ` + pollAnswerColumns

// UpsertPollAnswer records the user's latest vote.
func (q *Queries) UpsertPollAnswer(ctx context.Context, a domain.PollAnswer) (domain.PollAnswer, error) {
	ids, err := json.Marshal(nonNil(a.OptionIDs))
	if err != nil {
		return domain.PollAnswer{}, fmt.Errorf("encode poll answer: %w", err)
	}
	row := q.db.QueryRowContext(ctx, upsertPollAnswer,
		a.ID, a.PollID, a.UserID, string(ids), a.CreatedAt, a.UpdatedAt)
	return scanPollAnswer(row)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
