package service

import (
	"context"

	"go.uber.org/zap"

	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/domain"
	apperrors "craftbot.io/craftbot/internal/pkg/errors"
	"craftbot.io/craftbot/internal/pkg/logger"
	"craftbot.io/craftbot/internal/repository"
)

const entityMessage = "message"

// MessageService stores chat messages and enforces their retention.
type MessageService struct{}

// NewMessageService creates a new MessageService.
func NewMessageService() *MessageService {
	return &MessageService{}
}

// Register subscribes the message topics.
func (s *MessageService) Register(b *bus.Bus) {
	b.Subscribe(domain.TopicMessageSave, s.save)
	b.Subscribe(domain.TopicMessagePurge, s.purge)
}

func (s *MessageService) save(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.MessageSavePayload](evt)
	if err != nil {
		return nil, err
	}
	if p.TelegramID == 0 || p.ChatTelegramID == 0 {
		return nil, apperrors.Invalid(entityMessage, "save", "message and chat ids are required")
	}

	m := domain.Message{
		Entity:     domain.NewEntity(now()),
		TelegramID: p.TelegramID,
		Text:       p.Text,
		SentAt:     p.SentAt.UTC(),
	}
	if p.SentAt.IsZero() {
		m.SentAt = m.CreatedAt
	}

	var saved domain.Message
	err = exec(ctx, func(q *repository.Queries) error {
		c, err := q.GetChatByTelegramID(ctx, p.ChatTelegramID)
		if isNoRows(err) {
			return apperrors.NotFoundEntity(entityChat, "message save")
		}
		if err != nil {
			return err
		}
		m.ChatID = c.ID

		if p.UserTelegramID != 0 {
			u, err := q.GetUserByTelegramID(ctx, p.UserTelegramID)
			if isNoRows(err) {
				return apperrors.NotFoundEntity(entityUser, "message save")
			}
			if err != nil {
				return err
			}
			m.UserID = &u.ID
		}

		saved, err = q.InsertMessage(ctx, m)
		if isNoRows(err) {
			return apperrors.AlreadyExists(entityMessage, "save")
		}
		return err
	})
	if err != nil {
		return nil, outcome(ctx, entityMessage, "save", err)
	}
	return []domain.Message{saved}, nil
}

// purge returns the number of deleted messages as int64.
func (s *MessageService) purge(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.MessagePurgePayload](evt)
	if err != nil {
		return nil, err
	}
	if p.Before.IsZero() {
		return nil, apperrors.Invalid(entityMessage, "purge", "cutoff is required")
	}

	var n int64
	err = exec(ctx, func(q *repository.Queries) error {
		var err error
		n, err = q.DeleteMessagesBefore(ctx, p.Before.UTC())
		return err
	})
	if err != nil {
		return nil, outcome(ctx, entityMessage, "purge", err)
	}
	logger.Ctx(ctx).Info("Messages purged",
		zap.Time("before", p.Before),
		zap.Int64("deleted", n),
	)
	return n, nil
}
