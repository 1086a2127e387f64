package service

import (
	"context"

	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/domain"
	apperrors "craftbot.io/craftbot/internal/pkg/errors"
	"craftbot.io/craftbot/internal/repository"
)

const entityChat = "chat"

// ChatService owns Telegram chats.
type ChatService struct{}

// NewChatService creates a new ChatService.
func NewChatService() *ChatService {
	return &ChatService{}
}

// Register subscribes the chat topics.
func (s *ChatService) Register(b *bus.Bus) {
	b.Subscribe(domain.TopicChatUpsert, s.upsert)
	b.Subscribe(domain.TopicChatFetch, s.fetch)
}

func (s *ChatService) upsert(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.ChatUpsertPayload](evt)
	if err != nil {
		return nil, err
	}
	if p.TelegramID == 0 || p.Type == "" {
		return nil, apperrors.Invalid(entityChat, "upsert", "telegram id and type are required")
	}

	c := domain.Chat{
		Entity:     domain.NewEntity(now()),
		TelegramID: p.TelegramID,
		Type:       p.Type,
		Title:      p.Title,
		Username:   p.Username,
	}
	var saved domain.Chat
	err = exec(ctx, func(q *repository.Queries) error {
		var err error
		saved, err = q.UpsertChat(ctx, c)
		return err
	})
	if err != nil {
		return nil, outcome(ctx, entityChat, "upsert", err)
	}
	return []domain.Chat{saved}, nil
}

func (s *ChatService) fetch(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.ChatFetchPayload](evt)
	if err != nil {
		return nil, err
	}
	none, many := exclusive(p.ID != 0, p.TelegramID != 0)
	switch {
	case many:
		return nil, apperrors.Overload(entityChat, "fetch")
	case none:
		return nil, apperrors.Invalid(entityChat, "fetch", "id or telegram id is required")
	}

	var c domain.Chat
	err = exec(ctx, func(q *repository.Queries) error {
		var err error
		if p.ID != 0 {
			c, err = q.GetChatByID(ctx, p.ID)
		} else {
			c, err = q.GetChatByTelegramID(ctx, p.TelegramID)
		}
		if isNoRows(err) {
			return apperrors.NotFoundEntity(entityChat, "fetch")
		}
		return err
	})
	if err != nil {
		return nil, outcome(ctx, entityChat, "fetch", err)
	}
	return []domain.Chat{c}, nil
}
