package service

import (
	"context"

	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/domain"
	apperrors "craftbot.io/craftbot/internal/pkg/errors"
	"craftbot.io/craftbot/internal/repository"
)

const entityUser = "user"

// UserService owns Telegram users.
type UserService struct{}

// NewUserService creates a new UserService.
func NewUserService() *UserService {
	return &UserService{}
}

// Register subscribes the user topics.
func (s *UserService) Register(b *bus.Bus) {
	b.Subscribe(domain.TopicUserUpsert, s.upsert)
	b.Subscribe(domain.TopicUserFetch, s.fetch)
}

func (s *UserService) upsert(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.UserUpsertPayload](evt)
	if err != nil {
		return nil, err
	}
	if p.TelegramID == 0 {
		return nil, apperrors.Invalid(entityUser, "upsert", "telegram id is required")
	}

	u := domain.User{
		Entity:       domain.NewEntity(now()),
		TelegramID:   p.TelegramID,
		Username:     p.Username,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		LanguageCode: p.LanguageCode,
		IsBot:        p.IsBot,
	}
	var saved domain.User
	err = exec(ctx, func(q *repository.Queries) error {
		var err error
		saved, err = q.UpsertUser(ctx, u)
		return err
	})
	if err != nil {
		return nil, outcome(ctx, entityUser, "upsert", err)
	}
	return []domain.User{saved}, nil
}

func (s *UserService) fetch(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.UserFetchPayload](evt)
	if err != nil {
		return nil, err
	}
	none, many := exclusive(p.ID != 0, p.TelegramID != 0)
	switch {
	case many:
		return nil, apperrors.Overload(entityUser, "fetch")
	case none:
		return nil, apperrors.Invalid(entityUser, "fetch", "id or telegram id is required")
	}

	var u domain.User
	err = exec(ctx, func(q *repository.Queries) error {
		var err error
		if p.ID != 0 {
			u, err = q.GetUserByID(ctx, p.ID)
		} else {
			u, err = q.GetUserByTelegramID(ctx, p.TelegramID)
		}
		if isNoRows(err) {
			return apperrors.NotFoundEntity(entityUser, "fetch")
		}
		return err
	})
	if err != nil {
		return nil, outcome(ctx, entityUser, "fetch", err)
	}
	return []domain.User{u}, nil
}
