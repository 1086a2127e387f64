package service

import (
	"context"

	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/domain"
	apperrors "craftbot.io/craftbot/internal/pkg/errors"
	"craftbot.io/craftbot/internal/repository"
)

const entityMembership = "membership"

// MembershipService links users and chats.
type MembershipService struct{}

// NewMembershipService creates a new MembershipService.
func NewMembershipService() *MembershipService {
	return &MembershipService{}
}

// Register subscribes the membership topics.
func (s *MembershipService) Register(b *bus.Bus) {
	b.Subscribe(domain.TopicMembershipUpsert, s.upsert)
	b.Subscribe(domain.TopicMembershipRemove, s.remove)
}

// resolveMember maps Telegram ids to stored user and chat ids.
func resolveMember(ctx context.Context, q *repository.Queries, op string, p domain.MembershipPayload) (userID, chatID int64, err error) {
	u, err := q.GetUserByTelegramID(ctx, p.UserTelegramID)
	if isNoRows(err) {
		return 0, 0, apperrors.NotFoundEntity(entityUser, op)
	}
	if err != nil {
		return 0, 0, err
	}
	c, err := q.GetChatByTelegramID(ctx, p.ChatTelegramID)
	if isNoRows(err) {
		return 0, 0, apperrors.NotFoundEntity(entityChat, op)
	}
	if err != nil {
		return 0, 0, err
	}
	return u.ID, c.ID, nil
}

func (s *MembershipService) upsert(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.MembershipPayload](evt)
	if err != nil {
		return nil, err
	}

	entity := domain.NewEntity(now())
	joined := p.JoinedAt.UTC()
	if p.JoinedAt.IsZero() {
		joined = entity.CreatedAt
	}

	var saved domain.Membership
	err = exec(ctx, func(q *repository.Queries) error {
		userID, chatID, err := resolveMember(ctx, q, "membership upsert", p)
		if err != nil {
			return err
		}
		saved, err = q.UpsertMembership(ctx, domain.Membership{
			Entity:   entity,
			UserID:   userID,
			ChatID:   chatID,
			JoinedAt: joined,
		})
		return err
	})
	if err != nil {
		return nil, outcome(ctx, entityMembership, "upsert", err)
	}
	return []domain.Membership{saved}, nil
}

// remove deletes a membership that must exist. It returns nil.
func (s *MembershipService) remove(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.MembershipPayload](evt)
	if err != nil {
		return nil, err
	}

	err = exec(ctx, func(q *repository.Queries) error {
		userID, chatID, err := resolveMember(ctx, q, "membership remove", p)
		if err != nil {
			return err
		}
		n, err := q.DeleteMembership(ctx, userID, chatID)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.NotFoundEntity(entityMembership, "remove")
		}
		return nil
	})
	return nil, outcome(ctx, entityMembership, "remove", err)
}
