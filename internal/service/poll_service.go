package service

import (
	"context"

	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/domain"
	apperrors "craftbot.io/craftbot/internal/pkg/errors"
	"craftbot.io/craftbot/internal/repository"
)

const (
	entityPoll       = "poll"
	entityPollAnswer = "poll answer"
)

// PollService stores polls and votes.
type PollService struct{}

// NewPollService creates a new PollService.
func NewPollService() *PollService {
	return &PollService{}
}

// Register subscribes the poll topics.
func (s *PollService) Register(b *bus.Bus) {
	b.Subscribe(domain.TopicPollSave, s.save)
	b.Subscribe(domain.TopicPollAnswer, s.answer)
}

func (s *PollService) save(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.PollSavePayload](evt)
	if err != nil {
		return nil, err
	}
	if p.TelegramID == "" || p.Question == "" {
		return nil, apperrors.Invalid(entityPoll, "save", "poll id and question are required")
	}

	poll := domain.Poll{
		Entity:         domain.NewEntity(now()),
		TelegramID:     p.TelegramID,
		Question:       p.Question,
		Options:        p.Options,
		IsAnonymous:    p.IsAnonymous,
		AllowsMultiple: p.AllowsMultiple,
	}
	var saved domain.Poll
	err = exec(ctx, func(q *repository.Queries) error {
		if p.ChatTelegramID != 0 {
			c, err := q.GetChatByTelegramID(ctx, p.ChatTelegramID)
			if isNoRows(err) {
				return apperrors.NotFoundEntity(entityChat, "poll save")
			}
			if err != nil {
				return err
			}
			poll.ChatID = &c.ID
		}
		var err error
		saved, err = q.UpsertPoll(ctx, poll)
		return err
	})
	if err != nil {
		return nil, outcome(ctx, entityPoll, "save", err)
	}
	return []domain.Poll{saved}, nil
}

func (s *PollService) answer(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.PollAnswerPayload](evt)
	if err != nil {
		return nil, err
	}

	entity := domain.NewEntity(now())
	var saved domain.PollAnswer
	err = exec(ctx, func(q *repository.Queries) error {
		poll, err := q.GetPollByTelegramID(ctx, p.PollTelegramID)
		if isNoRows(err) {
			return apperrors.NotFoundEntity(entityPoll, "answer")
		}
		if err != nil {
			return err
		}
		u, err := q.GetUserByTelegramID(ctx, p.UserTelegramID)
		if isNoRows(err) {
			return apperrors.NotFoundEntity(entityUser, "poll answer")
		}
		if err != nil {
			return err
		}
		saved, err = q.UpsertPollAnswer(ctx, domain.PollAnswer{
			Entity:    entity,
			PollID:    poll.ID,
			UserID:    u.ID,
			OptionIDs: p.OptionIDs,
		})
		return err
	})
	if err != nil {
		return nil, outcome(ctx, entityPollAnswer, "answer", err)
	}
	return []domain.PollAnswer{saved}, nil
}
