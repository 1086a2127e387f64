package service

import (
	"context"

	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/domain"
	apperrors "craftbot.io/craftbot/internal/pkg/errors"
	"craftbot.io/craftbot/internal/repository"
)

const entityProgress = "progress"

// ProgressService owns the per-user record of unlocked elements. Base
// elements count as unlocked without a progress row.
type ProgressService struct{}

// NewProgressService creates a new ProgressService.
func NewProgressService() *ProgressService {
	return &ProgressService{}
}

// Register subscribes the progress topics.
func (s *ProgressService) Register(b *bus.Bus) {
	b.Subscribe(domain.TopicProgressCheck, s.check)
	b.Subscribe(domain.TopicProgressCreate, s.create)
	b.Subscribe(domain.TopicProgressFetch, s.fetch)
	b.Subscribe(domain.TopicProgressList, s.list)
}

func validProgressScope(userID int64, chatInstance string) bool {
	return userID > 0 && chatInstance != ""
}

// check returns []int64: the requested ids the user may use.
func (s *ProgressService) check(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.ProgressCheckPayload](evt)
	if err != nil {
		return nil, err
	}
	if !validProgressScope(p.UserID, p.ChatInstance) {
		return nil, apperrors.Invalid(entityProgress, "check", "user id and chat instance are required")
	}

	ids := []int64{}
	err = exec(ctx, func(q *repository.Queries) error {
		found, err := q.UnlockedElementIDs(ctx, p.UserID, p.ChatInstance, uniqueIDs(p.ElementIDs))
		ids = append(ids, found...)
		return err
	})
	if err != nil {
		return nil, outcome(ctx, entityProgress, "check", err)
	}
	return ids, nil
}

func (s *ProgressService) create(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.ProgressPayload](evt)
	if err != nil {
		return nil, err
	}
	if !validProgressScope(p.UserID, p.ChatInstance) || p.ElementID <= 0 {
		return nil, apperrors.Invalid(entityProgress, "create", "user id, chat instance and element id are required")
	}

	fact := domain.Progress{
		Entity:       domain.NewEntity(now()),
		UserID:       p.UserID,
		ChatInstance: p.ChatInstance,
		ElementID:    p.ElementID,
	}
	var created domain.Progress
	err = exec(ctx, func(q *repository.Queries) error {
		var err error
		created, err = q.CreateProgress(ctx, fact)
		if isNoRows(err) {
			return apperrors.AlreadyExists(entityProgress, "create")
		}
		return err
	})
	if err != nil {
		return nil, outcome(ctx, entityProgress, "create", err)
	}
	return []domain.Progress{created}, nil
}

func (s *ProgressService) fetch(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.ProgressPayload](evt)
	if err != nil {
		return nil, err
	}

	var fact domain.Progress
	err = exec(ctx, func(q *repository.Queries) error {
		var err error
		fact, err = q.GetProgress(ctx, p.UserID, p.ChatInstance, p.ElementID)
		if isNoRows(err) {
			return apperrors.NotFoundEntity(entityProgress, "fetch")
		}
		return err
	})
	if err != nil {
		return nil, outcome(ctx, entityProgress, "fetch", err)
	}
	return []domain.Progress{fact}, nil
}

// list returns []domain.Element the user has unlocked, base elements first.
func (s *ProgressService) list(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.ProgressListPayload](evt)
	if err != nil {
		return nil, err
	}
	if !validProgressScope(p.UserID, p.ChatInstance) {
		return nil, apperrors.Invalid(entityProgress, "list", "user id and chat instance are required")
	}

	var items []domain.Element
	err = exec(ctx, func(q *repository.Queries) error {
		var err error
		items, err = q.ListUnlockedElements(ctx, p.UserID, p.ChatInstance)
		return err
	})
	if err != nil {
		return nil, outcome(ctx, entityProgress, "list", err)
	}
	return items, nil
}
