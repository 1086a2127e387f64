package service

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"craftbot.io/craftbot/internal/agent"
	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/domain"
	apperrors "craftbot.io/craftbot/internal/pkg/errors"
	"craftbot.io/craftbot/internal/pkg/logger"
	"craftbot.io/craftbot/internal/repository"
)

const entityElement = "element"

// ElementService owns elements and the language-model generation step.
type ElementService struct {
	agent agent.Agent
}

// NewElementService creates a new ElementService.
func NewElementService(a agent.Agent) *ElementService {
	return &ElementService{agent: a}
}

// Register subscribes the element topics.
func (s *ElementService) Register(b *bus.Bus) {
	b.Subscribe(domain.TopicElementCreate, s.create)
	b.Subscribe(domain.TopicElementFetch, s.fetch)
	b.Subscribe(domain.TopicElementGenerate, s.generate)
	b.Subscribe(domain.TopicElementListBase, s.listBase)
}

// create returns []domain.Element with the new element.
func (s *ElementService) create(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.ElementCreatePayload](evt)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, apperrors.Invalid(entityElement, "create", "name is required")
	}

	e := domain.Element{
		Entity: domain.NewEntity(now()),
		Name:   name,
		Emoji:  strings.TrimSpace(p.Emoji),
		IsBase: p.IsBase,
	}
	var created domain.Element
	err = exec(ctx, func(q *repository.Queries) error {
		var err error
		created, err = q.CreateElement(ctx, e)
		if isNoRows(err) {
			return apperrors.AlreadyExists(entityElement, "create")
		}
		return err
	})
	if err != nil {
		return nil, outcome(ctx, entityElement, "create", err)
	}
	return []domain.Element{created}, nil
}

// fetch returns []domain.Element selected by ids or by name. Any requested
// element that does not exist is a not-found error.
func (s *ElementService) fetch(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.ElementFetchPayload](evt)
	if err != nil {
		return nil, err
	}
	none, many := exclusive(len(p.IDs) > 0, p.Name != "")
	switch {
	case many:
		return nil, apperrors.Overload(entityElement, "fetch")
	case none:
		return nil, apperrors.Invalid(entityElement, "fetch", "ids or name is required")
	}

	var items []domain.Element
	err = exec(ctx, func(q *repository.Queries) error {
		if p.Name != "" {
			e, err := q.GetElementByName(ctx, p.Name)
			if isNoRows(err) {
				return apperrors.NotFoundEntity(entityElement, "fetch")
			}
			items = []domain.Element{e}
			return err
		}

		ids := uniqueIDs(p.IDs)
		found, err := q.GetElementsByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if len(found) != len(ids) {
			return apperrors.NotFoundEntity(entityElement, "fetch")
		}
		items = found
		return nil
	})
	if err != nil {
		return nil, outcome(ctx, entityElement, "fetch", err)
	}
	return items, nil
}

// generate returns []domain.GeneratedElement. It does not touch storage.
func (s *ElementService) generate(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.ElementGeneratePayload](evt)
	if err != nil {
		return nil, err
	}

	res, err := s.agent.Combine(ctx, p.A, p.B)
	if err != nil {
		logger.Ctx(ctx).Warn("Agent failed to combine elements",
			zap.String("a", p.A.Name),
			zap.String("b", p.B.Name),
			zap.Error(err),
		)
		return nil, apperrors.Wrap(err, apperrors.CodeAgentUnavailable,
			"element generator is unavailable", http.StatusBadGateway)
	}
	if err := res.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeAgentUnavailable,
			"element generator returned an invalid element", http.StatusBadGateway)
	}
	return []domain.GeneratedElement{{
		Name:   res.Result.Name,
		Emoji:  res.Result.Emoji,
		Reason: res.Reason,
	}}, nil
}

// listBase returns []domain.Element of base elements.
func (s *ElementService) listBase(ctx context.Context, _ bus.Event) (any, error) {
	var items []domain.Element
	err := exec(ctx, func(q *repository.Queries) error {
		var err error
		items, err = q.ListBaseElements(ctx)
		return err
	})
	if err != nil {
		return nil, outcome(ctx, entityElement, "list_base", err)
	}
	return items, nil
}
