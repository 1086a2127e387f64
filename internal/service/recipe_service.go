package service

import (
	"context"

	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/domain"
	apperrors "craftbot.io/craftbot/internal/pkg/errors"
	"craftbot.io/craftbot/internal/repository"
)

const entityRecipe = "recipe"

// RecipeService owns recipes. Inputs are stored and looked up in canonical
// order, so (a, b) and (b, a) are the same recipe.
type RecipeService struct{}

// NewRecipeService creates a new RecipeService.
func NewRecipeService() *RecipeService {
	return &RecipeService{}
}

// Register subscribes the recipe topics.
func (s *RecipeService) Register(b *bus.Bus) {
	b.Subscribe(domain.TopicRecipeCreate, s.create)
	b.Subscribe(domain.TopicRecipeFetch, s.fetch)
}

func (s *RecipeService) create(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.RecipeCreatePayload](evt)
	if err != nil {
		return nil, err
	}
	if p.ElementAID <= 0 || p.ElementBID <= 0 || p.ResultID <= 0 {
		return nil, apperrors.Invalid(entityRecipe, "create", "element ids must be positive")
	}

	a, b := domain.CanonicalPair(p.ElementAID, p.ElementBID)
	r := domain.Recipe{
		Entity:     domain.NewEntity(now()),
		ElementAID: a,
		ElementBID: b,
		ResultID:   p.ResultID,
	}
	var created domain.Recipe
	err = exec(ctx, func(q *repository.Queries) error {
		var err error
		created, err = q.CreateRecipe(ctx, r)
		if isNoRows(err) {
			return apperrors.AlreadyExists(entityRecipe, "create")
		}
		return err
	})
	if err != nil {
		return nil, outcome(ctx, entityRecipe, "create", err)
	}
	return []domain.Recipe{created}, nil
}

// fetch returns the recipe of a pair, or an empty list when none exists.
func (s *RecipeService) fetch(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.RecipeFetchPayload](evt)
	if err != nil {
		return nil, err
	}

	a, b := domain.CanonicalPair(p.ElementAID, p.ElementBID)
	items := []domain.Recipe{}
	err = exec(ctx, func(q *repository.Queries) error {
		r, err := q.GetRecipeByPair(ctx, a, b)
		switch {
		case isNoRows(err):
			return nil
		case err != nil:
			return err
		}
		items = append(items, r)
		return nil
	})
	if err != nil {
		return nil, outcome(ctx, entityRecipe, "fetch", err)
	}
	return items, nil
}
