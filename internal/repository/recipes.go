package repository

import (
	"context"

	"craftbot.io/craftbot/internal/domain"
)

const recipeColumns = `id, element_a_id, element_b_id, result_id, created_at, updated_at`

func scanRecipe(row scanner) (domain.Recipe, error) {
	var r domain.Recipe
	err := row.Scan(&r.ID, &r.ElementAID, &r.ElementBID, &r.ResultID, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

const createRecipe = `
INSERT INTO recipes (id, element_a_id, element_b_id, result_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (element_a_id, element_b_id) DO NOTHING
RETURNING ` + recipeColumns

// CreateRecipe inserts r, whose inputs must already be in canonical order.
// An existing pair yields sql.ErrNoRows.
func (q *Queries) CreateRecipe(ctx context.Context, r domain.Recipe) (domain.Recipe, error) {
	row := q.db.QueryRowContext(ctx, createRecipe,
		r.ID, r.ElementAID, r.ElementBID, r.ResultID, r.CreatedAt, r.UpdatedAt)
	return scanRecipe(row)
}

const getRecipeByPair = `SELECT ` + recipeColumns + ` FROM recipes WHERE element_a_id = $1 AND element_b_id = $2`

// GetRecipeByPair looks up a canonical pair.
func (q *Queries) GetRecipeByPair(ctx context.Context, a, b int64) (domain.Recipe, error) {
	return scanRecipe(q.db.QueryRowContext(ctx, getRecipeByPair, a, b))
}
