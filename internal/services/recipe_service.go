package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/isdelr/recipe-api-be/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RecipeServiceProvider defines the interface for recipe services. Every
// method is scoped to ownerID; another user's recipe reads as ErrNotFound.
type RecipeServiceProvider interface {
	ListRecipes(ctx context.Context, ownerID string, filter models.RecipeFilter) ([]models.Recipe, error)
	GetRecipe(ctx context.Context, ownerID string, id int64) (models.Recipe, error)
	CreateRecipe(ctx context.Context, ownerID string, input models.RecipeInput) (models.Recipe, error)
	UpdateRecipe(ctx context.Context, ownerID string, id int64, input models.RecipeInput) (models.Recipe, error)
	DeleteRecipe(ctx context.Context, ownerID string, id int64) error
}

// RecipeService provides business logic for recipe management.
type RecipeService struct {
	db           *sql.DB
	tags         AttributeServiceProvider
	ingredients  AttributeServiceProvider
	eventService EventServiceProvider
}

// NewRecipeService creates a new RecipeService.
func NewRecipeService(db *sql.DB, tags, ingredients AttributeServiceProvider, eventService EventServiceProvider) *RecipeService {
	return &RecipeService{
		db:           db,
		tags:         tags,
		ingredients:  ingredients,
		eventService: eventService,
	}
}

const recipeColumns = "r.id, r.user_id, r.title, r.time_minutes, r.price, r.description, r.link, r.created_at"

func scanRecipe(scanner interface{ Scan(...any) error }) (models.Recipe, error) {
	var recipe models.Recipe
	var price, createdAt string
	err := scanner.Scan(&recipe.ID, &recipe.UserID, &recipe.Title, &recipe.TimeMinutes,
		&price, &recipe.Description, &recipe.Link, &createdAt)
	if err != nil {
		return models.Recipe{}, err
	}
	if recipe.Price, err = decimal.NewFromString(price); err != nil {
		return models.Recipe{}, fmt.Errorf("recipe %d price: %w", recipe.ID, err)
	}
	if recipe.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Recipe{}, err
	}
	return recipe, nil
}

// ListRecipes returns the owner's recipes, newest first.
func (s *RecipeService) ListRecipes(ctx context.Context, ownerID string, filter models.RecipeFilter) ([]models.Recipe, error) {
	query := "SELECT " + recipeColumns + " FROM recipes r WHERE r.user_id = ?"
	args := []any{ownerID}

	if len(filter.TagIDs) > 0 {
		query += " AND r.id IN (SELECT recipe_id FROM recipe_tags WHERE tag_id IN (" + placeholders(len(filter.TagIDs)) + "))"
		for _, id := range filter.TagIDs {
			args = append(args, id)
		}
	}
	if len(filter.IngredientIDs) > 0 {
		query += " AND r.id IN (SELECT recipe_id FROM recipe_ingredients WHERE ingredient_id IN (" + placeholders(len(filter.IngredientIDs)) + "))"
		for _, id := range filter.IngredientIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY r.id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipes := []models.Recipe{}
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadAttributes(ctx, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// GetRecipe retrieves one of the owner's recipes with its tags and ingredients.
func (s *RecipeService) GetRecipe(ctx context.Context, ownerID string, id int64) (models.Recipe, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recipeColumns+" FROM recipes r WHERE r.id = ? AND r.user_id = ?", id, ownerID)
	recipe, err := scanRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Recipe{}, fmt.Errorf("recipe %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Recipe{}, err
	}

	recipes := []models.Recipe{recipe}
	if err := s.loadAttributes(ctx, recipes); err != nil {
		return models.Recipe{}, err
	}
	return recipes[0], nil
}

// CreateRecipe stores a new recipe owned by ownerID and resolves any nested
// tags and ingredients.
func (s *RecipeService) CreateRecipe(ctx context.Context, ownerID string, input models.RecipeInput) (models.Recipe, error) {
	if err := requireRecipeFields(input); err != nil {
		return models.Recipe{}, err
	}

	recipe := models.Recipe{
		UserID:      ownerID,
		Title:       *input.Title,
		TimeMinutes: *input.TimeMinutes,
		Price:       *input.Price,
		CreatedAt:   time.Now().UTC(),
	}
	if input.Description != nil {
		recipe.Description = *input.Description
	}
	if input.Link != nil {
		recipe.Link = *input.Link
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO recipes (user_id, title, time_minutes, price, description, link, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		recipe.UserID, recipe.Title, recipe.TimeMinutes, recipe.Price.StringFixed(2),
		recipe.Description, recipe.Link, formatTime(recipe.CreatedAt))
	if err != nil {
		return models.Recipe{}, fmt.Errorf("failed to insert recipe: %w", err)
	}
	if recipe.ID, err = res.LastInsertId(); err != nil {
		return models.Recipe{}, err
	}

	if err := s.applyAssociations(ctx, ownerID, recipe.ID, input); err != nil {
		// Resolved tags and ingredients stay; the half-built recipe does not.
		if _, delErr := s.db.ExecContext(context.WithoutCancel(ctx),
			"DELETE FROM recipes WHERE id = ?", recipe.ID); delErr != nil {
			log.Error().Err(delErr).Int64("recipe_id", recipe.ID).Msg("Failed to remove partially created recipe")
		}
		return models.Recipe{}, err
	}

	s.eventService.CreateEvent(ctx, ownerID, "recipe.create", fmt.Sprintf("Recipe '%s' created.", recipe.Title))
	return s.GetRecipe(ctx, ownerID, recipe.ID)
}

// UpdateRecipe applies the fields present in input. A present tag or
// ingredient list replaces that set entirely; an absent one is left alone.
// The owner never changes.
func (s *RecipeService) UpdateRecipe(ctx context.Context, ownerID string, id int64, input models.RecipeInput) (models.Recipe, error) {
	recipe, err := s.GetRecipe(ctx, ownerID, id)
	if err != nil {
		return models.Recipe{}, err
	}

	if input.Title != nil {
		recipe.Title = *input.Title
	}
	if input.TimeMinutes != nil {
		recipe.TimeMinutes = *input.TimeMinutes
	}
	if input.Price != nil {
		recipe.Price = *input.Price
	}
	if input.Description != nil {
		recipe.Description = *input.Description
	}
	if input.Link != nil {
		recipe.Link = *input.Link
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE recipes SET title = ?, time_minutes = ?, price = ?, description = ?, link = ?
		WHERE id = ? AND user_id = ?`,
		recipe.Title, recipe.TimeMinutes, recipe.Price.StringFixed(2),
		recipe.Description, recipe.Link, id, ownerID)
	if err != nil {
		return models.Recipe{}, fmt.Errorf("failed to update recipe: %w", err)
	}

	if err := s.applyAssociations(ctx, ownerID, id, input); err != nil {
		return models.Recipe{}, err
	}

	s.eventService.CreateEvent(ctx, ownerID, "recipe.update", fmt.Sprintf("Recipe '%s' updated.", recipe.Title))
	return s.GetRecipe(ctx, ownerID, id)
}

// DeleteRecipe removes one of the owner's recipes. Its tags and ingredients
// are kept; only the links go.
func (s *RecipeService) DeleteRecipe(ctx context.Context, ownerID string, id int64) error {
	recipe, err := s.GetRecipe(ctx, ownerID, id)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM recipes WHERE id = ? AND user_id = ?", id, ownerID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("recipe %d: %w", id, ErrNotFound)
	}

	s.eventService.CreateEvent(ctx, ownerID, "recipe.delete", fmt.Sprintf("Recipe '%s' was deleted.", recipe.Title))
	return nil
}

// applyAssociations resolves each nested list present in input and replaces
// the matching link set.
func (s *RecipeService) applyAssociations(ctx context.Context, ownerID string, recipeID int64, input models.RecipeInput) error {
	nested := []struct {
		svc         AttributeServiceProvider
		descriptors *[]models.AttributeDescriptor
	}{
		{s.tags, input.Tags},
		{s.ingredients, input.Ingredients},
	}

	for _, n := range nested {
		if n.descriptors == nil {
			continue
		}
		attrs, err := ResolveAttributes(ctx, n.svc, ownerID, *n.descriptors)
		if err != nil {
			return fmt.Errorf("failed to resolve %ss: %w", n.svc.Kind(), err)
		}
		if err := n.svc.SetRecipeAttributes(ctx, ownerID, recipeID, attributeIDs(attrs)); err != nil {
			return fmt.Errorf("failed to set %ss: %w", n.svc.Kind(), err)
		}
	}
	return nil
}

// loadAttributes fills Tags and Ingredients on each recipe in place.
func (s *RecipeService) loadAttributes(ctx context.Context, recipes []models.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	ids := make([]int64, len(recipes))
	for i, r := range recipes {
		ids[i] = r.ID
	}

	tags, err := s.tags.AttributesForRecipes(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	ingredients, err := s.ingredients.AttributesForRecipes(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load ingredients: %w", err)
	}

	for i := range recipes {
		recipes[i].Tags = nonNil(tags[recipes[i].ID])
		recipes[i].Ingredients = nonNil(ingredients[recipes[i].ID])
	}
	return nil
}

func requireRecipeFields(input models.RecipeInput) error {
	missing := map[string]string{}
	if input.Title == nil {
		missing["title"] = "is required"
	}
	if input.TimeMinutes == nil {
		missing["time_minutes"] = "is required"
	}
	if input.Price == nil {
		missing["price"] = "is required"
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

func nonNil(attrs []models.Attribute) []models.Attribute {
	if attrs == nil {
		return []models.Attribute{}
	}
	return attrs
}
