package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recipe is a user-owned recipe with its tag and ingredient sets.
type Recipe struct {
	ID          int64
	UserID      string
	Title       string
	TimeMinutes int
	Price       decimal.Decimal
	Description string
	Link        string
	Tags        []Tag
	Ingredients []Ingredient
	CreatedAt   time.Time
}

// RecipeInput is the write model for create and update. A nil field was
// absent from the payload. Tags and Ingredients distinguish absent (nil) from
// an explicit empty list, which clears the set.
type RecipeInput struct {
	Title       *string
	TimeMinutes *int
	Price       *decimal.Decimal
	Description *string
	Link        *string
	Tags        *[]AttributeDescriptor
	Ingredients *[]AttributeDescriptor
}

// RecipeFilter restricts a recipe listing to recipes carrying any of the
// given tag or ingredient ids.
type RecipeFilter struct {
	TagIDs        []int64
	IngredientIDs []int64
}
