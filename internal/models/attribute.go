package models

// Attribute is a named label owned by a single user and attached to recipes.
// Tags and ingredients share this shape and the same matching rules: an
// attribute is identified by its (owner, name) pair, compared exactly.
type Attribute struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	UserID string `json:"-"`
}

// Tag labels a recipe, e.g. "Breakfast".
type Tag = Attribute

// Ingredient is something a recipe uses, e.g. "Eggs".
type Ingredient = Attribute

// AttributeDescriptor references a tag or ingredient by name inside a recipe
// payload. A descriptor that matches nothing creates a new attribute.
type AttributeDescriptor struct {
	Name string `json:"name" validate:"required,max=255"`
}

// AttributeKind tells which attribute table an operation targets.
type AttributeKind string

const (
	KindTag        AttributeKind = "tag"
	KindIngredient AttributeKind = "ingredient"
)
