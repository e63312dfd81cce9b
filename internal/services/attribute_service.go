package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/isdelr/recipe-api-be/internal/metrics"
	"github.com/isdelr/recipe-api-be/internal/models"
)

// AttributeServiceProvider defines the interface for tag and ingredient services.
type AttributeServiceProvider interface {
	AttributeRepository
	Kind() models.AttributeKind
	ListAttributes(ctx context.Context, ownerID string, assignedOnly bool) ([]models.Attribute, error)
	GetAttribute(ctx context.Context, ownerID string, id int64) (models.Attribute, error)
	UpdateAttribute(ctx context.Context, ownerID string, id int64, name string) (models.Attribute, error)
	DeleteAttribute(ctx context.Context, ownerID string, id int64) error
	SetRecipeAttributes(ctx context.Context, ownerID string, recipeID int64, ids []int64) error
	AttributesForRecipes(ctx context.Context, recipeIDs []int64) (map[int64][]models.Attribute, error)
}

// attributeTable names the tables backing one attribute kind.
type attributeTable struct {
	table      string // tags
	joinTable  string // recipe_tags
	joinColumn string // tag_id
}

var attributeTables = map[models.AttributeKind]attributeTable{
	models.KindTag:        {table: "tags", joinTable: "recipe_tags", joinColumn: "tag_id"},
	models.KindIngredient: {table: "ingredients", joinTable: "recipe_ingredients", joinColumn: "ingredient_id"},
}

// AttributeService provides business logic for tags or ingredients.
type AttributeService struct {
	db           *sql.DB
	kind         models.AttributeKind
	tbl          attributeTable
	eventService EventServiceProvider
}

// NewTagService creates an AttributeService over tags.
func NewTagService(db *sql.DB, eventService EventServiceProvider) *AttributeService {
	return newAttributeService(db, models.KindTag, eventService)
}

// NewIngredientService creates an AttributeService over ingredients.
func NewIngredientService(db *sql.DB, eventService EventServiceProvider) *AttributeService {
	return newAttributeService(db, models.KindIngredient, eventService)
}

func newAttributeService(db *sql.DB, kind models.AttributeKind, eventService EventServiceProvider) *AttributeService {
	return &AttributeService{
		db:           db,
		kind:         kind,
		tbl:          attributeTables[kind],
		eventService: eventService,
	}
}

// Kind returns which attribute kind the service manages.
func (s *AttributeService) Kind() models.AttributeKind {
	return s.kind
}

func scanAttribute(scanner interface{ Scan(...any) error }) (models.Attribute, error) {
	var a models.Attribute
	err := scanner.Scan(&a.ID, &a.Name, &a.UserID)
	return a, err
}

func (s *AttributeService) scanAttributes(rows *sql.Rows) ([]models.Attribute, error) {
	attrs := []models.Attribute{}
	for rows.Next() {
		a, err := scanAttribute(rows)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, rows.Err()
}

// FindByOwnerAndName looks up an attribute by its exact, case-sensitive name.
func (s *AttributeService) FindByOwnerAndName(ctx context.Context, ownerID, name string) (models.Attribute, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, user_id FROM `+s.tbl.table+` WHERE user_id = ? AND name = ?`, ownerID, name)
	a, err := scanAttribute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Attribute{}, ErrNotFound
	}
	return a, err
}

// Create inserts a new attribute. When a concurrent request created the same
// (owner, name) first, the existing row is returned instead.
func (s *AttributeService) Create(ctx context.Context, ownerID, name string) (models.Attribute, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.tbl.table+` (user_id, name) VALUES (?, ?)`, ownerID, name)
	if isUniqueViolation(err) {
		return s.FindByOwnerAndName(ctx, ownerID, name)
	}
	if err != nil {
		return models.Attribute{}, fmt.Errorf("insert %s: %w", s.kind, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Attribute{}, err
	}

	metrics.AttributesCreated.WithLabelValues(string(s.kind)).Inc()
	s.eventService.CreateEvent(ctx, ownerID, string(s.kind)+".create", fmt.Sprintf("%s '%s' created.", s.label(), name))
	return models.Attribute{ID: id, Name: name, UserID: ownerID}, nil
}

// ListAttributes returns the owner's attributes by descending name. With
// assignedOnly, only attributes linked to at least one of the owner's recipes
// are returned, each once.
func (s *AttributeService) ListAttributes(ctx context.Context, ownerID string, assignedOnly bool) ([]models.Attribute, error) {
	query := `SELECT id, name, user_id FROM ` + s.tbl.table + ` WHERE user_id = ? ORDER BY name DESC`
	args := []any{ownerID}
	if assignedOnly {
		query = `
			SELECT DISTINCT a.id, a.name, a.user_id
			FROM ` + s.tbl.table + ` a
			JOIN ` + s.tbl.joinTable + ` j ON j.` + s.tbl.joinColumn + ` = a.id
			JOIN recipes r ON r.id = j.recipe_id
			WHERE a.user_id = ? AND r.user_id = ?
			ORDER BY a.name DESC`
		args = append(args, ownerID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanAttributes(rows)
}

// GetAttribute retrieves one of the owner's attributes.
func (s *AttributeService) GetAttribute(ctx context.Context, ownerID string, id int64) (models.Attribute, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, user_id FROM `+s.tbl.table+` WHERE id = ? AND user_id = ?`, id, ownerID)
	a, err := scanAttribute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Attribute{}, ErrNotFound
	}
	return a, err
}

// UpdateAttribute renames one of the owner's attributes.
func (s *AttributeService) UpdateAttribute(ctx context.Context, ownerID string, id int64, name string) (models.Attribute, error) {
	existing, err := s.GetAttribute(ctx, ownerID, id)
	if err != nil {
		return models.Attribute{}, err
	}
	if existing.Name == name {
		return existing, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE `+s.tbl.table+` SET name = ? WHERE id = ? AND user_id = ?`, name, id, ownerID)
	if isUniqueViolation(err) {
		return models.Attribute{}, NewValidationError("name", fmt.Sprintf("a %s with this name already exists", s.kind))
	}
	if err != nil {
		return models.Attribute{}, err
	}

	s.eventService.CreateEvent(ctx, ownerID, string(s.kind)+".update",
		fmt.Sprintf("%s '%s' renamed to '%s'.", s.label(), existing.Name, name))
	return s.GetAttribute(ctx, ownerID, id)
}

// DeleteAttribute removes one of the owner's attributes along with its
// recipe links. Recipes themselves are untouched.
func (s *AttributeService) DeleteAttribute(ctx context.Context, ownerID string, id int64) error {
	existing, err := s.GetAttribute(ctx, ownerID, id)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM `+s.tbl.table+` WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	s.eventService.CreateEvent(ctx, ownerID, string(s.kind)+".delete", fmt.Sprintf("%s '%s' was deleted.", s.label(), existing.Name))
	return nil
}

// SetRecipeAttributes replaces the recipe's links for this kind with ids.
// Every id must belong to ownerID; otherwise nothing changes and ErrNotFound
// is returned.
func (s *AttributeService) SetRecipeAttributes(ctx context.Context, ownerID string, recipeID int64, ids []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	// Write first so the tx holds the write lock before it reads.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM `+s.tbl.joinTable+` WHERE recipe_id = ?`, recipeID); err != nil {
		return fmt.Errorf("delete %s: %w", s.tbl.joinTable, err)
	}

	if len(unique) > 0 {
		args := make([]any, 0, len(unique)+1)
		args = append(args, ownerID)
		for _, id := range unique {
			args = append(args, id)
		}
		var owned int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+s.tbl.table+` WHERE user_id = ? AND id IN (`+placeholders(len(unique))+`)`,
			args...).Scan(&owned)
		if err != nil {
			return err
		}
		if owned != len(unique) {
			return fmt.Errorf("%s not owned by recipe owner: %w", s.kind, ErrNotFound)
		}
	}

	for _, id := range unique {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+s.tbl.joinTable+` (recipe_id, `+s.tbl.joinColumn+`) VALUES (?, ?)`,
			recipeID, id); err != nil {
			return fmt.Errorf("insert %s: %w", s.tbl.joinTable, err)
		}
	}

	return tx.Commit()
}

// AttributesForRecipes loads the linked attributes of each recipe, ordered by id.
func (s *AttributeService) AttributesForRecipes(ctx context.Context, recipeIDs []int64) (map[int64][]models.Attribute, error) {
	out := make(map[int64][]models.Attribute, len(recipeIDs))
	if len(recipeIDs) == 0 {
		return out, nil
	}

	args := make([]any, len(recipeIDs))
	for i, id := range recipeIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT j.recipe_id, a.id, a.name, a.user_id
		FROM `+s.tbl.joinTable+` j
		JOIN `+s.tbl.table+` a ON a.id = j.`+s.tbl.joinColumn+`
		WHERE j.recipe_id IN (`+placeholders(len(recipeIDs))+`)
		ORDER BY a.id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var recipeID int64
		var a models.Attribute
		if err := rows.Scan(&recipeID, &a.ID, &a.Name, &a.UserID); err != nil {
			return nil, err
		}
		out[recipeID] = append(out[recipeID], a)
	}
	return out, rows.Err()
}

func (s *AttributeService) label() string {
	if s.kind == models.KindIngredient {
		return "Ingredient"
	}
	return "Tag"
}
