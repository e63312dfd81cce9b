package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/isdelr/recipe-api-be/internal/database"
	"github.com/isdelr/recipe-api-be/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// testEnv bundles services backed by a fresh SQLite database.
type testEnv struct {
	db          *sql.DB
	users       *UserService
	events      *EventService
	tags        *AttributeService
	ingredients *AttributeService
	recipes     *RecipeService
	notifier    *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	notifier := &recordingNotifier{}
	events := NewEventService(db, notifier)
	users := NewUserService(db)
	users.hashCost = bcrypt.MinCost
	tags := NewTagService(db, events)
	ingredients := NewIngredientService(db, events)

	return &testEnv{
		db:          db,
		users:       users,
		events:      events,
		tags:        tags,
		ingredients: ingredients,
		recipes:     NewRecipeService(db, tags, ingredients, events),
		notifier:    notifier,
	}
}

func (e *testEnv) createUser(t *testing.T, email string) models.User {
	t.Helper()
	user, err := e.users.CreateUser(context.Background(), email, "testpass123", "")
	require.NoError(t, err)
	return user
}

func (e *testEnv) createRecipe(t *testing.T, ownerID, title string) models.Recipe {
	t.Helper()
	recipe, err := e.recipes.CreateRecipe(context.Background(), ownerID, recipeInput(title))
	require.NoError(t, err)
	return recipe
}

func recipeInput(title string) models.RecipeInput {
	minutes := 22
	price := decimal.RequireFromString("6.32")
	description := "Sample recipe description"
	link := "https://example.com/recipe.pdf"
	return models.RecipeInput{
		Title:       &title,
		TimeMinutes: &minutes,
		Price:       &price,
		Description: &description,
		Link:        &link,
	}
}

func descriptors(names ...string) *[]models.AttributeDescriptor {
	out := make([]models.AttributeDescriptor, len(names))
	for i, n := range names {
		out[i] = models.AttributeDescriptor{Name: n}
	}
	return &out
}

func names(attrs []models.Attribute) []string {
	out := make([]string, len(attrs))
	for i, a := range attrs {
		out[i] = a.Name
	}
	return out
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Event
}

func (n *recordingNotifier) Publish(_ string, event models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}
