package api

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/isdelr/recipe-api-be/internal/auth"
	"github.com/isdelr/recipe-api-be/internal/database"
	"github.com/isdelr/recipe-api-be/internal/models"
	"github.com/isdelr/recipe-api-be/internal/services"
	"github.com/isdelr/recipe-api-be/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *chi.Mux
	db     *sql.DB
	tokens *auth.TokenManager
	users  *services.UserService
	tags   *services.AttributeService
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	events := services.NewEventService(db, hub)
	users := services.NewUserService(db)
	tags := services.NewTagService(db, events)
	ingredients := services.NewIngredientService(db, events)
	recipes := services.NewRecipeService(db, tags, ingredients, events)
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	router := NewRouter(opts, db, hub, tokens, Services{
		Users:       users,
		Recipes:     recipes,
		Tags:        tags,
		Ingredients: ingredients,
		Events:      events,
	})
	return &testServer{router: router, db: db, tokens: tokens, users: users, tags: tags}
}

// login creates a user and returns a bearer token for it.
func (s *testServer) login(t *testing.T, email string) (models.User, string) {
	t.Helper()
	user, err := s.users.CreateUser(context.Background(), email, "testpass123", "")
	require.NoError(t, err)
	token, _, err := s.tokens.Generate(user)
	require.NoError(t, err)
	return user, token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type recipeJSON struct {
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	TimeMinutes int                `json:"time_minutes"`
	Price       string             `json:"price"`
	Link        string             `json:"link"`
	Description *string            `json:"description"`
	Tags        []models.Attribute `json:"tags"`
	Ingredients []models.Attribute `json:"ingredients"`
}

type errorJSON struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func samplePayload(title string) map[string]any {
	return map[string]any{
		"title":        title,
		"time_minutes": 22,
		"price":        "5.25",
		"description":  "Sample description",
		"link":         "https://example.com/recipe.pdf",
	}
}

func attrNames(attrs []models.Attribute) []string {
	out := make([]string, len(attrs))
	for i, a := range attrs {
		out[i] = a.Name
	}
	return out
}

func TestUserRegistrationAndToken(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := s.do(t, http.MethodPost, "/api/v1/user/create", "", map[string]string{
		"email": "Test2@Example.com", "password": "testpass123", "name": "Test Name",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	assert.Equal(t, "Test2@example.com", created["email"])
	assert.NotContains(t, created, "password")
	assert.NotContains(t, rec.Body.String(), "testpass123")

	rec = s.do(t, http.MethodPost, "/api/v1/user/token", "", map[string]string{
		"email": "Test2@example.com", "password": "testpass123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}](t, rec)
	require.NotEmpty(t, body.Token)
	assert.Equal(t, "Test2@example.com", body.User.Email)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	// The cookie alone authenticates.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/me", nil)
	req.AddCookie(cookie)
	me := httptest.NewRecorder()
	s.router.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "Test Name", decode[models.User](t, me).Name)
}

func TestUserRegistration_Invalid(t *testing.T) {
	s := newTestServer(t, Options{})
	s.login(t, "taken@example.com")

	tests := []struct {
		name  string
		body  map[string]string
		field string
	}{
		{"short password", map[string]string{"email": "a@example.com", "password": "pw"}, "password"},
		{"bad email", map[string]string{"email": "nope", "password": "testpass123"}, "email"},
		{"duplicate", map[string]string{"email": "taken@example.com", "password": "testpass123"}, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/user/create", "", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode[errorJSON](t, rec).Fields, tt.field)
		})
	}
}

func TestToken_BadCredentials(t *testing.T) {
	s := newTestServer(t, Options{})
	s.login(t, "test@example.com")

	rec := s.do(t, http.MethodPost, "/api/v1/user/token", "", map[string]string{
		"email": "test@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	rec = s.do(t, http.MethodPost, "/api/v1/user/token", "", map[string]string{"email": "test@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateMe(t *testing.T) {
	s := newTestServer(t, Options{})
	_, token := s.login(t, "test@example.com")

	rec := s.do(t, http.MethodPatch, "/api/v1/user/me/", token, map[string]string{"name": "Updated", "password": "newpassword123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Updated", decode[models.User](t, rec).Name)

	_, err := s.users.AuthenticateUser(context.Background(), "test@example.com", "newpassword123")
	assert.NoError(t, err)

	rec = s.do(t, http.MethodPut, "/api/v1/user/me/", token, map[string]string{"name": "No email"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorJSON](t, rec).Fields, "email")
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, Options{})

	for _, path := range []string{"/api/v1/recipes/", "/api/v1/tags/", "/api/v1/ingredients/", "/api/v1/user/me", "/api/v1/events", "/api/v1/recipes/1"} {
		rec := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestCreateRecipe(t *testing.T) {
	s := newTestServer(t, Options{})
	_, token := s.login(t, "test@example.com")

	rec := s.do(t, http.MethodPost, "/api/v1/recipes/", token, samplePayload("Sample recipe"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	recipe := decode[recipeJSON](t, rec)
	assert.NotZero(t, recipe.ID)
	assert.Equal(t, "5.25", recipe.Price)
	require.NotNil(t, recipe.Description)
	assert.Equal(t, "Sample description", *recipe.Description)
	assert.Empty(t, recipe.Tags)

	list := s.do(t, http.MethodGet, "/api/v1/recipes/", token, nil)
	require.Equal(t, http.StatusOK, list.Code)
	items := decode[[]recipeJSON](t, list)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].Description, "list items omit description")
}

func TestCreateRecipe_Validation(t *testing.T) {
	s := newTestServer(t, Options{})
	_, token := s.login(t, "test@example.com")

	payload := samplePayload("")
	payload["price"] = "1234.567"
	payload["link"] = "not a link"
	payload["tags"] = []map[string]string{{"name": "ok"}, {"name": "  "}}

	rec := s.do(t, http.MethodPost, "/api/v1/recipes/", token, payload)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode[errorJSON](t, rec).Fields
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "price")
	assert.Contains(t, fields, "link")
	assert.Contains(t, fields, "tags[1].name")

	rec = s.do(t, http.MethodPost, "/api/v1/recipes/", token, map[string]any{"title": "Only title"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields = decode[errorJSON](t, rec).Fields
	assert.Contains(t, fields, "time_minutes")
	assert.Contains(t, fields, "price")

	// Nothing was created by the rejected requests.
	tags := s.do(t, http.MethodGet, "/api/v1/tags/", token, nil)
	assert.Empty(t, decode[[]models.Attribute](t, tags))
}

func TestCreateRecipe_ReusesExistingTag(t *testing.T) {
	s := newTestServer(t, Options{})
	user, token := s.login(t, "test@example.com")
	indian, err := s.tags.Create(context.Background(), user.ID, "Indian")
	require.NoError(t, err)

	payload := samplePayload("Pongal")
	payload["tags"] = []map[string]string{{"name": "Indian"}, {"name": "Breakfast"}}
	rec := s.do(t, http.MethodPost, "/api/v1/recipes/", token, payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	recipe := decode[recipeJSON](t, rec)
	require.Len(t, recipe.Tags, 2)
	assert.Contains(t, recipe.Tags, models.Attribute{ID: indian.ID, Name: "Indian"})

	tags := decode[[]models.Attribute](t, s.do(t, http.MethodGet, "/api/v1/tags/", token, nil))
	assert.Len(t, tags, 2)
}

func TestCreateRecipe_IgnoresOwnerField(t *testing.T) {
	s := newTestServer(t, Options{})
	owner, token := s.login(t, "owner@example.com")
	other, otherToken := s.login(t, "other@example.com")

	payload := samplePayload("Mine")
	payload["user"] = other.ID
	payload["user_id"] = other.ID
	rec := s.do(t, http.MethodPost, "/api/v1/recipes/", token, payload)
	require.Equal(t, http.StatusCreated, rec.Code)
	recipe := decode[recipeJSON](t, rec)

	rec = s.do(t, http.MethodPatch, "/api/v1/recipes/"+itoa(recipe.ID), token, map[string]any{"user": other.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	var ownerID string
	require.NoError(t, s.db.QueryRow("SELECT user_id FROM recipes WHERE id = ?", recipe.ID).Scan(&ownerID))
	assert.Equal(t, owner.ID, ownerID)

	assert.Empty(t, decode[[]recipeJSON](t, s.do(t, http.MethodGet, "/api/v1/recipes/", otherToken, nil)))
}

func TestPatchRecipe(t *testing.T) {
	s := newTestServer(t, Options{})
	_, token := s.login(t, "test@example.com")

	payload := samplePayload("Original")
	payload["tags"] = []map[string]string{{"name": "Breakfast"}}
	payload["ingredients"] = []map[string]string{{"name": "Oats"}}
	recipe := decode[recipeJSON](t, s.do(t, http.MethodPost, "/api/v1/recipes/", token, payload))
	path := "/api/v1/recipes/" + itoa(recipe.ID)

	rec := s.do(t, http.MethodPatch, path, token, map[string]any{"title": "Renamed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched := decode[recipeJSON](t, rec)
	assert.Equal(t, "Renamed", patched.Title)
	assert.Equal(t, []string{"Breakfast"}, attrNames(patched.Tags))

	rec = s.do(t, http.MethodPatch, path, token, map[string]any{"tags": []any{}})
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := decode[recipeJSON](t, rec)
	assert.Empty(t, cleared.Tags)
	assert.Equal(t, []string{"Oats"}, attrNames(cleared.Ingredients))

	rec = s.do(t, http.MethodPatch, path, token, map[string]any{"price": "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPutRecipe(t *testing.T) {
	s := newTestServer(t, Options{})
	_, token := s.login(t, "test@example.com")

	payload := samplePayload("Original")
	payload["tags"] = []map[string]string{{"name": "Breakfast"}}
	recipe := decode[recipeJSON](t, s.do(t, http.MethodPost, "/api/v1/recipes/", token, payload))
	path := "/api/v1/recipes/" + itoa(recipe.ID)

	rec := s.do(t, http.MethodPut, path, token, map[string]any{"title": "Missing fields"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	replacement := map[string]any{
		"title":        "Spaghetti",
		"time_minutes": 25,
		"price":        5,
		"tags":         []map[string]string{{"name": "Dinner"}},
	}
	rec = s.do(t, http.MethodPut, path, token, replacement)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[recipeJSON](t, rec)
	assert.Equal(t, "Spaghetti", updated.Title)
	assert.Equal(t, 25, updated.TimeMinutes)
	assert.Equal(t, "5.00", updated.Price)
	assert.Equal(t, []string{"Dinner"}, attrNames(updated.Tags))
}

func TestRecipeOfOtherUser(t *testing.T) {
	s := newTestServer(t, Options{})
	_, ownerToken := s.login(t, "owner@example.com")
	_, intruderToken := s.login(t, "intruder@example.com")

	recipe := decode[recipeJSON](t, s.do(t, http.MethodPost, "/api/v1/recipes/", ownerToken, samplePayload("Private")))
	path := "/api/v1/recipes/" + itoa(recipe.ID)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, intruderToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPatch, path, intruderToken, map[string]any{"title": "Mine now"}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPut, path, intruderToken, samplePayload("Mine now")).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, path, intruderToken, nil).Code)

	rec := s.do(t, http.MethodGet, path, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Private", decode[recipeJSON](t, rec).Title)
}

func TestDeleteRecipe(t *testing.T) {
	s := newTestServer(t, Options{})
	_, token := s.login(t, "test@example.com")
	recipe := decode[recipeJSON](t, s.do(t, http.MethodPost, "/api/v1/recipes/", token, samplePayload("Gone")))
	path := "/api/v1/recipes/" + itoa(recipe.ID)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, path, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/recipes/abc", token, nil).Code)
}

func TestListRecipes_Filters(t *testing.T) {
	s := newTestServer(t, Options{})
	_, token := s.login(t, "test@example.com")

	p1 := samplePayload("Thai Vegetable Curry")
	p1["tags"] = []map[string]string{{"name": "Vegan"}}
	r1 := decode[recipeJSON](t, s.do(t, http.MethodPost, "/api/v1/recipes/", token, p1))
	p2 := samplePayload("Aubergine with Tahini")
	p2["tags"] = []map[string]string{{"name": "Vegetarian"}}
	p2["ingredients"] = []map[string]string{{"name": "Feta"}}
	r2 := decode[recipeJSON](t, s.do(t, http.MethodPost, "/api/v1/recipes/", token, p2))
	s.do(t, http.MethodPost, "/api/v1/recipes/", token, samplePayload("Fish and chips"))

	query := "/api/v1/recipes/?tags=" + itoa(r1.Tags[0].ID) + "," + itoa(r2.Tags[0].ID)
	rec := s.do(t, http.MethodGet, query, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]recipeJSON](t, rec)
	require.Len(t, got, 2)
	assert.Equal(t, r2.ID, got[0].ID)
	assert.Equal(t, r1.ID, got[1].ID)

	rec = s.do(t, http.MethodGet, "/api/v1/recipes/?ingredients="+itoa(r2.Ingredients[0].ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[[]recipeJSON](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, r2.ID, got[0].ID)

	rec = s.do(t, http.MethodGet, "/api/v1/recipes/?tags=1,x", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorJSON](t, rec).Fields, "tags")
}

func TestTags_ListAndAssignedOnly(t *testing.T) {
	s := newTestServer(t, Options{})
	user, token := s.login(t, "test@example.com")
	other, _ := s.login(t, "other@example.com")
	_, err := s.tags.Create(context.Background(), other.ID, "Foreign")
	require.NoError(t, err)
	_, err = s.tags.Create(context.Background(), user.ID, "Unused")
	require.NoError(t, err)

	for _, title := range []string{"Eggs Benedict", "Herb Eggs"} {
		payload := samplePayload(title)
		payload["ingredients"] = []map[string]string{{"name": "Eggs"}}
		payload["tags"] = []map[string]string{{"name": "Breakfast"}}
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/recipes/", token, payload).Code)
	}

	all := decode[[]models.Attribute](t, s.do(t, http.MethodGet, "/api/v1/tags/", token, nil))
	assert.Equal(t, []string{"Unused", "Breakfast"}, attrNames(all))

	assigned := decode[[]models.Attribute](t, s.do(t, http.MethodGet, "/api/v1/tags/?assigned_only=1", token, nil))
	assert.Equal(t, []string{"Breakfast"}, attrNames(assigned))

	eggs := decode[[]models.Attribute](t, s.do(t, http.MethodGet, "/api/v1/ingredients/?assigned_only=1", token, nil))
	assert.Equal(t, []string{"Eggs"}, attrNames(eggs))

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/tags/?assigned_only=maybe", token, nil).Code)
}

func TestTags_UpdateAndDelete(t *testing.T) {
	s := newTestServer(t, Options{})
	user, token := s.login(t, "test@example.com")
	_, otherToken := s.login(t, "other@example.com")
	ctx := context.Background()
	dessert, err := s.tags.Create(ctx, user.ID, "After Dinner")
	require.NoError(t, err)
	_, err = s.tags.Create(ctx, user.ID, "Taken")
	require.NoError(t, err)
	path := "/api/v1/tags/" + itoa(dessert.ID)

	rec := s.do(t, http.MethodPatch, path, token, map[string]string{"name": "Dessert"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Dessert", decode[models.Attribute](t, rec).Name)

	rec = s.do(t, http.MethodPut, path, token, map[string]string{"name": "Taken"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorJSON](t, rec).Fields, "name")

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPatch, path, otherToken, map[string]string{"name": "Mine"}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, path, otherToken, nil).Code)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, path, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, token, nil).Code)
}

func TestEvents(t *testing.T) {
	s := newTestServer(t, Options{})
	_, token := s.login(t, "test@example.com")
	s.do(t, http.MethodPost, "/api/v1/recipes/", token, samplePayload("Logged"))

	rec := s.do(t, http.MethodGet, "/api/v1/events?limit=5", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]models.Event](t, rec)
	require.NotEmpty(t, events)
	assert.Equal(t, "recipe.create", events[0].Type)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, Options{RateLimitRequests: 2, RateLimitWindow: time.Minute})
	creds := map[string]string{"email": "nobody@example.com", "password": "whatever"}

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/user/token", "", creds).Code)
	}
	rec := s.do(t, http.MethodPost, "/api/v1/user/token", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, decode[errorJSON](t, rec).Detail)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["database"])

	// Generate at least one request series before scraping.
	s.do(t, http.MethodGet, "/api/v1/recipes/", "", nil)
	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "recipe_api_requests_total"))
}

func TestHealth_DatabaseDown(t *testing.T) {
	s := newTestServer(t, Options{})
	require.NoError(t, s.db.Close())

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
