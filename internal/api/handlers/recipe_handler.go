package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/isdelr/recipe-api-be/internal/models"
	"github.com/isdelr/recipe-api-be/internal/services"
	"github.com/isdelr/recipe-api-be/internal/validation"
	"github.com/shopspring/decimal"
)

// RecipeHandler handles HTTP requests for recipes.
type RecipeHandler struct {
	service   services.RecipeServiceProvider
	validator *validation.Validator
}

// NewRecipeHandler creates a new RecipeHandler.
func NewRecipeHandler(service services.RecipeServiceProvider, validator *validation.Validator) *RecipeHandler {
	return &RecipeHandler{service: service, validator: validator}
}

// recipeRequest is the body of POST and PUT. Unknown keys, including any
// attempt to set an owner, are ignored.
type recipeRequest struct {
	Title       *string                       `json:"title" validate:"required,min=1,max=255"`
	TimeMinutes *int                          `json:"time_minutes" validate:"required,gte=0"`
	Price       *decimal.Decimal              `json:"price" validate:"required,money"`
	Description *string                       `json:"description"`
	Link        *string                       `json:"link" validate:"omitempty,max=255,link"`
	Tags        *[]models.AttributeDescriptor `json:"tags" validate:"omitempty,dive"`
	Ingredients *[]models.AttributeDescriptor `json:"ingredients" validate:"omitempty,dive"`
}

// recipePatchRequest is the body of PATCH; every key is optional.
type recipePatchRequest struct {
	Title       *string                       `json:"title" validate:"omitempty,min=1,max=255"`
	TimeMinutes *int                          `json:"time_minutes" validate:"omitempty,gte=0"`
	Price       *decimal.Decimal              `json:"price" validate:"omitempty,money"`
	Description *string                       `json:"description"`
	Link        *string                       `json:"link" validate:"omitempty,max=255,link"`
	Tags        *[]models.AttributeDescriptor `json:"tags" validate:"omitempty,dive"`
	Ingredients *[]models.AttributeDescriptor `json:"ingredients" validate:"omitempty,dive"`
}

func (req *recipeRequest) input() models.RecipeInput {
	return models.RecipeInput{
		Title:       trimmed(req.Title),
		TimeMinutes: req.TimeMinutes,
		Price:       req.Price,
		Description: req.Description,
		Link:        trimmed(req.Link),
		Tags:        trimDescriptors(req.Tags),
		Ingredients: trimDescriptors(req.Ingredients),
	}
}

func (req *recipePatchRequest) input() models.RecipeInput {
	full := recipeRequest(*req)
	return full.input()
}

// recipeResponse is a recipe as shown in listings.
type recipeResponse struct {
	ID          int64               `json:"id"`
	Title       string              `json:"title"`
	TimeMinutes int                 `json:"time_minutes"`
	Price       string              `json:"price"`
	Link        string              `json:"link"`
	Tags        []models.Tag        `json:"tags"`
	Ingredients []models.Ingredient `json:"ingredients"`
}

// recipeDetailResponse adds the description for single-recipe views.
type recipeDetailResponse struct {
	recipeResponse
	Description string `json:"description"`
}

func newRecipeResponse(recipe models.Recipe) recipeResponse {
	return recipeResponse{
		ID:          recipe.ID,
		Title:       recipe.Title,
		TimeMinutes: recipe.TimeMinutes,
		Price:       recipe.Price.StringFixed(2),
		Link:        recipe.Link,
		Tags:        recipe.Tags,
		Ingredients: recipe.Ingredients,
	}
}

func newRecipeDetailResponse(recipe models.Recipe) recipeDetailResponse {
	return recipeDetailResponse{
		recipeResponse: newRecipeResponse(recipe),
		Description:    recipe.Description,
	}
}

// GetAll lists the caller's recipes, optionally filtered by tag and
// ingredient ids.
func (h *RecipeHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var filter models.RecipeFilter
	var err error
	query := r.URL.Query()
	if filter.TagIDs, err = parseIDList(query.Get("tags")); err != nil {
		handleServiceError(w, r, services.NewValidationError("tags", "must be a comma separated list of ids"), "")
		return
	}
	if filter.IngredientIDs, err = parseIDList(query.Get("ingredients")); err != nil {
		handleServiceError(w, r, services.NewValidationError("ingredients", "must be a comma separated list of ids"), "")
		return
	}

	recipes, err := h.service.ListRecipes(r.Context(), userID, filter)
	if err != nil {
		handleServiceError(w, r, err, "Failed to list recipes")
		return
	}

	out := make([]recipeResponse, len(recipes))
	for i, recipe := range recipes {
		out[i] = newRecipeResponse(recipe)
	}
	writeJSON(w, http.StatusOK, out)
}

// Get returns one of the caller's recipes.
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	recipe, err := h.service.GetRecipe(r.Context(), userID, id)
	if err != nil {
		handleServiceError(w, r, err, "Failed to get recipe")
		return
	}
	writeJSON(w, http.StatusOK, newRecipeDetailResponse(recipe))
}

// Create stores a new recipe owned by the caller.
func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req recipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	input := req.input()
	if err := h.validator.Validate(req.withInput(input)); err != nil {
		handleServiceError(w, r, err, "Failed to validate recipe")
		return
	}

	recipe, err := h.service.CreateRecipe(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, r, err, "Failed to create recipe")
		return
	}
	writeJSON(w, http.StatusCreated, newRecipeDetailResponse(recipe))
}

// Update replaces a recipe (PUT).
func (h *RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	input := req.input()
	h.update(w, r, req.withInput(input), input)
}

// Patch updates the keys present in the body.
func (h *RecipeHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var req recipePatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	input := req.input()
	full := recipeRequest(req).withInput(input)
	h.update(w, r, recipePatchRequest(full), input)
}

func (h *RecipeHandler) update(w http.ResponseWriter, r *http.Request, payload any, input models.RecipeInput) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.validator.Validate(payload); err != nil {
		handleServiceError(w, r, err, "Failed to validate recipe")
		return
	}

	recipe, err := h.service.UpdateRecipe(r.Context(), userID, id, input)
	if err != nil {
		handleServiceError(w, r, err, "Failed to update recipe")
		return
	}
	writeJSON(w, http.StatusOK, newRecipeDetailResponse(recipe))
}

// Delete removes one of the caller's recipes.
func (h *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteRecipe(r.Context(), userID, id); err != nil {
		handleServiceError(w, r, err, "Failed to delete recipe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// withInput returns the request with its trimmed values, so validation sees
// what will be stored.
func (req recipeRequest) withInput(input models.RecipeInput) recipeRequest {
	req.Title = input.Title
	req.Link = input.Link
	req.Tags = input.Tags
	req.Ingredients = input.Ingredients
	return req
}

// parseIDList parses "1,2,3". An empty string yields no ids.
func parseIDList(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func trimDescriptors(in *[]models.AttributeDescriptor) *[]models.AttributeDescriptor {
	if in == nil {
		return nil
	}
	out := make([]models.AttributeDescriptor, len(*in))
	for i, d := range *in {
		out[i] = models.AttributeDescriptor{Name: strings.TrimSpace(d.Name)}
	}
	return &out
}
