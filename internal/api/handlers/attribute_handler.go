package handlers

import (
	"net/http"
	"strconv"

	"github.com/isdelr/recipe-api-be/internal/models"
	"github.com/isdelr/recipe-api-be/internal/services"
	"github.com/isdelr/recipe-api-be/internal/validation"
)

// AttributeHandler serves the tag or ingredient endpoints, depending on the
// service it wraps.
type AttributeHandler struct {
	service   services.AttributeServiceProvider
	validator *validation.Validator
}

// NewAttributeHandler creates a new AttributeHandler.
func NewAttributeHandler(service services.AttributeServiceProvider, validator *validation.Validator) *AttributeHandler {
	return &AttributeHandler{service: service, validator: validator}
}

type attributeRequest struct {
	Name *string `json:"name" validate:"required,min=1,max=255"`
}

type attributePatchRequest struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=255"`
}

// GetAll lists the caller's attributes. assigned_only=1 keeps only those used
// by at least one recipe.
func (h *AttributeHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	assignedOnly := false
	if raw := r.URL.Query().Get("assigned_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			handleServiceError(w, r, services.NewValidationError("assigned_only", "must be 0 or 1"), "")
			return
		}
		assignedOnly = v
	}

	attrs, err := h.service.ListAttributes(r.Context(), userID, assignedOnly)
	if err != nil {
		handleServiceError(w, r, err, "Failed to list "+string(h.service.Kind())+"s")
		return
	}
	writeJSON(w, http.StatusOK, attrs)
}

// Get returns one of the caller's attributes.
func (h *AttributeHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	attr, err := h.service.GetAttribute(r.Context(), userID, id)
	if err != nil {
		handleServiceError(w, r, err, "Failed to get "+string(h.service.Kind()))
		return
	}
	writeJSON(w, http.StatusOK, attr)
}

// Update renames an attribute (PUT).
func (h *AttributeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req attributeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = trimmed(req.Name)
	h.rename(w, r, req, req.Name)
}

// Patch renames an attribute when a name is given (PATCH).
func (h *AttributeHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var req attributePatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = trimmed(req.Name)
	h.rename(w, r, req, req.Name)
}

func (h *AttributeHandler) rename(w http.ResponseWriter, r *http.Request, payload any, name *string) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.validator.Validate(payload); err != nil {
		handleServiceError(w, r, err, "Failed to validate "+string(h.service.Kind()))
		return
	}

	var err error
	var attr models.Attribute
	if name == nil {
		attr, err = h.service.GetAttribute(r.Context(), userID, id)
	} else {
		attr, err = h.service.UpdateAttribute(r.Context(), userID, id, *name)
	}
	if err != nil {
		handleServiceError(w, r, err, "Failed to update "+string(h.service.Kind()))
		return
	}
	writeJSON(w, http.StatusOK, attr)
}

// Delete removes one of the caller's attributes.
func (h *AttributeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteAttribute(r.Context(), userID, id); err != nil {
		handleServiceError(w, r, err, "Failed to delete "+string(h.service.Kind()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
