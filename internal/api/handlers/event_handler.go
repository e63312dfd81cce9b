package handlers

import (
	"net/http"
	"strconv"

	"github.com/isdelr/recipe-api-be/internal/services"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 100
)

// EventHandler handles HTTP requests related to activity events.
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

// GetRecent returns the caller's most recent events.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultEventLimit
	}
	limit = min(limit, maxEventLimit)

	events, err := h.service.GetRecentEvents(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, r, err, "Failed to retrieve events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}
