package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/isdelr/recipe-api-be/internal/auth"
	"github.com/isdelr/recipe-api-be/internal/services"
	"github.com/rs/zerolog/log"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// decodeJSON reads the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// handleServiceError maps service errors onto HTTP responses. msg is logged
// for unexpected failures only.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Validation failed.", Fields: verr.Fields})
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "Unable to authenticate with provided credentials.")
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg(msg)
		writeError(w, http.StatusInternalServerError, "Internal server error.")
	}
}

// currentUserID returns the authenticated caller. Routes using it sit behind
// auth.Middleware, so a missing id is a wiring bug.
func currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		log.Error().Str("path", r.URL.Path).Msg("Could not retrieve user from request context")
		writeError(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
	}
	return userID, ok
}

// idParam parses the {id} URL parameter. Malformed ids read as not found.
func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "Not found.")
		return 0, false
	}
	return id, true
}
