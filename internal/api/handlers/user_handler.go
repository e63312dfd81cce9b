package handlers

import (
	"net/http"
	"strings"

	"github.com/isdelr/recipe-api-be/internal/auth"
	"github.com/isdelr/recipe-api-be/internal/models"
	"github.com/isdelr/recipe-api-be/internal/services"
	"github.com/isdelr/recipe-api-be/internal/validation"
	"github.com/rs/zerolog/log"
)

// UserHandler handles HTTP requests for user management.
type UserHandler struct {
	service      services.UserServiceProvider
	eventService services.EventServiceProvider
	tokens       *auth.TokenManager
	validator    *validation.Validator
	secureCookie bool
}

// NewUserHandler creates a new UserHandler. secureCookie marks the token
// cookie Secure, for deployments behind TLS.
func NewUserHandler(service services.UserServiceProvider, eventService services.EventServiceProvider, tokens *auth.TokenManager, validator *validation.Validator, secureCookie bool) *UserHandler {
	return &UserHandler{
		service:      service,
		eventService: eventService,
		tokens:       tokens,
		validator:    validator,
		secureCookie: secureCookie,
	}
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=5,max=128"`
	Name     string `json:"name" validate:"max=255"`
}

// AuthPayload defines the structure for token requests.
type AuthPayload struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// updateMePayload is used by PATCH; every field is optional.
type updateMePayload struct {
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Password *string `json:"password" validate:"omitempty,min=5,max=128"`
	Name     *string `json:"name" validate:"omitempty,max=255"`
}

// replaceMePayload is used by PUT; the password stays optional.
type replaceMePayload struct {
	Email    *string `json:"email" validate:"required,email,max=255"`
	Password *string `json:"password" validate:"omitempty,min=5,max=128"`
	Name     *string `json:"name" validate:"required,max=255"`
}

// tokenResponse is returned by a successful login.
type tokenResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Register handles new user registration.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	payload.Email = strings.TrimSpace(payload.Email)
	payload.Name = strings.TrimSpace(payload.Name)
	if err := h.validator.Validate(payload); err != nil {
		handleServiceError(w, r, err, "Failed to validate registration")
		return
	}

	user, err := h.service.CreateUser(r.Context(), payload.Email, payload.Password, payload.Name)
	if err != nil {
		handleServiceError(w, r, err, "Failed to register user")
		return
	}

	h.eventService.CreateEvent(r.Context(), user.ID, "user.register", "Account created.")
	writeJSON(w, http.StatusCreated, user)
}

// Token handles user authentication and JWT generation.
func (h *UserHandler) Token(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if err := h.validator.Validate(payload); err != nil {
		handleServiceError(w, r, err, "Failed to validate credentials")
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), payload.Email, payload.Password)
	if err != nil {
		log.Warn().Err(err).Str("email", payload.Email).Msg("Failed authentication attempt")
		handleServiceError(w, r, err, "Failed to authenticate user")
		return
	}

	token, expiresAt, err := h.tokens.Generate(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to generate JWT")
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})

	h.eventService.CreateEvent(r.Context(), user.ID, "user.login", "Signed in.")
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, User: user})
}

// GetMe retrieves the currently authenticated user.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err, "Failed to get current user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// PatchMe updates the fields present in the body.
func (h *UserHandler) PatchMe(w http.ResponseWriter, r *http.Request) {
	var payload updateMePayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	h.updateMe(w, r, payload, models.UserUpdate{Email: payload.Email, Name: payload.Name, Password: payload.Password})
}

// PutMe replaces the profile; email and name are required.
func (h *UserHandler) PutMe(w http.ResponseWriter, r *http.Request) {
	var payload replaceMePayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	h.updateMe(w, r, payload, models.UserUpdate{Email: payload.Email, Name: payload.Name, Password: payload.Password})
}

func (h *UserHandler) updateMe(w http.ResponseWriter, r *http.Request, payload any, update models.UserUpdate) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	if err := h.validator.Validate(payload); err != nil {
		handleServiceError(w, r, err, "Failed to validate profile update")
		return
	}

	user, err := h.service.UpdateUser(r.Context(), userID, update)
	if err != nil {
		handleServiceError(w, r, err, "Failed to update user")
		return
	}

	h.eventService.CreateEvent(r.Context(), user.ID, "user.update", "Profile updated.")
	writeJSON(w, http.StatusOK, user)
}
