package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/isdelr/recipe-api-be/internal/models"
	"github.com/isdelr/recipe-api-be/internal/services"
	"github.com/rs/zerolog/log"
)

// CookieName is the cookie carrying the token for browser clients.
const CookieName = "token"

type contextKey string

const userIDKey = contextKey("userID")

// UserLookup loads the account behind a token.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (models.User, error)
}

// WithUserID returns a copy of ctx carrying the authenticated user's id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user's id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// Middleware rejects requests without a valid token for an active user.
func Middleware(tokens *TokenManager, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := tokenFromRequest(r)
			if tokenStr == "" {
				unauthorized(w, "Authentication credentials were not provided.")
				return
			}

			claims, err := tokens.Validate(tokenStr)
			if err != nil {
				log.Debug().Err(err).Msg("Rejected auth token")
				unauthorized(w, "Invalid token.")
				return
			}

			user, err := users.GetUserByID(r.Context(), claims.UserID)
			if errors.Is(err, services.ErrNotFound) {
				unauthorized(w, "User not found.")
				return
			}
			if err != nil {
				log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to load token user")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{"detail": "Internal server error."})
				return
			}
			if !user.IsActive {
				unauthorized(w, "User inactive or deleted.")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), user.ID)))
		})
	}
}

// tokenFromRequest reads the bearer header first, then the cookie.
func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
