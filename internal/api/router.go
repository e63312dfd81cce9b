package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/isdelr/recipe-api-be/internal/api/handlers"
	"github.com/isdelr/recipe-api-be/internal/auth"
	"github.com/isdelr/recipe-api-be/internal/metrics"
	"github.com/isdelr/recipe-api-be/internal/services"
	"github.com/isdelr/recipe-api-be/internal/validation"
	"github.com/isdelr/recipe-api-be/internal/websocket"
)

// Options holds the HTTP settings taken from configuration.
type Options struct {
	CORSOrigins []string

	// RateLimitRequests per RateLimitWindow applies per IP to the account
	// endpoints. Zero disables the limit.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	SecureCookies bool
}

// Services bundles the business services the handlers depend on.
type Services struct {
	Users       services.UserServiceProvider
	Recipes     services.RecipeServiceProvider
	Tags        services.AttributeServiceProvider
	Ingredients services.AttributeServiceProvider
	Events      services.EventServiceProvider
}

// NewRouter creates and configures a new Chi router.
func NewRouter(opts Options, db *sql.DB, hub *websocket.Hub, tokens *auth.TokenManager, svc Services) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	validator := validation.New()
	userHandler := handlers.NewUserHandler(svc.Users, svc.Events, tokens, validator, opts.SecureCookies)
	recipeHandler := handlers.NewRecipeHandler(svc.Recipes, validator)
	tagHandler := handlers.NewAttributeHandler(svc.Tags, validator)
	ingredientHandler := handlers.NewAttributeHandler(svc.Ingredients, validator)
	eventHandler := handlers.NewEventHandler(svc.Events)
	wsHandler := handlers.NewWebSocketHandler(hub, opts.CORSOrigins)
	healthHandler := handlers.NewHealthHandler(db)

	r.Get("/health", healthHandler.Get)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Get)

		// Public account endpoints
		r.Group(func(r chi.Router) {
			r.Use(rateLimit(opts))
			r.Post("/user/create", userHandler.Register)
			r.Post("/user/token", userHandler.Token)
		})

		// Everything else requires a valid token
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(tokens, svc.Users))

			r.Get("/ws", wsHandler.Serve)
			r.Get("/events", eventHandler.GetRecent)

			r.Route("/user/me", func(r chi.Router) {
				r.Get("/", userHandler.GetMe)
				r.Put("/", userHandler.PutMe)
				r.Patch("/", userHandler.PatchMe)
			})

			r.Route("/recipes", func(r chi.Router) {
				r.Get("/", recipeHandler.GetAll)
				r.Post("/", recipeHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", recipeHandler.Get)
					r.Put("/", recipeHandler.Update)
					r.Patch("/", recipeHandler.Patch)
					r.Delete("/", recipeHandler.Delete)
				})
			})

			mountAttributes(r, "/tags", tagHandler)
			mountAttributes(r, "/ingredients", ingredientHandler)
		})
	})

	return r
}

func mountAttributes(r chi.Router, path string, h *handlers.AttributeHandler) {
	r.Route(path, func(r chi.Router) {
		r.Get("/", h.GetAll)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Patch("/", h.Patch)
			r.Delete("/", h.Delete)
		})
	})
}

// rateLimit limits requests per client IP, answering 429 with a JSON body.
func rateLimit(opts Options) func(http.Handler) http.Handler {
	if opts.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		opts.RateLimitRequests,
		opts.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Request was throttled."})
		}),
	)
}
