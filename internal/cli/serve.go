package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/recipe-api-be/internal/api"
	"github.com/isdelr/recipe-api-be/internal/auth"
	"github.com/isdelr/recipe-api-be/internal/monitoring"
	"github.com/isdelr/recipe-api-be/internal/services"
	"github.com/isdelr/recipe-api-be/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	// Set up services
	eventService := services.NewEventService(db, hub)
	userService := services.NewUserService(db)
	tagService := services.NewTagService(db, eventService)
	ingredientService := services.NewIngredientService(db, eventService)
	recipeService := services.NewRecipeService(db, tagService, ingredientService, eventService)

	// Set up and run the background stats updater
	statUpdater := monitoring.NewStatUpdater(db, cfg.StatsInterval)
	go statUpdater.Run()
	defer statUpdater.Stop()

	// Set up and run the housekeeping scheduler
	scheduler, err := monitoring.NewScheduler(eventService, cfg.HousekeepingCron, cfg.EventRetention)
	if err != nil {
		return fmt.Errorf("failed to schedule housekeeping: %w", err)
	}
	scheduler.Run()
	defer scheduler.Stop()

	router := api.NewRouter(api.Options{
		CORSOrigins:       cfg.CORSOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		SecureCookies:     cfg.IsProduction(),
	}, db, hub, auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL), api.Services{
		Users:       userService,
		Recipes:     recipeService,
		Tags:        tagService,
		Ingredients: ingredientService,
		Events:      eventService,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.Environment).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exiting")
	return nil
}
