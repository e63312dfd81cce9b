// Package cli wires configuration, storage and services into the recipe-api
// commands.
package cli

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/isdelr/recipe-api-be/internal/config"
	"github.com/isdelr/recipe-api-be/internal/database"
	"github.com/isdelr/recipe-api-be/internal/logger"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command. Without a subcommand it serves
// the API.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "recipe-api",
		Short:         "Recipe API server",
		Long:          "A JSON API for managing personal recipes with their tags and ingredients.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.ConfigPath != "" {
				return os.Setenv(config.ConfigPathEnvVar, opts.ConfigPath)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file (overrides CONFIG_PATH)")

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewMigrateCommand())
	cmd.AddCommand(NewCreateSuperuserCommand())

	return cmd
}

// setup loads configuration, initialises logging and opens a migrated
// database.
func setup() (*config.Config, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return cfg, db, nil
}
