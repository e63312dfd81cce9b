package cli

import (
	"fmt"

	"github.com/isdelr/recipe-api-be/internal/services"
	"github.com/spf13/cobra"
)

type superuserOptions struct {
	Email    string
	Password string
	Name     string
}

// NewCreateSuperuserCommand creates the createsuperuser command.
func NewCreateSuperuserCommand() *cobra.Command {
	opts := &superuserOptions{}

	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create an active staff account with superuser rights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := setup()
			if err != nil {
				return err
			}
			defer db.Close()

			users := services.NewUserService(db)
			user, err := users.CreateSuperuser(cmd.Context(), opts.Email, opts.Password, opts.Name)
			if err != nil {
				return fmt.Errorf("create superuser: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Superuser %s created (id %s).\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")

	return cmd
}
