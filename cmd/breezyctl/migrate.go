package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/breezyweather/breezyd/internal/database"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.Storage != "postgres" {
				return errors.New("migrate requires STORAGE_BACKEND=postgres")
			}
			ctx := cmd.Context()
			pool, err := database.Connect(c.logger.WithContext(ctx), c.cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.Migrate(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema of %s is up to date\n", c.cfg.Database.Database)
			return nil
		},
	}
}
