package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Long: "Applies the SQL files in database.migrations to PostgreSQL. The SQLite store\n" +
		"creates its schema on open, so for it this only verifies the database opens.",
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		a.logger.Info("Database ready")
		return nil
	},
}
