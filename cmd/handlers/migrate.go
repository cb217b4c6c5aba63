package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"blogsmith/internal/config"
	"blogsmith/internal/persistence"
)

// NewMigrateCmd creates the migrate command
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			if cfg.Database.URL == "" {
				return fmt.Errorf("database.url is not configured")
			}

			db, err := persistence.NewPostgresDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			return persistence.NewMigrationManager(db).Migrate(cmd.Context())
		},
	}
}
