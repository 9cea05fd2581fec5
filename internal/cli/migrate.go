package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spectorhq/spector/internal/history"
	"github.com/spectorhq/spector/internal/history/sqlite"
)

var migrationsDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage history store migrations",
	Long:  `Run schema migrations for the SQLite history store using golang-migrate.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run all pending migrations",
	Long:  `Apply all pending history store migrations.`,
	RunE:  runMigrateUp,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateUpCmd.Flags().StringVarP(&migrationsDir, "dir", "d", "internal/history/sqlite/migrations", "Directory holding migration files")
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	if cfg.History.Provider != "sqlite" && cfg.History.Provider != "" {
		return fmt.Errorf("migrations only apply to the sqlite history store, configured provider is %s", cfg.History.Provider)
	}

	fmt.Println("🔄 Running history store migrations...")

	options := make(map[string]string, len(cfg.History.Options)+1)
	for k, v := range cfg.History.Options {
		options[k] = v
	}
	options["migrations_dir"] = migrationsDir

	migrateStore, err := sqlite.New(&history.Config{
		Provider: "sqlite",
		URI:      cfg.History.URI,
		Options:  options,
	})
	if err != nil {
		return fmt.Errorf("failed to create history store: %w", err)
	}

	ctx := context.Background()
	if err := migrateStore.Connect(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer migrateStore.Disconnect(ctx)

	fmt.Println("✅ Migrations completed successfully!")
	return nil
}
