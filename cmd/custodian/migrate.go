package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/custodian/pkg/cli"
	"mercator-hq/custodian/pkg/storefactory"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	Long: `Apply the embedded schema migrations to the configured database.

Only the postgres backend has versioned migrations. The sqlite backend
creates its schema when opened, so this command only opens it.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(context.Background(), cfg)
	if err != nil {
		return cli.NewCommandError("migrate", err)
	}
	defer store.Close()

	m, ok := store.(storefactory.Migrator)
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s backend has no versioned migrations, schema is up to date\n", cfg.Database.Backend)
		return nil
	}
	if err := m.Migrate(); err != nil {
		return cli.NewCommandError("migrate", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Migrations applied")
	return nil
}
