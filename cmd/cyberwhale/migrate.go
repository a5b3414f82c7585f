// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package main

import (
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/cyberwhale/cyberwhale/internal/config"
)

// migratorFactory is replaced in tests.
var migratorFactory = newStoreMigrator

// NewMigrateCmd creates the migrate subcommand. Without a subcommand it
// applies pending migrations.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage the PostgreSQL schema. Without a subcommand, all pending
migrations are applied.`,
		RunE: runMigrateUp,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string (or set "+config.EnvDatabaseURL+")")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrateUp,
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (drops every table)",
		Args:  cobra.NoArgs,
		RunE:  runMigrateDown,
	}
	down.Flags().Bool("yes", false, "confirm dropping all data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE:  runMigrateVersion,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Long: `Mark VERSION as applied and clear the dirty flag. Use after repairing
a migration that failed midway.`,
		Args: cobra.ExactArgs(1),
		RunE: runMigrateForce,
	})

	return cmd
}

func openMigrator(cmd *cobra.Command) (Migrator, error) {
	databaseURL, err := getDatabaseURL(cmd)
	if err != nil {
		return nil, err
	}
	migrator, err := migratorFactory(databaseURL)
	if err != nil {
		return nil, oops.Code("MIGRATION_FAILED").With("operation", "open migrator").Wrap(err)
	}
	return migrator, nil
}

// getDatabaseURL resolves the URL from flag, environment or config file.
func getDatabaseURL(cmd *cobra.Command) (string, error) {
	if url, _ := cmd.Flags().GetString("database-url"); url != "" {
		return url, nil
	}
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return "", err
	}
	if cfg.Storage.DatabaseURL == "" {
		return "", oops.Code("CONFIG_INVALID").
			Errorf("database URL is required: use --database-url or set %s", config.EnvDatabaseURL)
	}
	return cfg.Storage.DatabaseURL, nil
}

func closeMigrator(cmd *cobra.Command, migrator Migrator) {
	if err := migrator.Close(); err != nil {
		cmd.PrintErrf("warning: closing migrator: %v\n", err)
	}
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	migrator, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, migrator)

	pending, err := migrator.Pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		cmd.Println("Schema is up to date")
		return nil
	}

	cmd.Printf("Applying %d migration(s)...\n", len(pending))
	if err := migrator.Up(); err != nil {
		return err
	}
	version, _, err := migrator.Version()
	if err != nil {
		return err
	}
	cmd.Printf("Migrated to version %d\n", version)
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return oops.Code("CONFIRMATION_REQUIRED").Errorf("migrate down drops all data; pass --yes to confirm")
	}
	migrator, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, migrator)

	if err := migrator.Down(); err != nil {
		return err
	}
	cmd.Println("All migrations rolled back")
	return nil
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	migrator, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, migrator)

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	pending, err := migrator.Pending()
	if err != nil {
		return err
	}

	state := "clean"
	if dirty {
		state = "dirty"
	}
	cmd.Printf("Version: %d (%s)\n", version, state)
	cmd.Printf("Pending: %d\n", len(pending))
	return nil
}

func runMigrateForce(cmd *cobra.Command, args []string) error {
	version, err := parseForceVersion(args[0])
	if err != nil {
		return err
	}
	migrator, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, migrator)

	if err := migrator.Force(version); err != nil {
		return err
	}
	cmd.Printf("Forced version %d\n", version)
	return nil
}

func parseForceVersion(s string) (int, error) {
	version, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer")
	}
	if version < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be non-negative")
	}
	return version, nil
}
