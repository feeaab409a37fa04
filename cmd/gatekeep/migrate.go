// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/config"
	"github.com/gatekeep/gatekeep/internal/store"
)

// migrator wraps the methods used from store.Migrator.
type migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Steps(n int) error
	Force(version int) error
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
	Close() error
}

// newMigrator opens a migrator for the database URL. Tests replace it.
var newMigrator = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Apply, roll back or inspect the PostgreSQL schema used for users and
persisted sessions. Without a subcommand all pending migrations are applied.`,
		RunE: withMigrator(flags, runMigrateUp),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  withMigrator(flags, runMigrateUp),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE:  withMigrator(flags, runMigrateDown),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations, or roll back when N is negative",
		Long:  `Apply N migrations, or roll back -N. Negative values follow "--", as in: gatekeep migrate steps -- -1`,
		Args:  cobra.ExactArgs(1),
		RunE:  withMigrator(flags, runMigrateSteps),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE:  withMigrator(flags, runMigrateStatus),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long:  `Record VERSION as the current schema version and clear the dirty flag. Use after fixing a failed migration by hand.`,
		Args:  cobra.ExactArgs(1),
		RunE:  withMigrator(flags, runMigrateForce),
	})

	return cmd
}

type migrateFunc func(cmd *cobra.Command, args []string, m migrator) error

// withMigrator loads the configuration, opens a migrator and closes it after fn.
func withMigrator(flags *rootFlags, fn migrateFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := flags.load(cmd)
		if err != nil {
			return err
		}
		databaseURL, err := getDatabaseURL(cfg)
		if err != nil {
			return err
		}

		m, err := newMigrator(databaseURL)
		if err != nil {
			return oops.With("operation", "create migrator").Wrap(err)
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()

		return fn(cmd, args, m)
	}
}

func getDatabaseURL(cfg *config.Config) (string, error) {
	if cfg == nil || cfg.Database.URL == "" {
		return "", oops.Code("CONFIG_INVALID").With("key", "database.url").
			Errorf("a database url is required (DATABASE_URL or --database-url)")
	}
	return cfg.Database.URL, nil
}

func runMigrateUp(cmd *cobra.Command, _ []string, m migrator) error {
	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return oops.With("operation", "run migrations").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string, m migrator) error {
	cmd.Println("Rolling back migrations...")
	if err := m.Down(); err != nil {
		return oops.With("operation", "roll back migrations").Wrap(err)
	}
	cmd.Println("Rollback completed successfully")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string, m migrator) error {
	current, dirty, err := m.Version()
	if err != nil {
		return oops.With("operation", "read version").Wrap(err)
	}
	applied, err := m.AppliedMigrations()
	if err != nil {
		return oops.With("operation", "list applied migrations").Wrap(err)
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return oops.With("operation", "list pending migrations").Wrap(err)
	}

	state := "clean"
	if dirty {
		state = "dirty"
	}
	cmd.Printf("Current version: %d (%s)\n", current, state)
	printMigrations(cmd, "Applied", applied)
	printMigrations(cmd, "Pending", pending)
	return nil
}

func printMigrations(cmd *cobra.Command, title string, versions []uint) {
	cmd.Printf("%s: %d\n", title, len(versions))
	for _, v := range versions {
		name, err := store.MigrationName(v)
		if err != nil || name == "" {
			name = strconv.FormatUint(uint64(v), 10)
		}
		cmd.Printf("  %s\n", name)
	}
}

func runMigrateForce(cmd *cobra.Command, args []string, m migrator) error {
	version, err := parseForceVersion(args[0])
	if err != nil {
		return err
	}
	if err := m.Force(version); err != nil {
		return oops.With("operation", "force version").With("version", version).Wrap(err)
	}
	cmd.Printf("Schema version forced to %d\n", version)
	return nil
}

func runMigrateSteps(cmd *cobra.Command, args []string, m migrator) error {
	n, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil || n == 0 {
		return oops.Code("INVALID_STEPS").With("input", args[0]).Errorf("steps must be a non-zero integer, got %q", args[0])
	}
	if err := m.Steps(n); err != nil {
		return oops.With("operation", "migrate steps").Wrap(err)
	}
	cmd.Printf("Migrated %d step(s)\n", n)
	return nil
}

// parseForceVersion parses the force target, a non-negative schema version.
func parseForceVersion(s string) (int, error) {
	version, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer, got %q", s)
	}
	if version < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be non-negative, got %d", version)
	}
	return version, nil
}
