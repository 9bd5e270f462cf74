package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bibliotheca/catalog-service/internal/database"
)

var migrationsPath string

// schemaMigrator is the subset of database.Migrator the commands drive.
type schemaMigrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (database.MigrationStatus, error)
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.PersistentFlags().StringVar(&migrationsPath, "path", "", "Override the migrations directory")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(m schemaMigrator, out io.Writer, _ []string) error {
				if err := m.Up(); err != nil {
					return fmt.Errorf("migrate up: %w", err)
				}
				return printStatus(m, out)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(m schemaMigrator, out io.Writer, _ []string) error {
				if err := m.Down(); err != nil {
					return fmt.Errorf("migrate down: %w", err)
				}
				return printStatus(m, out)
			}),
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply N migrations (negative N rolls back)",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(func(m schemaMigrator, out io.Writer, args []string) error {
				n, err := parseSteps(args[0])
				if err != nil {
					return err
				}
				if err := m.Steps(n); err != nil {
					return fmt.Errorf("migrate steps: %w", err)
				}
				return printStatus(m, out)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(m schemaMigrator, out io.Writer, _ []string) error {
				return printStatus(m, out)
			}),
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Mark VERSION as applied to recover from a dirty schema",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(func(m schemaMigrator, out io.Writer, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil || v < 0 {
					return fmt.Errorf("version must be a non-negative integer, got %q", args[0])
				}
				if err := m.Force(v); err != nil {
					return fmt.Errorf("force version: %w", err)
				}
				return printStatus(m, out)
			}),
		},
	)
	return cmd
}

// withMigrator opens the database and a migrator around fn.
func withMigrator(fn func(m schemaMigrator, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context(), "migrate")
		if err != nil {
			return err
		}
		defer e.Close()

		dir := e.cfg.Database.MigrationPath
		if migrationsPath != "" {
			dir = migrationsPath
		}

		m, err := database.NewMigrator(e.db, dir, e.logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil {
				e.logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		return fn(m, cmd.OutOrStdout(), args)
	}
}

func parseSteps(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("steps must be a non-zero integer, got %q", arg)
	}
	return n, nil
}

func printStatus(m schemaMigrator, out io.Writer) error {
	status, err := m.Status()
	if err != nil {
		return err
	}
	if !status.Applied {
		_, err = fmt.Fprintln(out, "no migrations applied")
		return err
	}
	_, err = fmt.Fprintf(out, "version %d (dirty: %t)\n", status.Version, status.Dirty)
	return err
}
