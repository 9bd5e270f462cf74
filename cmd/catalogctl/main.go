// Package main provides catalogctl, the operator CLI for the catalog service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bibliotheca/catalog-service/internal/config"
	"github.com/bibliotheca/catalog-service/internal/database"
	"github.com/bibliotheca/catalog-service/internal/observability"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	envFile string
	verbose bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "catalogctl",
		Short: "Operate the conference article catalog",
		Long: `catalogctl runs schema migrations, bulk imports and subscriber
management against the catalog database. Settings come from the same
CATALOG_* environment and config file as the server.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before configuration")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	root.AddCommand(
		newMigrateCmd(),
		newImportCmd(),
		newSubscribersCmd(),
		newEventsCmd(),
	)
	return root
}

// env carries what every database-backed command needs.
type env struct {
	cfg    *config.Config
	db     *database.DB
	logger zerolog.Logger
}

func (e *env) Close() {
	e.db.Close()
}

// setup loads configuration and connects to the database.
func setup(ctx context.Context, component string) (*env, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := "info"
	if verbose {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.RFC3339,
	}).With().Str("component", component).Logger()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := database.New(connectCtx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return &env{cfg: cfg, db: db, logger: logger}, nil
}
