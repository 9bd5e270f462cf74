// Package main provides the entry point for the catalog service HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/bibliotheca/catalog-service/internal/bootstrap"
	"github.com/bibliotheca/catalog-service/internal/config"
	"github.com/bibliotheca/catalog-service/internal/database"
	"github.com/bibliotheca/catalog-service/internal/observability"
	"github.com/bibliotheca/catalog-service/internal/repository"
	httpserver "github.com/bibliotheca/catalog-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	}).With().Str("component", "server").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if cfg.Database.MigrationAutoRun {
		if err := migrateUp(db, cfg.Database.MigrationPath, logger); err != nil {
			return err
		}
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	pipeline, err := bootstrap.NewPipeline(cfg, db, metrics, logger)
	if err != nil {
		return fmt.Errorf("build import pipeline: %w", err)
	}
	defer func() {
		if closeErr := pipeline.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close notification sender")
		}
	}()

	api := httpserver.NewServer(apiConfig(cfg), httpserver.Dependencies{
		Events:      repository.NewPgEventRepository(db),
		Editions:    repository.NewPgEditionRepository(db),
		Articles:    repository.NewPgArticleRepository(db),
		Subscribers: repository.NewPgSubscriberRepository(db),
		Importer:    pipeline.Orchestrator,
		PDFs:        pipeline.Files,
		Health:      db,
		Metrics:     metrics,
	}, logger)

	servers := []namedServer{{name: "api", start: api.Start, shutdown: api.Shutdown}}
	if cfg.Metrics.Enabled {
		ms := newMetricsServer(cfg)
		servers = append(servers, namedServer{name: "metrics", start: ms.ListenAndServe, shutdown: ms.Shutdown})
		logger.Info().Str("address", ms.Addr).Msg("metrics endpoint enabled")
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			if err := srv.start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("%s server: %w", srv.name, err)
			}
		}()
	}

	logger.Info().
		Str("http_address", cfg.Server.HTTPAddress()).
		Str("pdf_dir", pipeline.Files.Dir()).
		Msg("catalog-service is ready")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server failed, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// The API goes first so in-flight imports commit or roll back while the pool is still open.
	for _, srv := range servers {
		if err := srv.shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Str("server", srv.name).Msg("shutdown error")
		}
	}

	logger.Info().Msg("catalog-service stopped")
	return runErr
}

type namedServer struct {
	name     string
	start    func() error
	shutdown func(context.Context) error
}

func migrateUp(db *database.DB, path string, logger zerolog.Logger) error {
	migrator, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func apiConfig(cfg *config.Config) httpserver.Config {
	return httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Limits: httpserver.Limits{
			MaxBibTeXBytes:  cfg.Import.MaxBibTeXBytes,
			MaxArchiveBytes: cfg.Storage.MaxArchiveBytes,
			ImportRate:      cfg.Import.RateLimit,
			ImportBurst:     cfg.Import.RateBurst,
		},
		CORS: httpserver.CORSConfig{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			MaxAge:         cfg.CORS.MaxAge,
		},
	}
}

func newMetricsServer(cfg *config.Config) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	return &http.Server{
		Addr:         cfg.Server.MetricsAddress(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
