// Package bootstrap assembles the import pipeline and its notification
// sender from configuration. Both binaries share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/bibliotheca/catalog-service/internal/archive"
	"github.com/bibliotheca/catalog-service/internal/config"
	"github.com/bibliotheca/catalog-service/internal/importer"
	"github.com/bibliotheca/catalog-service/internal/notify"
	"github.com/bibliotheca/catalog-service/internal/observability"
	"github.com/bibliotheca/catalog-service/internal/pdf"
	"github.com/bibliotheca/catalog-service/internal/repository"
	"github.com/bibliotheca/catalog-service/internal/storage"
)

// Database is what the pipeline needs from the connection pool.
type Database interface {
	repository.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// defaultDrainTimeout bounds Close when server.shutdown_timeout is unset.
const defaultDrainTimeout = 30 * time.Second

// Pipeline is a ready-to-run import pipeline.
type Pipeline struct {
	Orchestrator *importer.Orchestrator
	Files        *storage.FileStore
	notifier     *notify.Notifier
	sender       notify.Sender
	drainTimeout time.Duration
}

// NewPipeline builds the import orchestrator over db. metrics may be nil.
func NewPipeline(cfg *config.Config, db Database, metrics *observability.Metrics, logger zerolog.Logger) (*Pipeline, error) {
	files, err := storage.NewFileStore(cfg.Storage.PDFDir, logger)
	if err != nil {
		return nil, fmt.Errorf("create pdf store: %w", err)
	}

	sender, err := NewSender(cfg, logger)
	if err != nil {
		return nil, err
	}

	store := importer.NewCatalogStore(db, repository.NewPgSubscriberRepository(db))
	extractor := archive.NewExtractor(archive.Config{
		ScratchDir:   cfg.Storage.ScratchDir,
		MaxEntrySize: cfg.Storage.MaxEntryBytes,
	}, logger)
	associator := importer.NewAssociator(files, pdf.NewInspector(cfg.Storage.MaxEntryBytes), logger)
	notifier := notify.NewNotifier(sender, metrics, cfg.Notify.SendTimeout, logger)

	orch := importer.NewOrchestrator(
		importer.Config{RequireYear: cfg.Import.RequireYear},
		store,
		extractor,
		associator,
		notifier,
		metrics,
		logger,
	)

	drain := cfg.Server.ShutdownTimeout
	if drain <= 0 {
		drain = defaultDrainTimeout
	}

	return &Pipeline{
		Orchestrator: orch,
		Files:        files,
		notifier:     notifier,
		sender:       sender,
		drainTimeout: drain,
	}, nil
}

// Close waits for notifications still being delivered after committed
// imports, then releases the notification transport.
func (p *Pipeline) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.drainTimeout)
	defer cancel()

	var errs []error
	if err := p.notifier.Wait(ctx); err != nil {
		errs = append(errs, err)
	}
	if c, ok := p.sender.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewSender returns the notification sender selected by notify.driver,
// rate limited when notify.rate_per_second is set.
func NewSender(cfg *config.Config, logger zerolog.Logger) (notify.Sender, error) {
	var sender notify.Sender

	switch strings.ToLower(cfg.Notify.Driver) {
	case "", config.NotifyDriverLog:
		sender = notify.NewLogSender(logger)
	case config.NotifyDriverSMTP:
		sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			From:     cfg.SMTP.From,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		})
	case config.NotifyDriverKafka:
		sender = notify.NewKafkaSender(notify.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Notify.Driver)
	}

	if cfg.Notify.RatePerSecond > 0 {
		sender = notify.NewRateLimitedSender(sender, cfg.Notify.RatePerSecond, cfg.Notify.Burst)
	}

	logger.Info().
		Str("driver", cfg.Notify.Driver).
		Float64("rate_per_second", cfg.Notify.RatePerSecond).
		Msg("notification sender configured")
	return sender, nil
}
