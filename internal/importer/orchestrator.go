// Package importer runs the BibTeX + PDF archive import pipeline.
//
// One import is one batch: records are parsed, the archive is extracted to a
// scratch directory, every record is resolved, checked for duplicates and
// matched to its PDF, and the surviving records are staged in a single
// transaction. Per-record problems are reported as skips. Parse, extract,
// lookup and commit failures abort the whole batch and leave nothing behind.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bibliotheca/catalog-service/internal/archive"
	"github.com/bibliotheca/catalog-service/internal/bibtex"
	"github.com/bibliotheca/catalog-service/internal/domain"
	"github.com/bibliotheca/catalog-service/internal/notify"
	"github.com/bibliotheca/catalog-service/internal/observability"
)

// Batch-level failure stages reported in domain.ImportError.
const (
	StageParse   = "parse"
	StageExtract = "extract"
	StageBegin   = "begin"
	StageResolve = "resolve"
	StageStage   = "stage"
	StageCommit  = "commit"
)

// Extractor unpacks the uploaded archive.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (*archive.Extraction, error)
}

// Config holds orchestrator settings.
type Config struct {
	// RequireYear skips records without a year instead of using the event's earliest edition.
	RequireYear bool
}

// Orchestrator runs import batches. It is safe for concurrent use; the
// store serializes batches.
type Orchestrator struct {
	cfg        Config
	store      Store
	extractor  Extractor
	associator *Associator
	notifier   *notify.Notifier
	validate   *validator.Validate
	metrics    *observability.Metrics
	logger     zerolog.Logger
	newID      func() string
	now        func() time.Time
}

// NewOrchestrator creates an Orchestrator. metrics may be nil.
func NewOrchestrator(
	cfg Config,
	store Store,
	extractor Extractor,
	associator *Associator,
	notifier *notify.Notifier,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		extractor:  extractor,
		associator: associator,
		notifier:   notifier,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		metrics:    metrics,
		logger:     logger.With().Str("component", "import-orchestrator").Logger(),
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// batchState is the bookkeeping of one running import.
type batchState struct {
	result  *domain.ImportResult
	keys    map[string]struct{}
	stored  []string
	pending []notify.Notification
	logger  zerolog.Logger
}

// Import runs one batch over BibTeX text and a ZIP archive. On success the
// result lists imported titles and skipped records. On failure it returns a
// *domain.ImportError and nothing is persisted.
func (o *Orchestrator) Import(ctx context.Context, bibtexData, archiveData []byte) (*domain.ImportResult, error) {
	importID := o.newID()
	ctx = observability.WithImportID(ctx, importID)
	start := o.now()
	o.recordStarted()

	records, err := bibtex.Parse(bytes.NewReader(bibtexData))
	if err != nil {
		return nil, o.fail(importID, StageParse, err, start)
	}

	logger := observability.WithImportContext(o.logger, importID, len(records))
	logger.Info().Msg("import started")

	files, err := o.extractor.Extract(ctx, archiveData)
	if err != nil {
		return nil, o.fail(importID, StageExtract, err, start)
	}
	defer func() {
		if err := files.Cleanup(); err != nil {
			logger.Error().Err(err).Msg("failed to remove scratch directory")
		}
	}()

	subscribers, err := o.store.ListSubscribers(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to list subscribers, notifications disabled for this import")
		subscribers = nil
	}

	batch, err := o.store.Begin(ctx)
	if err != nil {
		return nil, o.fail(importID, StageBegin, err, start)
	}

	state := &batchState{
		result: domain.NewImportResult(importID),
		keys:   make(map[string]struct{}, len(records)),
		logger: logger,
	}

	for i := range records {
		rec := &records[i]
		if stage, err := o.processRecord(ctx, batch, rec, files, subscribers, state); err != nil {
			o.abort(ctx, batch, state, logger)
			return nil, o.fail(importID, stage, err, start)
		}
	}

	if err := batch.Commit(ctx); err != nil {
		o.abort(ctx, batch, state, logger)
		return nil, o.fail(importID, StageCommit, fmt.Errorf("%w: %w", domain.ErrCommitFailed, err), start)
	}

	o.recordCompleted(state.result.ImportedCount, start)
	logger.Info().
		Int("imported", state.result.ImportedCount).
		Int("skipped", state.result.SkippedCount).
		Int("notifications", len(state.pending)).
		Msg("import committed")

	if o.notifier != nil {
		o.notifier.DispatchAsync(ctx, state.pending)
	}

	return state.result, nil
}

// processRecord runs one record through validation, resolution, duplicate
// check, PDF association and staging. A returned error is fatal to the batch
// and comes with the stage that failed.
func (o *Orchestrator) processRecord(
	ctx context.Context,
	batch Batch,
	rec *domain.ImportRecord,
	files FileIndex,
	subscribers []domain.Subscriber,
	state *batchState,
) (string, error) {
	recLogger := observability.WithRecordContext(state.logger, rec.CitationKey, rec.Title)

	skip := func(code domain.SkipCode) (string, error) {
		state.result.AddSkipped(domain.NewSkippedRecord(rec, code))
		if o.metrics != nil {
			o.metrics.RecordRecordSkipped(string(code))
		}
		recLogger.Info().Str("reason", code.Message()).Msg("record skipped")
		return "", nil
	}

	if rec.CitationKey != "" {
		if _, seen := state.keys[rec.CitationKey]; seen {
			return skip(domain.SkipDuplicateKey)
		}
		state.keys[rec.CitationKey] = struct{}{}
	}

	if code := o.validateRecord(rec); code != "" {
		return skip(code)
	}

	edition, code, err := ResolveEdition(ctx, batch, rec)
	if err != nil {
		return StageResolve, err
	}
	if code != "" {
		return skip(code)
	}

	dup, err := IsDuplicate(ctx, batch, rec.Title, edition.ID)
	if err != nil {
		return StageResolve, err
	}
	if dup {
		return skip(domain.SkipDuplicate)
	}

	if code := o.associator.Associate(ctx, rec, files); code != "" {
		return skip(code)
	}
	state.stored = append(state.stored, rec.PDFPath)
	if o.metrics != nil {
		o.metrics.RecordPDFStored()
	}

	article := rec.ToArticle(edition.ID)
	if err := batch.StageArticle(ctx, &article); err != nil {
		return StageStage, err
	}

	state.result.AddImported(rec.Title)
	if o.notifier != nil {
		state.pending = append(state.pending, o.notifier.Match(rec, subscribers)...)
	}
	recLogger.Debug().Int64("edition_id", edition.ID).Msg("record staged")
	return "", nil
}

// validateRecord returns the skip code for a record whose fields fail
// validation, or "" when it may proceed.
func (o *Orchestrator) validateRecord(rec *domain.ImportRecord) domain.SkipCode {
	if err := o.validate.Struct(rec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Field() == "Title" && fe.Tag() == "required" {
					return domain.SkipMissingTitle
				}
			}
			return domain.SkipTitleTooShort
		}
		return domain.SkipMissingTitle
	}
	if o.cfg.RequireYear && rec.Year == nil {
		return domain.SkipMissingYear
	}
	return ""
}

// abort rolls the batch back and removes the PDFs it stored.
func (o *Orchestrator) abort(ctx context.Context, batch Batch, state *batchState, logger zerolog.Logger) {
	if err := batch.Rollback(context.WithoutCancel(ctx)); err != nil {
		logger.Error().Err(err).Msg("failed to roll back import batch")
	}
	o.associator.Discard(state.stored)
}

func (o *Orchestrator) fail(importID, stage string, err error, start time.Time) error {
	if o.metrics != nil {
		o.metrics.RecordImportFailed(stage, o.now().Sub(start).Seconds())
	}
	o.logger.Error().
		Err(err).
		Str("import_id", importID).
		Str("stage", stage).
		Msg("import failed")
	return domain.NewImportError(stage, err)
}

func (o *Orchestrator) recordStarted() {
	if o.metrics != nil {
		o.metrics.RecordImportStarted()
	}
}

func (o *Orchestrator) recordCompleted(imported int, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordImportCompleted(imported, o.now().Sub(start).Seconds())
	}
}
