package importer

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bibliotheca/catalog-service/internal/domain"
	"github.com/bibliotheca/catalog-service/internal/pdf"
	"github.com/bibliotheca/catalog-service/internal/storage"
)

// FileIndex maps archive file names to extracted paths.
type FileIndex interface {
	Lookup(name string) (string, bool)
}

// PDFStore persists PDFs outside the scratch directory.
type PDFStore interface {
	StorePDF(ctx context.Context, tmpPath, targetName string) (string, error)
	Remove(path string) error
}

// PDFInspector validates a PDF before it is stored.
type PDFInspector interface {
	Inspect(path string) (*pdf.Info, error)
}

// Associator attaches the archive PDF named after a record's citation key.
type Associator struct {
	store     PDFStore
	inspector PDFInspector
	logger    zerolog.Logger
}

// NewAssociator creates an Associator.
func NewAssociator(store PDFStore, inspector PDFInspector, logger zerolog.Logger) *Associator {
	return &Associator{
		store:     store,
		inspector: inspector,
		logger:    logger.With().Str("component", "pdf-associator").Logger(),
	}
}

// Associate copies "{citation key}.pdf" from files into permanent storage
// and sets the record's PDFPath and PDFPages. The lookup is case-sensitive.
// Every failure is a skip code; association never aborts a batch.
func (a *Associator) Associate(ctx context.Context, rec *domain.ImportRecord, files FileIndex) domain.SkipCode {
	name := rec.ExpectedPDFName()
	src, ok := files.Lookup(name)
	if !ok {
		return domain.SkipPDFMissing
	}

	info, err := a.inspector.Inspect(src)
	if err != nil {
		a.logger.Debug().Err(err).Str("file", name).Msg("rejected archive PDF")
		return domain.SkipPDFInvalid
	}

	stored, err := a.store.StorePDF(ctx, src, storage.TargetName(rec.EventName, name))
	if err != nil {
		a.logger.Warn().Err(err).Str("file", name).Msg("failed to store PDF")
		return domain.SkipPDFWriteFailed
	}

	rec.PDFPath = stored
	if info.Pages > 0 {
		pages := info.Pages
		rec.PDFPages = &pages
	}
	return ""
}

// Discard removes stored PDFs of a batch that did not commit.
func (a *Associator) Discard(paths []string) {
	for _, p := range paths {
		if err := a.store.Remove(p); err != nil {
			a.logger.Error().Err(err).Str("path", p).Msg("failed to remove PDF of rolled back batch")
		}
	}
}
