package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bibliotheca/catalog-service/internal/bootstrap"
	"github.com/bibliotheca/catalog-service/internal/domain"
	"github.com/bibliotheca/catalog-service/internal/observability"
)

// importer runs one bulk import.
type importer interface {
	Import(ctx context.Context, bibtexData, archiveData []byte) (*domain.ImportResult, error)
}

type importOptions struct {
	bibtexPath  string
	archivePath string
	maxBibTeX   int64
	maxArchive  int64
	jsonOutput  bool
}

func newImportCmd() *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a BibTeX file and its PDF archive",
		Long: `Import reads a BibTeX file and a ZIP archive of PDFs named after the
citation keys, stores every valid record in one transaction and prints
the imported titles and the skipped-record report.

Examples:
  catalogctl import --bibtex sbes2024.bib --archive sbes2024.zip
  catalogctl import --bibtex sbes2024.bib --archive sbes2024.zip --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context(), "import")
			if err != nil {
				return err
			}
			defer e.Close()

			var metrics *observability.Metrics
			if e.cfg.Metrics.Enabled {
				metrics = observability.NewMetrics(e.cfg.Metrics.Namespace)
			}
			pipeline, err := bootstrap.NewPipeline(e.cfg, e.db, metrics, e.logger)
			if err != nil {
				return fmt.Errorf("build import pipeline: %w", err)
			}
			defer func() {
				if closeErr := pipeline.Close(); closeErr != nil {
					e.logger.Error().Err(closeErr).Msg("failed to close notification sender")
				}
			}()

			opts.maxBibTeX = e.cfg.Import.MaxBibTeXBytes
			opts.maxArchive = e.cfg.Storage.MaxArchiveBytes
			return runImport(cmd.Context(), cmd.OutOrStdout(), pipeline.Orchestrator, opts)
		},
	}

	cmd.Flags().StringVar(&opts.bibtexPath, "bibtex", "", "Path to the BibTeX file (required)")
	cmd.Flags().StringVar(&opts.archivePath, "archive", "", "Path to the PDF ZIP archive (required)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("bibtex")
	_ = cmd.MarkFlagRequired("archive")
	return cmd
}

func runImport(ctx context.Context, out io.Writer, imp importer, opts *importOptions) error {
	bib, err := readLimited(opts.bibtexPath, opts.maxBibTeX)
	if err != nil {
		return err
	}
	archive, err := readLimited(opts.archivePath, opts.maxArchive)
	if err != nil {
		return err
	}

	result, err := imp.Import(ctx, bib, archive)
	if err != nil {
		var importErr *domain.ImportError
		if errors.As(err, &importErr) {
			return fmt.Errorf("import failed at %s stage, nothing was stored: %w", importErr.Stage, importErr.Err)
		}
		return fmt.Errorf("import failed: %w", err)
	}

	if opts.jsonOutput {
		return writeJSON(out, result)
	}
	return printImportResult(out, result)
}

// readLimited reads path, refusing files larger than limit bytes. A
// non-positive limit disables the check.
func readLimited(path string, limit int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("read %s: is a directory", path)
	}
	if limit > 0 && info.Size() > limit {
		return nil, fmt.Errorf("read %s: file exceeds %d bytes", path, limit)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func printImportResult(out io.Writer, result *domain.ImportResult) error {
	w := &errWriter{w: out}
	w.printf("import %s: %d imported, %d skipped\n", result.ImportID, result.ImportedCount, result.SkippedCount)
	for _, title := range result.ImportedTitles {
		w.printf("  + %s\n", title)
	}
	for _, skipped := range result.SkippedReport {
		w.printf("  - %-20s %s\n", skipped.Identifier, skipped.Reason)
	}
	return w.err
}
