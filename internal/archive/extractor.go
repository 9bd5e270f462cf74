// Package archive extracts the PDF files of an uploaded ZIP bundle into a
// per-import scratch directory.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bibliotheca/catalog-service/internal/domain"
	"github.com/bibliotheca/catalog-service/internal/observability"
)

// ErrEntryTooLarge is returned when an entry inflates beyond the configured limit.
var ErrEntryTooLarge = errors.New("archive: entry exceeds maximum size")

// Config holds extractor configuration.
type Config struct {
	// ScratchDir is the parent of per-import scratch directories. Default: os.TempDir().
	ScratchDir string
	// MaxEntrySize caps the uncompressed size of one entry. Default: 64MB.
	MaxEntrySize int64
}

// Extraction is the result of extracting one archive. It owns its scratch
// directory until Cleanup is called.
type Extraction struct {
	// Dir is the scratch directory holding the extracted files.
	Dir string
	// Files maps entry base names to their extracted paths.
	Files map[string]string
}

// Lookup returns the extracted path of the named file. Matching is exact and case-sensitive.
func (e *Extraction) Lookup(name string) (string, bool) {
	p, ok := e.Files[name]
	return p, ok
}

// Cleanup removes the scratch directory and everything in it. It is safe to call more than once.
func (e *Extraction) Cleanup() error {
	if e == nil || e.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(e.Dir); err != nil {
		return fmt.Errorf("failed to remove scratch directory %s: %w", e.Dir, err)
	}
	return nil
}

// Extractor unpacks ZIP archives.
type Extractor struct {
	scratchDir   string
	maxEntrySize int64
	logger       zerolog.Logger
}

// NewExtractor creates a new Extractor with the given configuration.
func NewExtractor(cfg Config, logger zerolog.Logger) *Extractor {
	if cfg.MaxEntrySize <= 0 {
		cfg.MaxEntrySize = 64 * 1024 * 1024
	}
	return &Extractor{
		scratchDir:   cfg.ScratchDir,
		maxEntrySize: cfg.MaxEntrySize,
		logger:       logger.With().Str("component", "archive-extractor").Logger(),
	}
}

// Extract writes every *.pdf entry (extension matched case-insensitively) of
// the ZIP archive in data to a fresh scratch directory named after the import
// id carried by ctx. Entries are stored under their base name; on a name clash
// the first entry wins.
//
// Any failure wraps domain.ErrInvalidArchive and leaves nothing on disk.
func (x *Extractor) Extract(ctx context.Context, data []byte) (*Extraction, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	// Entries are written by base name, so insecure paths are harmless here.
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidArchive, err)
	}

	if x.scratchDir != "" {
		if err := os.MkdirAll(x.scratchDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create scratch root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(x.scratchDir, scratchPattern(observability.ImportIDFromContext(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	ext := &Extraction{Dir: dir, Files: make(map[string]string)}
	if err := x.extractAll(ctx, zr, ext); err != nil {
		if cleanupErr := ext.Cleanup(); cleanupErr != nil {
			x.logger.Warn().Err(cleanupErr).Msg("failed to clean up after extraction error")
		}
		return nil, err
	}

	x.logger.Debug().
		Str("dir", dir).
		Int("entries", len(zr.File)).
		Int("pdfs", len(ext.Files)).
		Msg("archive extracted")

	return ext, nil
}

// scratchPattern returns the os.MkdirTemp pattern for one import. Characters
// outside [A-Za-z0-9-] are dropped from the id.
func scratchPattern(importID string) string {
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return -1
	}, importID)
	if id == "" {
		return "import-*"
	}
	return "import-" + id + "-*"
}

func (x *Extractor) extractAll(ctx context.Context, zr *zip.Reader, ext *Extraction) error {
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := entryName(f)
		if name == "" || !strings.EqualFold(path.Ext(name), ".pdf") {
			continue
		}
		if _, dup := ext.Files[name]; dup {
			x.logger.Warn().Str("entry", f.Name).Msg("duplicate file name in archive, keeping first")
			continue
		}

		target := filepath.Join(ext.Dir, name)
		if err := x.extractFile(f, target); err != nil {
			return fmt.Errorf("%w: entry %s: %w", domain.ErrInvalidArchive, f.Name, err)
		}
		ext.Files[name] = target
	}
	return nil
}

// entryName returns the base name of a regular file entry, or "" for directories.
func entryName(f *zip.File) string {
	if f.FileInfo().IsDir() {
		return ""
	}
	name := strings.ReplaceAll(f.Name, "\\", "/")
	if strings.HasSuffix(name, "/") {
		return ""
	}
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

func (x *Extractor) extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	// Read one extra byte to detect entries over the limit.
	n, err := io.Copy(out, io.LimitReader(rc, x.maxEntrySize+1))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if n > x.maxEntrySize {
		return fmt.Errorf("%w: exceeded %d bytes", ErrEntryTooLarge, x.maxEntrySize)
	}
	return nil
}
