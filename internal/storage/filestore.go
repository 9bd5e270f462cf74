// Package storage keeps article PDFs on the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// maxNameAttempts bounds the search for a free file name.
const maxNameAttempts = 1000

// ErrOutsideStore is returned for paths that do not belong to the store.
var ErrOutsideStore = errors.New("storage: path outside store")

// FileStore copies PDFs into a permanent directory.
type FileStore struct {
	dir    string
	logger zerolog.Logger
}

// NewFileStore creates the store directory if needed.
func NewFileStore(dir string, logger zerolog.Logger) (*FileStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{
		dir:    abs,
		logger: logger.With().Str("component", "pdf-store").Logger(),
	}, nil
}

// Dir returns the absolute store directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// TargetName derives the permanent file name for a PDF from its event and
// archive file name, e.g. ("SBES 2024", "paper1.pdf") -> "SBES_2024_paper1.pdf".
func TargetName(eventName, fileName string) string {
	return sanitize(eventName) + "_" + sanitize(fileName)
}

// StorePDF copies the file at tmpPath into the store as targetName and
// returns its permanent path. The source is left in place. When targetName
// is taken, a numeric suffix is added ("name-1.pdf").
func (s *FileStore) StorePDF(ctx context.Context, tmpPath, targetName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src, err := os.Open(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source PDF: %w", err)
	}
	defer func() { _ = src.Close() }()

	dst, path, err := s.create(sanitize(targetName))
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to copy PDF: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to flush PDF: %w", err)
	}

	s.logger.Debug().Str("source", tmpPath).Str("path", path).Msg("pdf stored")
	return path, nil
}

// create opens a new file for name, adding a suffix while the name is taken.
func (s *FileStore) create(name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < maxNameAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = stem + "-" + strconv.Itoa(i) + ext
		}
		path := filepath.Join(s.dir, candidate)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("no free file name for %s after %d attempts", name, maxNameAttempts)
}

// Open opens a stored PDF for reading.
func (s *FileStore) Open(path string) (*os.File, error) {
	if !s.contains(path) {
		return nil, ErrOutsideStore
	}
	return os.Open(path)
}

// Remove deletes a stored PDF. Missing files are not an error.
func (s *FileStore) Remove(path string) error {
	if !s.contains(path) {
		return ErrOutsideStore
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) contains(path string) bool {
	rel, err := filepath.Rel(s.dir, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}

// sanitize keeps letters, digits, '.', '-' and '_' and maps everything else to '_'.
func sanitize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	lastUnderscore := false
	for _, r := range strings.TrimSpace(s) {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '-' || r == '_'
		if !ok {
			r = '_'
		}
		if r == '_' && lastUnderscore {
			continue
		}
		lastUnderscore = r == '_'
		sb.WriteRune(r)
	}

	out := strings.Trim(sb.String(), "._")
	if out == "" {
		return "unnamed"
	}
	return out
}
