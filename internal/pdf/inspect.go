// Package pdf inspects PDF files before they are attached to articles.
package pdf

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	ledongthuc "github.com/ledongthuc/pdf"
)

// Sentinel errors for PDF inspection.
var (
	// ErrNotPDF is returned when the file does not carry a PDF header.
	ErrNotPDF = errors.New("pdf: file is not a PDF")
	// ErrTooLarge is returned when the file exceeds the maximum allowed size.
	ErrTooLarge = errors.New("pdf: file exceeds maximum size")
)

// headerWindow is how far into the file the %PDF- marker may appear.
const headerWindow = 1024

var magic = []byte("%PDF-")

// Info describes an inspected PDF.
type Info struct {
	// Pages is the page count, or 0 when the document structure could not be read.
	Pages int
}

// Inspector validates PDF files.
type Inspector struct {
	maxSize int64
}

// NewInspector creates an Inspector. maxSize <= 0 means 100MB.
func NewInspector(maxSize int64) *Inspector {
	if maxSize <= 0 {
		maxSize = 100 * 1024 * 1024
	}
	return &Inspector{maxSize: maxSize}
}

// Inspect checks the header and size of the file at path and counts its pages.
// Returns ErrNotPDF if the %PDF- marker is missing from the first 1KB.
// Returns ErrTooLarge if the file exceeds the configured size.
func (i *Inspector) Inspect(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReaderSize(f, headerWindow)
	head, err := br.Peek(headerWindow)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !bytes.Contains(head, magic) {
		return nil, ErrNotPDF
	}

	n, err := io.Copy(io.Discard, io.LimitReader(br, i.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if n > i.maxSize {
		return nil, fmt.Errorf("%w: exceeded %d bytes", ErrTooLarge, i.maxSize)
	}

	return &Info{Pages: PageCount(path)}, nil
}

// PageCount returns the number of pages in the PDF at path, or 0 when the
// document cannot be parsed. Malformed cross-reference data can make the
// parser panic, so panics are treated as unreadable documents.
func PageCount(path string) (pages int) {
	defer func() {
		if recover() != nil {
			pages = 0
		}
	}()

	f, r, err := ledongthuc.Open(path)
	if err != nil {
		return 0
	}
	defer func() { _ = f.Close() }()

	return r.NumPage()
}
