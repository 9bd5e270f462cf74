package bibtex

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

// eventFields are consulted in order to seed a record's event name.
var eventFields = []string{"event", "booktitle", "journal", "publisher"}

// Parse reads BibTeX text and returns one import record per entry, in source
// order. Input with no entries is rejected. Records may still lack a title;
// callers validate them individually.
func Parse(r io.Reader) ([]domain.ImportRecord, error) {
	entries, err := ParseEntries(r)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries found", domain.ErrInvalidBibTeX)
	}

	records := make([]domain.ImportRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, ToRecord(e))
	}
	return records, nil
}

// ToRecord maps a raw entry onto an import record.
func ToRecord(e Entry) domain.ImportRecord {
	rec := domain.ImportRecord{
		CitationKey: e.Key,
		Title:       e.Field("title"),
		Authors:     e.Field("author"),
		Year:        parseInt(e.Field("year")),
		Booktitle:   e.Field("booktitle"),
		Publisher:   e.Field("publisher"),
		Location:    firstField(e, "address", "location"),
		EventName:   firstField(e, eventFields...),
	}
	rec.StartPage, rec.EndPage = parsePages(e)
	return rec
}

// parsePages splits "start--end". A single number is a start page.
// Without a pages field, page_start and page_end are used.
func parsePages(e Entry) (*int, *int) {
	pages := e.Field("pages")
	if pages == "" {
		return parseInt(e.Field("page_start")), parseInt(e.Field("page_end"))
	}

	start, end, found := strings.Cut(pages, "--")
	if !found {
		return parseInt(start), nil
	}
	return parseInt(start), parseInt(end)
}

// parseInt returns nil unless s is a positive integer that fits the
// INTEGER columns it is stored in.
func parseInt(s string) *int {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil || n <= 0 {
		return nil
	}
	v := int(n)
	return &v
}

func firstField(e Entry, names ...string) string {
	for _, name := range names {
		if v := e.Field(name); v != "" {
			return v
		}
	}
	return ""
}
