package domain

// ImportRecord is one normalized BibTeX entry on its way into the catalog.
type ImportRecord struct {
	// CitationKey identifies the entry within its batch and names its PDF.
	CitationKey string
	Title       string `validate:"required,min=5"`
	Authors     string
	EventName   string
	Year        *int
	StartPage   *int
	EndPage     *int
	PDFPath     string
	PDFPages    *int
	Booktitle   string
	Publisher   string
	Location    string
}

// Identifier returns the label used for the record in skip reports.
func (r *ImportRecord) Identifier() string {
	if r.CitationKey != "" {
		return r.CitationKey
	}
	return r.Title
}

// ExpectedPDFName is the archive filename the record's PDF must carry.
func (r *ImportRecord) ExpectedPDFName() string {
	return r.CitationKey + ".pdf"
}

// ToArticle maps the record onto a new Article for the given edition.
func (r *ImportRecord) ToArticle(editionID int64) Article {
	return Article{
		Title:     r.Title,
		Authors:   r.Authors,
		EventName: r.EventName,
		Year:      r.Year,
		StartPage: r.StartPage,
		EndPage:   r.EndPage,
		PDFPath:   r.PDFPath,
		PDFPages:  r.PDFPages,
		Booktitle: r.Booktitle,
		Publisher: r.Publisher,
		Location:  r.Location,
		EditionID: editionID,
	}
}

// SkipCode classifies why a record was left out of a batch.
type SkipCode string

// Skip codes. Messages are the human readable reasons reported to callers.
const (
	SkipMissingTitle    SkipCode = "missing_title"
	SkipTitleTooShort   SkipCode = "title_too_short"
	SkipMissingYear     SkipCode = "missing_year"
	SkipDuplicateKey    SkipCode = "duplicate_key"
	SkipEventNotFound   SkipCode = "event_not_found"
	SkipEditionNotFound SkipCode = "edition_not_found"
	SkipNoEdition       SkipCode = "no_edition"
	SkipDuplicate       SkipCode = "duplicate"
	SkipPDFMissing      SkipCode = "pdf_missing"
	SkipPDFInvalid      SkipCode = "pdf_invalid"
	SkipPDFWriteFailed  SkipCode = "pdf_write_failed"
)

var skipMessages = map[SkipCode]string{
	SkipMissingTitle:    "missing title",
	SkipTitleTooShort:   "title too short",
	SkipMissingYear:     "missing year",
	SkipDuplicateKey:    "duplicate citation key in batch",
	SkipEventNotFound:   "event not found",
	SkipEditionNotFound: "no edition for that event/year",
	SkipNoEdition:       "no edition registered for event",
	SkipDuplicate:       "already cataloged in this edition",
	SkipPDFMissing:      "no matching PDF in archive",
	SkipPDFInvalid:      "invalid PDF file",
	SkipPDFWriteFailed:  "failed to store PDF",
}

// Message returns the human readable reason for the code.
func (c SkipCode) Message() string {
	if msg, ok := skipMessages[c]; ok {
		return msg
	}
	return string(c)
}

// SkippedRecord is one entry of an import's skip report.
type SkippedRecord struct {
	Identifier string   `json:"identifier"`
	Reason     string   `json:"reason"`
	Code       SkipCode `json:"code"`
}

// NewSkippedRecord builds a report entry for the record.
func NewSkippedRecord(r *ImportRecord, code SkipCode) SkippedRecord {
	return SkippedRecord{
		Identifier: r.Identifier(),
		Reason:     code.Message(),
		Code:       code,
	}
}

// ImportResult summarizes a committed import batch.
type ImportResult struct {
	ImportID       string          `json:"import_id"`
	ImportedCount  int             `json:"imported_count"`
	ImportedTitles []string        `json:"imported_titles"`
	SkippedCount   int             `json:"skipped_count"`
	SkippedReport  []SkippedRecord `json:"skipped_report"`
}

// NewImportResult returns an empty result with non-nil slices.
func NewImportResult(importID string) *ImportResult {
	return &ImportResult{
		ImportID:       importID,
		ImportedTitles: []string{},
		SkippedReport:  []SkippedRecord{},
	}
}

// AddImported records a staged article.
func (r *ImportResult) AddImported(title string) {
	r.ImportedTitles = append(r.ImportedTitles, title)
	r.ImportedCount = len(r.ImportedTitles)
}

// AddSkipped records a skipped entry.
func (r *ImportResult) AddSkipped(s SkippedRecord) {
	r.SkippedReport = append(r.SkippedReport, s)
	r.SkippedCount = len(r.SkippedReport)
}
