package httpserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

// Multipart field names of the import upload.
const (
	bibtexField  = "bibtex_file"
	archiveField = "pdf_zip_file"
)

const (
	// multipartMemory is kept in memory by ParseMultipartForm; the rest spills to disk.
	multipartMemory = 32 << 20
	// multipartOverhead allows for part headers and boundaries.
	multipartOverhead = 1 << 20
)

type importStageResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage"`
}

// importArticles handles POST /articles/import. It reads a BibTeX file and a
// ZIP of PDFs and runs them as one batch.
func (s *Server) importArticles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.limits.MaxBibTeXBytes+s.limits.MaxArchiveBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "request must be multipart/form-data")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	bibtexData, ok := readFormFile(w, r, bibtexField, s.limits.MaxBibTeXBytes)
	if !ok {
		return
	}
	archiveData, ok := readFormFile(w, r, archiveField, s.limits.MaxArchiveBytes)
	if !ok {
		return
	}

	result, err := s.importer.Import(r.Context(), bibtexData, archiveData)
	if err != nil {
		s.writeImportError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// readFormFile reads one uploaded part, enforcing its size limit.
func readFormFile(w http.ResponseWriter, r *http.Request, field string, limit int64) ([]byte, bool) {
	f, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeError(w, http.StatusBadRequest, field+" is required")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "failed to read "+field)
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read "+field)
		return nil, false
	}
	if int64(len(data)) > limit {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("%s exceeds %d bytes", field, limit))
		return nil, false
	}
	return data, true
}

// writeImportError reports a batch failure together with the stage that failed.
func (s *Server) writeImportError(w http.ResponseWriter, r *http.Request, err error) {
	var importErr *domain.ImportError
	if !errors.As(err, &importErr) {
		s.fail(w, r, err)
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidBibTeX):
		writeJSON(w, http.StatusBadRequest, importStageResponse{
			Error: importErr.Err.Error(),
			Stage: importErr.Stage,
		})
	case errors.Is(err, domain.ErrInvalidArchive):
		writeJSON(w, http.StatusBadRequest, importStageResponse{
			Error: "invalid PDF archive",
			Stage: importErr.Stage,
		})
	default:
		s.logger.Error().Err(err).Str("stage", importErr.Stage).Msg("import request failed")
		writeJSON(w, http.StatusInternalServerError, importStageResponse{
			Error: "import could not be saved, nothing was stored",
			Stage: importErr.Stage,
		})
	}
}
