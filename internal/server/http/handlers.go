package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bibliotheca/catalog-service/internal/domain"
	"github.com/bibliotheca/catalog-service/internal/observability"
)

// Pagination and request size constants.
const (
	defaultPageSize    = 50
	maxPageSize        = 100
	maxRecentLimit     = 50
	maxRequestBodySize = 1 << 20 // 1 MB limit for JSON bodies
)

// decodeBody reads a JSON request body into dst and validates it. On failure
// it writes a 400 response and returns false.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeDomainError(w, validationError(err))
		return false
	}
	return true
}

// validationError converts validator output into a domain.ValidationError
// naming the first offending JSON field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewValidationError("body", "invalid request")
	}
	fe := verrs[0]
	field := jsonFieldName(fe)

	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "min":
		msg = fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		msg = fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		msg = fmt.Sprintf("must be greater than %s", fe.Param())
	case "email":
		msg = "must be a valid email address"
	case "url":
		msg = "must be a valid URL"
	default:
		msg = "is invalid"
	}
	return domain.NewValidationError(field, msg)
}

func jsonFieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return strings.ToLower(fe.StructField())
	}
	return name
}

// jsonTagName makes validator report fields by their JSON names.
func jsonTagName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// writeDomainError maps domain errors to HTTP status codes and writes a JSON
// error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var (
		ve *domain.ValidationError
		nf *domain.NotFoundError
		ae *domain.AlreadyExistsError
	)

	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s %s", ve.Field, ve.Message))
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.As(err, &ae):
		writeError(w, http.StatusConflict, ae.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrInvalidBibTeX):
		writeError(w, http.StatusBadRequest, "invalid BibTeX input")
	case errors.Is(err, domain.ErrInvalidArchive):
		writeError(w, http.StatusBadRequest, "invalid PDF archive")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrCommitFailed):
		writeError(w, http.StatusInternalServerError, "import could not be saved, nothing was stored")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// fail logs unexpected errors and writes the mapped response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if isServerError(err) {
		logger := observability.WithRequestContext(s.logger, observability.RequestContextFromContext(r.Context()))
		logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	writeDomainError(w, err)
}

func isServerError(err error) bool {
	for _, known := range []error{
		domain.ErrInvalidInput,
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrInvalidBibTeX,
		domain.ErrInvalidArchive,
		domain.ErrRateLimited,
	} {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}

// parseID parses a positive integer identifier, writing a 400 error response if invalid.
// The raw value is not echoed back.
func parseID(w http.ResponseWriter, s, fieldName string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a positive integer", fieldName))
		return 0, false
	}
	return id, true
}

// pathParam returns the unescaped value of a URL path segment.
func pathParam(raw string) string {
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// parsePaginationParams extracts page_size and page_token from query parameters.
// It applies default and maximum bounds to the page size.
func parsePaginationParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if pageSizeStr := r.URL.Query().Get("page_size"); pageSizeStr != "" {
		if parsed, err := strconv.Atoi(pageSizeStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if pageToken := r.URL.Query().Get("page_token"); pageToken != "" {
		decoded, err := base64.StdEncoding.DecodeString(pageToken)
		if err == nil {
			if parsed, parseErr := strconv.Atoi(string(decoded)); parseErr == nil && parsed > 0 {
				offset = parsed
			}
		}
	}

	return limit, offset
}

// parseRecentLimit reads ?limit= for the recent listings. Zero means the repository default.
func parseRecentLimit(r *http.Request) int {
	parsed, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || parsed <= 0 {
		return 0
	}
	if parsed > maxRecentLimit {
		return maxRecentLimit
	}
	return parsed
}

// encodeHTTPPageToken encodes the next offset as a base64 page token.
// Returns an empty string if there are no more results.
func encodeHTTPPageToken(offset, limit, totalCount int) string {
	nextOffset := offset + limit
	if nextOffset < totalCount {
		return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(nextOffset)))
	}
	return ""
}
