package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibliotheca/catalog-service/internal/domain"
	"github.com/bibliotheca/catalog-service/internal/repository"
)

// TestSQLInjection_SearchQuery verifies that SQL injection payloads in the
// search query reach the repository verbatim as data and never produce a 500.
func TestSQLInjection_SearchQuery(t *testing.T) {
	payloads := []struct {
		name  string
		query string
	}{
		{"drop table", "'; DROP TABLE articles; --"},
		{"boolean tautology", "1 OR 1=1"},
		{"union select", "' UNION SELECT * FROM subscribers --"},
		{"like wildcard", "%_%"},
		{"comment injection", "title/* comment */"},
		{"batch separator", "query\nGO\nDROP TABLE events"},
	}

	for _, tc := range payloads {
		t.Run(tc.name, func(t *testing.T) {
			var captured string
			articles := &mockArticleRepo{
				searchFn: func(_ context.Context, f repository.ArticleFilter) ([]*domain.Article, int64, error) {
					captured = f.Query
					return nil, 0, nil
				},
			}
			srv := newTestHTTPServer(Dependencies{Articles: articles})

			path := "/api/v1/articles/search?field=title&q=" + url.QueryEscape(tc.query)
			rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, path, nil))

			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tc.query, captured)
		})
	}
}

// TestXSSPayload_EventName verifies that script payloads are returned as JSON
// string data with a JSON content type, never as HTML.
func TestXSSPayload_EventName(t *testing.T) {
	payload := `<script>alert("x")</script>`
	events := &mockEventRepo{
		createFn: func(context.Context, *domain.Event) error { return nil },
	}
	srv := newTestHTTPServer(Dependencies{Events: events})

	body, err := json.Marshal(map[string]string{"name": payload})
	require.NoError(t, err)
	rr := serveHTTP(srv, jsonRequest(http.MethodPost, "/api/v1/events", string(body)))

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.NotContains(t, rr.Body.String(), "<script>")

	var resp eventResponse
	decodeJSON(t, rr, &resp)
	assert.Equal(t, payload, resp.Name)
}

// TestOversizedJSONBody verifies that bodies beyond the limit are rejected
// without reaching the repository.
func TestOversizedJSONBody(t *testing.T) {
	events := &mockEventRepo{
		createFn: func(context.Context, *domain.Event) error {
			t.Fatal("oversized body must not reach the repository")
			return nil
		},
	}
	srv := newTestHTTPServer(Dependencies{Events: events})

	body := fmt.Sprintf(`{"name":"SBES","description":%q}`, strings.Repeat("a", maxRequestBodySize))
	rr := serveHTTP(srv, jsonRequest(http.MethodPost, "/api/v1/events", body))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// TestPathIDs_RejectNonNumeric verifies identifier parsing never echoes the raw value.
func TestPathIDs_RejectNonNumeric(t *testing.T) {
	srv := newTestHTTPServer(Dependencies{})

	for _, path := range []string{
		"/api/v1/articles/-1",
		"/api/v1/articles/0",
		"/api/v1/articles/1%20OR%201=1",
		"/api/v1/articles/99999999999999999999",
	} {
		t.Run(path, func(t *testing.T) {
			rr := serveHTTP(srv, httptest.NewRequest(http.MethodDelete, path, nil))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "article id must be a positive integer", errorMessage(t, rr))
		})
	}
}

func TestWriteDomainError_NeverLeaksInternalDetails(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "generic error with DB details",
			err:            fmt.Errorf("FATAL: password authentication failed for user \"admin\""),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "internal server error",
		},
		{
			name:           "wrapped postgres error",
			err:            fmt.Errorf("repository: %w", fmt.Errorf("ERROR: relation \"articles\" does not exist")),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "internal server error",
		},
		{
			name:           "commit failure cause",
			err:            fmt.Errorf("%w: could not serialize access", domain.ErrCommitFailed),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "import could not be saved, nothing was stored",
		},
		{
			name:           "nil error is no-op",
			err:            nil,
			expectedStatus: http.StatusOK, // writeDomainError returns without writing on nil
			expectedBody:   "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeDomainError(rr, tc.err)

			if tc.err == nil {
				assert.Equal(t, http.StatusOK, rr.Code)
				assert.Zero(t, rr.Body.Len())
				return
			}

			assert.Equal(t, tc.expectedStatus, rr.Code)
			assert.Equal(t, tc.expectedBody, errorMessage(t, rr))
			assert.NotContains(t, rr.Body.String(), tc.err.Error())
		})
	}
}
