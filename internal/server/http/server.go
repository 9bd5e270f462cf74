// Package httpserver provides the HTTP REST API of the catalog service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/bibliotheca/catalog-service/internal/database"
	"github.com/bibliotheca/catalog-service/internal/domain"
	"github.com/bibliotheca/catalog-service/internal/observability"
	"github.com/bibliotheca/catalog-service/internal/repository"
)

// Importer runs one BibTeX + PDF archive import.
type Importer interface {
	Import(ctx context.Context, bibtexData, archiveData []byte) (*domain.ImportResult, error)
}

// PDFFiles gives handlers access to stored article PDFs.
type PDFFiles interface {
	Open(path string) (*os.File, error)
	Remove(path string) error
}

// HealthChecker reports database health.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Server is the HTTP REST API server.
type Server struct {
	router      chi.Router
	httpServer  *http.Server
	events      repository.EventRepository
	editions    repository.EditionRepository
	articles    repository.ArticleRepository
	subscribers repository.SubscriberRepository
	importer    Importer
	pdfs        PDFFiles
	health      HealthChecker
	metrics     *observability.Metrics
	validate    *validator.Validate
	limits      Limits
	cors        CORSConfig
	logger      zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Limits          Limits
	CORS            CORSConfig
}

// Limits bounds uploads and the import request rate.
type Limits struct {
	// MaxBibTeXBytes caps the bibtex_file part. Default: 10MB.
	MaxBibTeXBytes int64
	// MaxArchiveBytes caps the pdf_zip_file part. Default: 256MB.
	MaxArchiveBytes int64
	// ImportRate is the number of import requests accepted per second. Zero disables limiting.
	ImportRate float64
	// ImportBurst is the burst of the import limiter.
	ImportBurst int
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         int
}

// Dependencies are the collaborators the handlers call.
type Dependencies struct {
	Events      repository.EventRepository
	Editions    repository.EditionRepository
	Articles    repository.ArticleRepository
	Subscribers repository.SubscriberRepository
	Importer    Importer
	PDFs        PDFFiles
	Health      HealthChecker
	// Metrics is optional.
	Metrics *observability.Metrics
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Dependencies, logger zerolog.Logger) *Server {
	s := &Server{
		events:      deps.Events,
		editions:    deps.Editions,
		articles:    deps.Articles,
		subscribers: deps.Subscribers,
		importer:    deps.Importer,
		pdfs:        deps.PDFs,
		health:      deps.Health,
		metrics:     deps.Metrics,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		limits:      cfg.Limits.withDefaults(),
		cors:        cfg.CORS,
		logger:      logger.With().Str("component", "http-server").Logger(),
	}
	s.validate.RegisterTagNameFunc(jsonTagName)

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

func (l Limits) withDefaults() Limits {
	if l.MaxBibTeXBytes <= 0 {
		l.MaxBibTeXBytes = 10 << 20
	}
	if l.MaxArchiveBytes <= 0 {
		l.MaxArchiveBytes = 256 << 20
	}
	if l.ImportBurst <= 0 {
		l.ImportBurst = 1
	}
	return l
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(s.metricsMiddleware)
	if len(s.cors.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cors.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Correlation-ID", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Correlation-ID"},
			AllowCredentials: false,
			MaxAge:           s.cors.MaxAge,
		}))
	}

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			r.With(jsonContentTypeMiddleware).Post("/", s.createEvent)
			r.With(jsonContentTypeMiddleware).Get("/", s.listEvents)
			r.With(jsonContentTypeMiddleware).Get("/recent", s.recentEvents)
			r.With(jsonContentTypeMiddleware).Get("/{name}", s.getEvent)
			r.With(jsonContentTypeMiddleware).Put("/{id}", s.updateEvent)
			r.With(jsonContentTypeMiddleware).Delete("/{id}", s.deleteEvent)
			r.With(jsonContentTypeMiddleware).Post("/{id}/editions", s.createEdition)
		})

		r.Route("/editions", func(r chi.Router) {
			r.Use(jsonContentTypeMiddleware)
			r.Put("/{id}", s.updateEdition)
			r.Delete("/{id}", s.deleteEdition)
			r.Get("/{eventName}/{year}", s.getEditionWithArticles)
		})

		r.Route("/articles", func(r chi.Router) {
			r.With(jsonContentTypeMiddleware).Post("/", s.createArticle)
			r.With(jsonContentTypeMiddleware).Get("/search", s.searchArticles)
			r.With(jsonContentTypeMiddleware).Get("/recent", s.recentArticles)
			r.With(jsonContentTypeMiddleware).Put("/{id}", s.updateArticle)
			r.With(jsonContentTypeMiddleware).Delete("/{id}", s.deleteArticle)
			r.Get("/{id}/pdf", s.downloadArticlePDF)
			r.With(jsonContentTypeMiddleware, s.importRateLimit()).Post("/import", s.importArticles)
		})

		r.Route("/subscribers", func(r chi.Router) {
			r.Use(jsonContentTypeMiddleware)
			r.Post("/", s.createSubscriber)
			r.Get("/", s.listSubscribers)
		})
	})

	return r
}

// importRateLimit returns the limiter middleware for the import route.
func (s *Server) importRateLimit() func(http.Handler) http.Handler {
	if s.limits.ImportRate <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return rateLimitMiddleware(rate.NewLimiter(rate.Limit(s.limits.ImportRate), s.limits.ImportBurst))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports whether the database is reachable.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	health := s.health.Health(r.Context())
	if !health.Healthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "not_ready",
			"database": health,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ready",
		"database": health,
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
