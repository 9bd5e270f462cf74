package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the catalog service.
// Metrics are organized by subsystem: imports, notifications, and the HTTP API.
// All counters and histograms are registered via promauto with the default registry.
type Metrics struct {
	// ImportsStarted counts import requests that passed request validation.
	ImportsStarted prometheus.Counter

	// ImportsCompleted counts imports that committed.
	ImportsCompleted prometheus.Counter

	// ImportsFailed counts imports aborted by a batch-level error, labeled by stage.
	ImportsFailed *prometheus.CounterVec

	// ImportDuration observes end-to-end import duration in seconds.
	ImportDuration prometheus.Histogram

	// RecordsImported counts articles created by imports.
	RecordsImported prometheus.Counter

	// RecordsSkipped counts records left out of a batch, labeled by reason code.
	RecordsSkipped *prometheus.CounterVec

	// PDFsStored counts PDFs copied into permanent storage.
	PDFsStored prometheus.Counter

	// NotificationsSent counts subscriber notifications handed to the sender.
	NotificationsSent prometheus.Counter

	// NotificationsFailed counts notifications the sender rejected.
	NotificationsFailed prometheus.Counter

	// HTTPRequests counts API requests, labeled by route pattern and status code.
	HTTPRequests *prometheus.CounterVec

	// HTTPRequestDuration observes API request duration in seconds, labeled by route pattern.
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Imports
		ImportsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_started_total",
			Help:      "Total number of BibTeX imports started",
		}),
		ImportsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_completed_total",
			Help:      "Total number of BibTeX imports committed",
		}),
		ImportsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_failed_total",
			Help:      "Total number of BibTeX imports aborted, by stage",
		}, []string{"stage"}),
		ImportDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Duration of BibTeX imports in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		RecordsImported: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_records_imported_total",
			Help:      "Total number of articles created by imports",
		}),
		RecordsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_records_skipped_total",
			Help:      "Total number of import records skipped, by reason",
		}, []string{"reason"}),
		PDFsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdfs_stored_total",
			Help:      "Total number of PDFs written to permanent storage",
		}),

		// Notifications
		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of subscriber notifications sent",
		}),
		NotificationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Total number of subscriber notifications that failed",
		}),

		// HTTP
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests, by route and status",
		}, []string{"route", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds, by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// RecordImportStarted records that an import has started.
func (m *Metrics) RecordImportStarted() {
	m.ImportsStarted.Inc()
}

// RecordImportCompleted records a committed import and its record counts.
func (m *Metrics) RecordImportCompleted(imported int, durationSeconds float64) {
	m.ImportsCompleted.Inc()
	m.RecordsImported.Add(float64(imported))
	m.ImportDuration.Observe(durationSeconds)
}

// RecordImportFailed records an import aborted at the given stage.
func (m *Metrics) RecordImportFailed(stage string, durationSeconds float64) {
	m.ImportsFailed.WithLabelValues(stage).Inc()
	m.ImportDuration.Observe(durationSeconds)
}

// RecordRecordSkipped records a record skipped for the given reason code.
func (m *Metrics) RecordRecordSkipped(reason string) {
	m.RecordsSkipped.WithLabelValues(reason).Inc()
}

// RecordPDFStored records a PDF written to permanent storage.
func (m *Metrics) RecordPDFStored() {
	m.PDFsStored.Inc()
}

// RecordNotification records the outcome of one notification.
func (m *Metrics) RecordNotification(err error) {
	if err != nil {
		m.NotificationsFailed.Inc()
		return
	}
	m.NotificationsSent.Inc()
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(route, status string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(durationSeconds)
}
