// Package observability provides logging and metrics support for the
// catalog service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for imports, notifications, and the HTTP API
//   - Context helpers for propagating request and import identifiers
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger.Info().Str("import_id", id).Msg("import started")
//
// Import runs derive a child logger per batch and per record:
//
//	logger = observability.WithImportContext(logger, importID, len(records))
//	logger = observability.WithRecordContext(logger, key, title)
//
// # Metrics
//
// Metrics are registered with the default Prometheus registry:
//
//	metrics := observability.NewMetrics("catalog")
//	metrics.RecordImportStarted()
//	metrics.RecordImportCompleted(imported, time.Since(start).Seconds())
//
// # Context
//
// Identifiers travel on context.Context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithImportID(ctx, importID)
//	rc := observability.RequestContextFromContext(ctx)
package observability
