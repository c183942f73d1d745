// Package observability provides interfaces for logging and metrics collection
// in the go-fpp library.
//
// This package defines standard interfaces that allow users to integrate their
// own logging and metrics implementations with the FPP client.
//
// # Logger Interface
//
// The Logger interface supports structured logging with key-value pairs:
//
//	client, err := fpp.NewWithConfig(&fpp.ClientConfig{
//		Target: fpp.Target{Host: "192.168.1.50"},
//		Logger: observability.NewSlogLogger(slog.Default()),
//	})
//
// Supported log levels:
//   - Debug: Detailed diagnostic information (requests, cache hits)
//   - Info: General informational messages
//   - Warn: Retries, degraded version detection, 4xx/5xx responses
//   - Error: Transport failures
//
// # MetricsRecorder Interface
//
// The MetricsRecorder interface tracks client metrics:
//   - HTTP request count, status codes, and duration
//   - Retry attempts for failed requests
//   - Rate limiting events and wait times
//   - Error occurrences by kind
//   - Cache hits, misses and invalidations per namespace
//
// A Prometheus implementation lives in the observability/prometheus package.
//
// # Default Behavior
//
// If no logger or metrics recorder is provided, the client uses no-op
// implementations that discard all events.
package observability
