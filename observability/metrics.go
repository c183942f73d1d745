package observability

import "time"

// MetricsRecorder receives the client's measurements. The prometheus
// subpackage implements it; tests usually count calls.
type MetricsRecorder interface {
	// RecordHTTPRequest is called once per attempt that reached the device.
	// Path is normalized, so playlist and setting names do not explode
	// label cardinality.
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)

	// RecordRetry is called after attempt n of op failed and will be retried.
	RecordRetry(attempt int, operation string)

	// RecordRateLimit is called when the client-side limiter delayed a request.
	RecordRateLimit(endpoint string, wait time.Duration)

	// RecordError is called when an operation fails, with the fpperr kind name.
	RecordError(operation, errorType string)

	RecordCacheHit(namespace string)
	RecordCacheMiss(namespace string)

	// RecordCacheInvalidation reports entries dropped from namespace by a write.
	RecordCacheInvalidation(namespace string, entries int)
}

type noopMetricsRecorder struct{}

// NoopMetricsRecorder returns a recorder that drops everything.
//
//nolint:ireturn // Factory function must return interface for dependency injection pattern
func NoopMetricsRecorder() MetricsRecorder {
	return noopMetricsRecorder{}
}

func (noopMetricsRecorder) RecordHTTPRequest(string, string, int, time.Duration) {}
func (noopMetricsRecorder) RecordRetry(int, string)                              {}
func (noopMetricsRecorder) RecordRateLimit(string, time.Duration)                {}
func (noopMetricsRecorder) RecordError(string, string)                           {}
func (noopMetricsRecorder) RecordCacheHit(string)                                {}
func (noopMetricsRecorder) RecordCacheMiss(string)                               {}
func (noopMetricsRecorder) RecordCacheInvalidation(string, int)                  {}
