package middleware

import (
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/lexfrei/go-fpp/observability"
)

// Observability returns a middleware that logs and records metrics for HTTP requests.
func Observability(logger observability.Logger, metrics observability.MetricsRecorder) func(http.RoundTripper) http.RoundTripper {
	if logger == nil {
		logger = observability.NoopLogger()
	}
	if metrics == nil {
		metrics = observability.NoopMetricsRecorder()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return &observabilityTransport{
			next:    next,
			logger:  logger,
			metrics: metrics,
		}
	}
}

type observabilityTransport struct {
	next    http.RoundTripper
	logger  observability.Logger
	metrics observability.MetricsRecorder
}

func (t *observabilityTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	path := normalizePath(req.URL.Path)
	requestID := req.Header.Get(RequestIDHeader)

	t.logger.Debug("http request started",
		observability.Field{Key: "method", Value: req.Method},
		observability.Field{Key: "host", Value: req.URL.Host},
		observability.Field{Key: "path", Value: req.URL.Path},
		observability.Field{Key: "request_id", Value: requestID},
	)

	resp, err := t.next.RoundTrip(req)

	duration := time.Since(start)

	if err != nil {
		// Canceled requests are the caller's decision, not a device failure.
		level := t.logger.Warn
		if req.Context().Err() != nil {
			level = t.logger.Debug
		}
		level("http request failed",
			observability.Field{Key: "method", Value: req.Method},
			observability.Field{Key: "host", Value: req.URL.Host},
			observability.Field{Key: "path", Value: req.URL.Path},
			observability.Field{Key: "request_id", Value: requestID},
			observability.Field{Key: "duration", Value: duration},
			observability.Err(err),
		)

		t.metrics.RecordError(path, "network")

		//nolint:wrapcheck // Observability middleware logs error but passes it through unchanged
		return nil, err
	}

	fields := []observability.Field{
		{Key: "method", Value: req.Method},
		{Key: "host", Value: req.URL.Host},
		{Key: "path", Value: req.URL.Path},
		{Key: "request_id", Value: requestID},
		{Key: "status", Value: resp.StatusCode},
		{Key: "duration", Value: duration},
	}

	if resp.StatusCode >= http.StatusBadRequest {
		t.logger.Warn("http request completed with error", fields...)
	} else {
		t.logger.Debug("http request completed", fields...)
	}

	t.metrics.RecordHTTPRequest(req.Method, path, resp.StatusCode, duration)

	return resp, nil
}

type pathRule struct {
	pattern     *regexp.Regexp
	replacement string
}

var (
	// Playlist, setting and sequence names are user-chosen and would blow up
	// metric cardinality.
	pathRules = []pathRule{
		{regexp.MustCompile(`^/api/playlist/[^/]+/start(?:/\d+){0,2}$`), "/api/playlist/:name/start"},
		{regexp.MustCompile(`^/api/playlist/[^/]+$`), "/api/playlist/:name"},
		{regexp.MustCompile(`^/api/settings/[^/]+$`), "/api/settings/:name"},
		{regexp.MustCompile(`^/api/sequence/[^/]+(/meta)?$`), "/api/sequence/:name$1"},
	}

	normalizedPathCache sync.Map
)

// normalizePath replaces user-named path segments with placeholders.
//
// Examples:
//   - /api/playlist/Christmas%20Eve/start/2/1 → /api/playlist/:name/start
//   - /api/settings/HostName → /api/settings/:name
//   - /api/system/status → /api/system/status
func normalizePath(path string) string {
	if cached, ok := normalizedPathCache.Load(path); ok {
		//nolint:forcetypeassert // Cache only stores strings, type assertion is safe
		return cached.(string)
	}

	normalized := path
	for _, rule := range pathRules {
		if rule.pattern.MatchString(path) {
			normalized = rule.pattern.ReplaceAllString(path, rule.replacement)
			break
		}
	}

	normalizedPathCache.Store(path, normalized)

	return normalized
}
