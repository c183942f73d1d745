// Package prometheus provides an observability.MetricsRecorder backed by
// Prometheus collectors.
package prometheus

import (
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	promclient "github.com/prometheus/client_golang/prometheus"

	"github.com/lexfrei/go-fpp/observability"
)

const namespace = "fpp_client"

// Recorder records client metrics into Prometheus collectors.
type Recorder struct {
	requests      *promclient.CounterVec
	duration      *promclient.HistogramVec
	retries       *promclient.CounterVec
	rateLimitWait *promclient.HistogramVec
	errorsTotal   *promclient.CounterVec
	cacheHits     *promclient.CounterVec
	cacheMisses   *promclient.CounterVec
	invalidations *promclient.CounterVec
}

// Compile-time check to ensure Recorder implements MetricsRecorder.
var _ observability.MetricsRecorder = (*Recorder)(nil)

// New creates a Recorder and registers its collectors with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg promclient.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}

	r := &Recorder{
		requests: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests sent to FPP devices.",
		}, []string{"method", "path", "status"}),
		duration: promclient.NewHistogramVec(promclient.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests sent to FPP devices.",
			Buckets:   promclient.DefBuckets,
		}, []string{"method", "path"}),
		retries: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried attempts per operation.",
		}, []string{"operation"}),
		rateLimitWait: promclient.NewHistogramVec(promclient.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting for the client-side rate limiter.",
			Buckets:   promclient.ExponentialBuckets(0.001, 4, 8),
		}, []string{"endpoint"}),
		errorsTotal: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors per operation and kind.",
		}, []string{"operation", "kind"}),
		cacheHits: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Responses served from the response cache.",
		}, []string{"namespace"}),
		cacheMisses: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cacheable requests that went to the device.",
		}, []string{"namespace"}),
		invalidations: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidated_entries_total",
			Help:      "Cache entries dropped by write invalidation.",
		}, []string{"namespace"}),
	}

	for _, c := range []promclient.Collector{
		r.requests, r.duration, r.retries, r.rateLimitWait,
		r.errorsTotal, r.cacheHits, r.cacheMisses, r.invalidations,
	} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register collector")
		}
	}

	return r, nil
}

// RecordHTTPRequest implements observability.MetricsRecorder.
func (r *Recorder) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	r.requests.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	r.duration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRetry implements observability.MetricsRecorder.
func (r *Recorder) RecordRetry(_ int, operation string) {
	r.retries.WithLabelValues(operation).Inc()
}

// RecordRateLimit implements observability.MetricsRecorder.
func (r *Recorder) RecordRateLimit(endpoint string, wait time.Duration) {
	r.rateLimitWait.WithLabelValues(endpoint).Observe(wait.Seconds())
}

// RecordError implements observability.MetricsRecorder.
func (r *Recorder) RecordError(operation, errorType string) {
	r.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordCacheHit implements observability.MetricsRecorder.
func (r *Recorder) RecordCacheHit(ns string) {
	r.cacheHits.WithLabelValues(ns).Inc()
}

// RecordCacheMiss implements observability.MetricsRecorder.
func (r *Recorder) RecordCacheMiss(ns string) {
	r.cacheMisses.WithLabelValues(ns).Inc()
}

// RecordCacheInvalidation implements observability.MetricsRecorder.
func (r *Recorder) RecordCacheInvalidation(ns string, entries int) {
	r.invalidations.WithLabelValues(ns).Add(float64(entries))
}
