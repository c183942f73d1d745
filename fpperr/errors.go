// Package fpperr defines the classified errors returned by the FPP client.
//
// Every error that leaves the client is one of the kinds declared here, so
// callers can branch with errors.As or with Classify instead of inspecting
// transport details:
//
//	status, err := client.SystemStatus(ctx)
//	switch fpperr.Classify(err) {
//	case fpperr.KindRetryExhausted:
//		// device unreachable after retries
//	case fpperr.KindUnsupported:
//		// firmware too old for this operation
//	}
package fpperr

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrClosed is returned by operations on a client that has been closed.
var ErrClosed = errors.New("fpp: client is closed")

// Kind is the coarse classification of an error returned by the client.
type Kind int

// Error kinds, see Classify.
const (
	KindNone Kind = iota
	KindUnknown
	KindTransient
	KindPermanent
	KindDecode
	KindRetryExhausted
	KindUnsupported
	KindAPI
	KindValidation
	KindCacheInvariant
	KindClosed
)

var kindNames = map[Kind]string{
	KindNone:           "none",
	KindUnknown:        "unknown",
	KindTransient:      "transient_transport",
	KindPermanent:      "permanent_transport",
	KindDecode:         "decode",
	KindRetryExhausted: "retry_exhausted",
	KindUnsupported:    "unsupported_feature",
	KindAPI:            "api",
	KindValidation:     "validation",
	KindCacheInvariant: "cache_invariant",
	KindClosed:         "closed",
}

// String returns the metric-friendly name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Reason tells why a transient transport error happened.
type Reason string

const (
	// ReasonConnection covers refused, reset and unreachable connections and DNS failures.
	ReasonConnection Reason = "connection"
	// ReasonTimeout is a per-attempt timeout.
	ReasonTimeout Reason = "timeout"
)

// TransientTransportError is a connection or timeout failure. It is retryable.
type TransientTransportError struct {
	Reason Reason
	Target string
	Err    error
}

func (e *TransientTransportError) Error() string {
	return fmt.Sprintf("fpp: %s error talking to %s: %v", e.Reason, e.Target, e.Err)
}

func (e *TransientTransportError) Unwrap() error { return e.Err }

// PermanentTransportError is a failure that retrying cannot fix: malformed
// response framing, protocol violations, caller cancellation or an open
// circuit breaker.
type PermanentTransportError struct {
	Target string
	Err    error
}

func (e *PermanentTransportError) Error() string {
	return fmt.Sprintf("fpp: permanent transport error talking to %s: %v", e.Target, e.Err)
}

func (e *PermanentTransportError) Unwrap() error { return e.Err }

// DecodeError means the response body does not have the expected shape.
type DecodeError struct {
	// Type is the Go type that was being decoded.
	Type string
	// Field is the offending JSON path, empty when unknown.
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("fpp: decode %s: field %q: %v", e.Type, e.Field, e.Err)
	}
	return fmt.Sprintf("fpp: decode %s: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RetryExhaustedError is returned when the retry budget ran out while the
// device kept failing transiently. Last is the final transient failure.
type RetryExhaustedError struct {
	Last     error
	Attempts int
	Elapsed  time.Duration
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("fpp: gave up after %d attempts in %s: %v", e.Attempts, e.Elapsed.Round(time.Millisecond), e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// UnsupportedFeatureError is returned before any request is sent when the
// device firmware is older than the feature requires.
type UnsupportedFeatureError struct {
	Feature  string
	Required string
	Actual   string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("fpp: %s requires FPP %s or newer, device runs %s", e.Feature, e.Required, e.Actual)
}

// CacheInvariantError signals a bug inside the response cache. It is never
// expected during normal operation.
type CacheInvariantError struct {
	Key string
	Msg string
}

func (e *CacheInvariantError) Error() string {
	return fmt.Sprintf("fpp: cache invariant violated for %s: %s", e.Key, e.Msg)
}

// APIError is a response with an HTTP status of 400 or above.
type APIError struct {
	Status  int
	Path    string
	Message string
	// RetryAfter is the delay the device asked for, zero when absent.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("fpp: API error on %s: status=%d", e.Path, e.Status)
	}
	return fmt.Sprintf("fpp: API error on %s: status=%d: %s", e.Path, e.Status, e.Message)
}

// Transient reports whether the status is worth retrying (5xx and 429).
func (e *APIError) Transient() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// ValidationError is bad caller input, detected before any request is sent.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("fpp: invalid %s: %s", e.Field, e.Msg)
}

// Classify returns the kind of err. Wrapped errors are unwrapped; a nil
// error is KindNone.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var (
		exhausted   *RetryExhaustedError
		unsupported *UnsupportedFeatureError
		validation  *ValidationError
		decode      *DecodeError
		api         *APIError
		transient   *TransientTransportError
		permanent   *PermanentTransportError
		invariant   *CacheInvariantError
	)

	switch {
	case errors.Is(err, ErrClosed):
		return KindClosed
	case errors.As(err, &exhausted):
		return KindRetryExhausted
	case errors.As(err, &unsupported):
		return KindUnsupported
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &decode):
		return KindDecode
	case errors.As(err, &api):
		return KindAPI
	case errors.As(err, &transient):
		return KindTransient
	case errors.As(err, &permanent):
		return KindPermanent
	case errors.As(err, &invariant):
		return KindCacheInvariant
	default:
		return KindUnknown
	}
}

// IsTransient reports whether err is a single failure worth retrying:
// a transient transport error or a 5xx/429 API error. An exhausted retry
// is not transient any more.
func IsTransient(err error) bool {
	var exhausted *RetryExhaustedError
	if errors.As(err, &exhausted) {
		return false
	}

	var transient *TransientTransportError
	if errors.As(err, &transient) {
		return true
	}

	var api *APIError
	if errors.As(err, &api) {
		return api.Transient()
	}

	return false
}
