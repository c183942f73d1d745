package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the per-attempt request ID.
const RequestIDHeader = "X-Request-ID"

// RequestID returns a middleware that tags every request with a fresh UUID
// unless the caller set one. FPP ignores the header, but it shows up in
// reverse proxy logs in front of the device and in our own debug logs.
func RequestID() func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(RequestIDHeader) == "" {
				req = cloneRequest(req)
				req.Header.Set(RequestIDHeader, uuid.NewString())
			}
			//nolint:wrapcheck // Middleware passes through errors from next handler in chain
			return next.RoundTrip(req)
		})
	}
}
