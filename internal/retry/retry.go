// Package retry wraps single request attempts with bounded, jittered
// exponential backoff.
package retry

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ShouldRetry returns true if the HTTP status code indicates a retryable error.
// Retryable errors include:
//   - 429 (Too Many Requests) - the device or a proxy is shedding load
//   - 5xx (Server Errors) - fppd restarting or busy
func ShouldRetry(statusCode int) bool {
	return statusCode >= http.StatusInternalServerError || statusCode == http.StatusTooManyRequests
}

// ParseRetryAfter parses the Retry-After HTTP header and returns the duration to wait.
// The Retry-After header can contain either:
//   - Number of seconds (e.g., "120")
//   - HTTP-date (e.g., "Wed, 21 Oct 2015 07:28:00 GMT"), relative to now
//
// Returns 0 if the header is empty, cannot be parsed or lies in the past.
func ParseRetryAfter(retryAfterHeader string) time.Duration {
	return parseRetryAfter(retryAfterHeader, time.Now())
}

func parseRetryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}

	seconds, err := strconv.Atoi(header)
	if err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	when, err := http.ParseTime(header)
	if err != nil {
		return 0
	}

	if wait := when.Sub(now); wait > 0 {
		return wait
	}

	return 0
}
