package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"syscall"

	"github.com/cockroachdb/errors"

	"github.com/lexfrei/go-fpp/fpperr"
	"github.com/lexfrei/go-fpp/internal/middleware"
)

// classify maps a failed round trip to a transient or permanent error.
// parent is the caller's context: when it is done, the failure is the
// caller's decision and never retried.
func classify(parent context.Context, target Target, err error) error {
	key := target.Key()

	if parentErr := parent.Err(); parentErr != nil {
		return &fpperr.PermanentTransportError{Target: key, Err: errors.WithSecondaryError(parentErr, err)}
	}

	if errors.Is(err, middleware.ErrCircuitOpen) {
		return &fpperr.PermanentTransportError{Target: key, Err: err}
	}

	if isTLSError(err) {
		return &fpperr.PermanentTransportError{Target: key, Err: err}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &fpperr.TransientTransportError{Reason: fpperr.ReasonTimeout, Target: key, Err: err}
	}

	if isConnectionError(err) {
		return &fpperr.TransientTransportError{Reason: fpperr.ReasonConnection, Target: key, Err: err}
	}

	return &fpperr.PermanentTransportError{Target: key, Err: err}
}

func isTLSError(err error) bool {
	var (
		verifyErr   *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr)
}

func isConnectionError(err error) bool {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EPIPE),
		// The device closed an idle keep-alive connection or restarted
		// mid-response.
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	return false
}
