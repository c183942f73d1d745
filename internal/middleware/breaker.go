package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sony/gobreaker"

	"github.com/lexfrei/go-fpp/observability"
)

// ErrCircuitOpen is returned without contacting the device while the
// breaker is open or probing.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// errServerStatus marks 5xx responses as failures inside the breaker. It
// never leaves this file.
var errServerStatus = errors.New("server error status")

// BreakerConfig configures the circuit breaker middleware.
type BreakerConfig struct {
	// Name identifies the breaker in logs, usually the target key.
	Name string
	// ConsecutiveFailures trips the breaker. Defaults to 5.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing. Defaults to 30s.
	OpenTimeout time.Duration
	Logger      observability.Logger
}

// CircuitBreaker returns a middleware that stops sending requests to a
// device after repeated connection failures or 5xx answers, and lets a
// single probe through once OpenTimeout has passed.
func CircuitBreaker(cfg BreakerConfig) func(http.RoundTripper) http.RoundTripper {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NoopLogger()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: 1,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				cfg.Logger.Warn("circuit breaker state changed",
					observability.Field{Key: "breaker", Value: name},
					observability.Field{Key: "from", Value: from.String()},
					observability.Field{Key: "to", Value: to.String()},
				)
			},
		})

		return &breakerTransport{next: next, cb: cb}
	}
}

type breakerTransport struct {
	next http.RoundTripper
	cb   *gobreaker.CircuitBreaker
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	result, err := t.cb.Execute(func() (any, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, errors.WithSecondaryError(req.Context().Err(), err)
			}
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Wrapf(ErrCircuitOpen, "%s", t.cb.Name())
	}

	resp, _ := result.(*http.Response)
	if errors.Is(err, errServerStatus) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// BreakerState exposes the state of a breaker middleware for tests and
// diagnostics. It returns "" for other round trippers.
func BreakerState(rt http.RoundTripper) string {
	if bt, ok := rt.(*breakerTransport); ok {
		return bt.cb.State().String()
	}
	return ""
}
