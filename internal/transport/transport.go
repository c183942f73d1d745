// Package transport sends single HTTP requests to FPP devices.
//
// It never retries and never caches. Connections are pooled per target and
// shared by all sessions talking to the same device; the pool entry is torn
// down when the last session releases it. Every failure is classified as a
// transient or permanent fpperr error.
package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/lexfrei/go-fpp/fpperr"
	"github.com/lexfrei/go-fpp/internal/httpclient"
	"github.com/lexfrei/go-fpp/internal/middleware"
	"github.com/lexfrei/go-fpp/observability"
)

// maxBodySize caps response bodies. The largest FPP responses (full
// playlists with media metadata) stay far below it.
const maxBodySize = 16 << 20

// Options configure the connection of one session.
type Options struct {
	// Timeout bounds one attempt. Defaults to httpclient.DefaultTimeout.
	Timeout time.Duration
	// RequestsPerMinute limits requests per target, shared by all sessions
	// of the pool. Zero uses middleware.DefaultRequestsPerMinute, negative
	// disables the limit.
	RequestsPerMinute int
	// Breaker enables the circuit breaker.
	Breaker             bool
	BreakerFailures     uint32
	BreakerOpenTimeout  time.Duration
	UserAgent           string
	Logger              observability.Logger
	Metrics             observability.MetricsRecorder
	// RoundTripper replaces the pooled transport, for tests.
	RoundTripper http.RoundTripper
}

// Response is a raw device answer.
type Response struct {
	Status int
	Body   []byte
	Header http.Header
}

// Pool shares connections between sessions of the same target.
type Pool struct {
	mu      sync.Mutex
	entries map[string]*poolEntry
}

type poolEntry struct {
	transport *http.Transport
	limiter   *rate.Limiter
	refs      int
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{entries: make(map[string]*poolEntry)}
}

var defaultPool = NewPool()

// DefaultPool is the process-wide pool used unless a session brings its own.
func DefaultPool() *Pool { return defaultPool }

func poolKey(target Target) string {
	key := target.Key()
	if target.Insecure {
		key += "#insecure"
	}
	return key
}

// Acquire returns a connection to target, creating the pool entry on first
// use. Every Conn must be released.
func (p *Pool) Acquire(target Target, opts Options) (*Conn, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	target = target.withDefaults()

	if opts.Timeout <= 0 {
		opts.Timeout = httpclient.DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = observability.NoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NoopMetricsRecorder()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "go-fpp"
	}

	key := poolKey(target)

	p.mu.Lock()
	entry, ok := p.entries[key]
	if !ok {
		entry = &poolEntry{transport: newPooledTransport(target)}
		rpm := opts.RequestsPerMinute
		if rpm == 0 {
			rpm = middleware.DefaultRequestsPerMinute
		}
		entry.limiter = middleware.NewLimiter(rpm)
		p.entries[key] = entry
	}
	entry.refs++
	p.mu.Unlock()

	var inner http.RoundTripper = entry.transport
	if opts.RoundTripper != nil {
		inner = opts.RoundTripper
	}

	chain := []httpclient.Middleware{
		middleware.RequestID(),
		middleware.Observability(opts.Logger, opts.Metrics),
		middleware.Headers(map[string]string{
			"Accept":     "application/json, text/plain, */*",
			"User-Agent": opts.UserAgent,
		}),
		middleware.BasicAuth(target.Username, target.Password),
		middleware.RateLimit(middleware.RateLimitConfig{
			Limiter: entry.limiter,
			Logger:  opts.Logger,
			Metrics: opts.Metrics,
		}),
	}
	if opts.Breaker {
		chain = append(chain, middleware.CircuitBreaker(middleware.BreakerConfig{
			Name:                target.Key(),
			ConsecutiveFailures: opts.BreakerFailures,
			OpenTimeout:         opts.BreakerOpenTimeout,
			Logger:              opts.Logger,
		}))
	}

	client := httpclient.New(
		httpclient.WithTimeout(opts.Timeout),
		httpclient.WithTransport(inner),
		httpclient.WithMiddleware(chain...),
	)

	return &Conn{
		pool:    p,
		key:     key,
		target:  target,
		client:  client,
		timeout: opts.Timeout,
	}, nil
}

func newPooledTransport(target Target) *http.Transport {
	var opts []httpclient.Option
	if target.Insecure {
		opts = append(opts, httpclient.WithTLSConfig(httpclient.InsecureSkipVerify()))
	}

	//nolint:forcetypeassert // httpclient.New always installs *http.Transport without WithTransport
	return httpclient.New(opts...).HTTPClient().Transport.(*http.Transport)
}

func (p *Pool) release(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[key]
	if !ok {
		return
	}

	entry.refs--
	if entry.refs > 0 {
		return
	}

	entry.transport.CloseIdleConnections()
	delete(p.entries, key)
}

// Refs returns the number of live connections to target.
func (p *Pool) Refs(target Target) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.entries[poolKey(target.withDefaults())]; ok {
		return entry.refs
	}
	return 0
}

// Conn is one session's handle into the pool.
type Conn struct {
	pool     *Pool
	key      string
	target   Target
	client   *httpclient.Client
	timeout  time.Duration
	released atomic.Bool
}

// Target returns the device this connection talks to.
func (c *Conn) Target() Target { return c.target }

// Timeout returns the bound of a single Send.
func (c *Conn) Timeout() time.Duration { return c.timeout }

// Release returns the connection to the pool. It is idempotent.
func (c *Conn) Release() {
	if c.released.CompareAndSwap(false, true) {
		c.client.CloseIdleConnections()
		c.pool.release(c.key)
	}
}

// Send performs exactly one request. A body, when present, is sent as JSON.
// The response body is always drained and closed.
func (c *Conn) Send(ctx context.Context, method, path string, body []byte) (*Response, error) {
	if c.released.Load() {
		return nil, fpperr.ErrClosed
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, c.target.BaseURL()+path, reader)
	if err != nil {
		return nil, &fpperr.PermanentTransportError{Target: c.target.Key(), Err: errors.Wrap(err, "failed to build request")}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classify(ctx, c.target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		// The device answered; a truncated body is not worth another request.
		return nil, &fpperr.PermanentTransportError{Target: c.target.Key(), Err: errors.Wrap(err, "failed to read response body")}
	}
	if len(data) > maxBodySize {
		return nil, &fpperr.PermanentTransportError{Target: c.target.Key(), Err: errors.Newf("response body exceeds %d bytes", maxBodySize)}
	}

	return &Response{Status: resp.StatusCode, Body: data, Header: resp.Header}, nil
}
