package fpp

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/lexfrei/go-fpp/fpperr"
	"github.com/lexfrei/go-fpp/internal/cache"
	"github.com/lexfrei/go-fpp/internal/httpclient"
	"github.com/lexfrei/go-fpp/internal/retry"
	"github.com/lexfrei/go-fpp/internal/transport"
	"github.com/lexfrei/go-fpp/internal/version"
	"github.com/lexfrei/go-fpp/observability"
)

// Target is the address and credentials of one FPP device.
type Target = transport.Target

// ParseTarget accepts "host", "host:port" or a full http(s) URL.
func ParseTarget(raw string) (Target, error) {
	return transport.ParseTarget(raw)
}

// Cache namespaces. A write invalidates every namespace it may affect.
const (
	NamespaceStatus   = "status"
	NamespaceSystem   = "system"
	NamespacePlaylist = "playlist"
	NamespaceSequence = "sequence"
	NamespaceSchedule = "schedule"
	NamespaceSettings = "settings"
)

const (
	// DefaultTimeout bounds a single request attempt.
	DefaultTimeout = httpclient.DefaultTimeout
	// DefaultCacheCapacity is the number of cached responses kept per client.
	DefaultCacheCapacity = cache.DefaultCapacity

	tracerName = "github.com/lexfrei/go-fpp"
)

// CacheTTLs sets how long responses of each namespace stay fresh. A zero
// TTL disables caching for that namespace.
type CacheTTLs struct {
	Status   time.Duration
	System   time.Duration
	Playlist time.Duration
	Sequence time.Duration
	Schedule time.Duration
	Settings time.Duration
}

// DefaultCacheTTLs returns the TTLs used when ClientConfig.CacheTTLs is nil.
func DefaultCacheTTLs() CacheTTLs {
	return CacheTTLs{
		Status:   2 * time.Second,
		System:   5 * time.Minute,
		Playlist: 30 * time.Second,
		Sequence: 30 * time.Second,
		Schedule: 30 * time.Second,
		Settings: 60 * time.Second,
	}
}

func (t CacheTTLs) byNamespace() map[string]time.Duration {
	return map[string]time.Duration{
		NamespaceStatus:   t.Status,
		NamespaceSystem:   t.System,
		NamespacePlaylist: t.Playlist,
		NamespaceSequence: t.Sequence,
		NamespaceSchedule: t.Schedule,
		NamespaceSettings: t.Settings,
	}
}

// ClientConfig holds configuration for the FPP client.
type ClientConfig struct {
	// Target is the device to talk to. Host is used when Target.Host is empty.
	Target Target
	// Host is a shortcut accepting anything ParseTarget does.
	Host string

	// Timeout bounds a single attempt (defaults to 8s).
	Timeout time.Duration

	// MaxAttempts caps attempts per operation (defaults to 3).
	MaxAttempts int
	// BaseDelay is the backoff ceiling of the first retry (defaults to 100ms).
	BaseDelay time.Duration
	// MaxDelay caps one backoff delay (defaults to 2s).
	MaxDelay time.Duration
	// MaxElapsed bounds an operation including all retries (defaults to 20s).
	MaxElapsed time.Duration
	// RetryNonIdempotent allows retrying writes that are not idempotent,
	// such as RunCommand.
	RetryNonIdempotent bool

	// CacheCapacity bounds the response cache (defaults to 256).
	CacheCapacity int
	// CacheTTLs overrides DefaultCacheTTLs.
	CacheTTLs *CacheTTLs

	// RequestsPerMinute limits requests per device (defaults to 600,
	// negative disables).
	RequestsPerMinute int
	// CircuitBreaker fails fast after repeated failures of the device.
	CircuitBreaker bool

	// Logger for structured logging (optional, defaults to no-op).
	Logger observability.Logger
	// Metrics for recording metrics (optional, defaults to no-op).
	Metrics observability.MetricsRecorder
	// TracerProvider for spans (optional, defaults to the global provider).
	TracerProvider trace.TracerProvider

	// Pool shares connections between clients (defaults to the process-wide pool).
	Pool *transport.Pool
	// HTTPTransport replaces the network transport, mostly for tests.
	HTTPTransport http.RoundTripper
	// Clock replaces time.Now for cache expiry.
	Clock func() time.Time
}

// Client is a session with one FPP device. It is safe for concurrent use.
type Client struct {
	target  Target
	conn    *transport.Conn
	cache   *cache.Cache[[]byte]
	gate    *version.Gate
	flight  singleflight.Group
	policy  retry.Policy
	ttls    map[string]time.Duration
	retryNI bool

	logger  observability.Logger
	metrics observability.MetricsRecorder
	tracer  trace.Tracer

	closed atomic.Bool
}

// New creates a client for host with default settings.
//
// Example:
//
//	client, err := fpp.New("fpp.local")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
func New(host string) (*Client, error) {
	return NewWithConfig(&ClientConfig{Host: host})
}

// NewWithConfig creates a client with custom configuration.
func NewWithConfig(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, &fpperr.ValidationError{Field: "config", Msg: "is required"}
	}

	target := cfg.Target
	if target.Host == "" {
		parsed, err := transport.ParseTarget(cfg.Host)
		if err != nil {
			return nil, err
		}
		target = parsed
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.NoopLogger()
	}
	logger = logger.With(observability.Field{Key: "target", Value: target.Key()})

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NoopMetricsRecorder()
	}

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	ttls := DefaultCacheTTLs()
	if cfg.CacheTTLs != nil {
		ttls = *cfg.CacheTTLs
	}

	var cacheOpts []cache.Option
	if cfg.Clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(cfg.Clock))
	}
	responses, err := cache.New[[]byte](cfg.CacheCapacity, cacheOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create response cache")
	}

	pool := cfg.Pool
	if pool == nil {
		pool = transport.DefaultPool()
	}

	conn, err := pool.Acquire(target, transport.Options{
		Timeout:           cfg.Timeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Breaker:           cfg.CircuitBreaker,
		Logger:            logger,
		Metrics:           metrics,
		RoundTripper:      cfg.HTTPTransport,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		target: conn.Target(),
		conn:   conn,
		cache:  responses,
		gate:   version.NewGate(logger),
		policy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			MaxElapsed:  cfg.MaxElapsed,
			BaseDelay:   cfg.BaseDelay,
			MaxDelay:    cfg.MaxDelay,
		},
		ttls:    ttls.byNamespace(),
		retryNI: cfg.RetryNonIdempotent,
		logger:  logger,
		metrics: metrics,
		tracer:  tp.Tracer(tracerName),
	}, nil
}

// Target returns the device this client talks to.
func (c *Client) Target() Target { return c.target }

// Close releases the connection and drops cached responses. It is
// idempotent; operations after Close fail with fpperr.ErrClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.conn.Release()
	c.cache.Purge()
	return nil
}

// WithClient opens a client, runs fn and closes the client whatever fn
// returns.
func WithClient(ctx context.Context, cfg *ClientConfig, fn func(context.Context, *Client) error) error {
	client, err := NewWithConfig(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	return fn(ctx, client)
}

// InvalidateCache drops cached responses of the given namespaces, or of
// all namespaces when none are given.
func (c *Client) InvalidateCache(namespaces ...string) {
	if len(namespaces) == 0 {
		c.cache.Purge()
		return
	}
	c.invalidate(namespaces)
}

func (c *Client) invalidate(namespaces []string) {
	if len(namespaces) == 0 {
		return
	}
	removed := c.cache.Invalidate(namespaces...)
	for _, ns := range namespaces {
		c.metrics.RecordCacheInvalidation(ns, removed)
	}
	c.logger.Debug("cache invalidated",
		observability.Field{Key: "namespaces", Value: namespaces},
		observability.Field{Key: "entries", Value: removed},
	)
}
