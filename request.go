package fpp

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lexfrei/go-fpp/fpperr"
	"github.com/lexfrei/go-fpp/internal/cache"
	"github.com/lexfrei/go-fpp/internal/codec"
	"github.com/lexfrei/go-fpp/internal/retry"
	"github.com/lexfrei/go-fpp/internal/version"
	"github.com/lexfrei/go-fpp/observability"
)

// maxErrorMessage bounds the device text copied into an APIError.
const maxErrorMessage = 256

// request describes one facade operation.
type request struct {
	op     string
	method string
	path   string

	// payload is encoded as JSON; raw is sent as is and wins when set.
	payload any
	raw     []byte

	feature version.Feature

	// namespace makes a GET cacheable; params distinguish entries inside it.
	namespace string
	params    map[string]any

	invalidates []string
	idempotent  bool
}

func (r request) read() bool {
	return r.method == http.MethodGet && len(r.invalidates) == 0
}

// execute runs the operation pipeline: gate, encode, cache lookup, retried
// transport call, decode, then cache populate or invalidation.
func execute[T any](ctx context.Context, c *Client, req request, decode func([]byte) (T, error)) (result T, err error) {
	if c.closed.Load() {
		return result, fpperr.ErrClosed
	}

	ctx, span := c.tracer.Start(ctx, "fpp."+req.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.method),
			attribute.String("url.path", req.path),
			attribute.String("server.address", c.target.Key()),
		),
	)
	defer func() {
		if err != nil {
			kind := fpperr.Classify(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, kind.String())
			c.metrics.RecordError(req.op, kind.String())
		}
		span.End()
	}()

	if req.feature != "" {
		err = c.gate.Check(ctx, req.feature, c.fetchVersion)
		if err != nil {
			return result, err
		}
	}

	body := req.raw
	if body == nil && req.payload != nil {
		body, err = codec.Encode(req.payload)
		if err != nil {
			return result, err
		}
	}

	var data []byte

	switch {
	case req.read() && c.ttl(req.namespace) > 0:
		data, err = c.cachedRead(ctx, span, req, func(b []byte) error {
			_, decodeErr := decode(b)
			return decodeErr
		})
	case req.read():
		data, err = c.roundTrip(ctx, req, body)
	default:
		data, err = c.roundTrip(ctx, req, body)
		// The device may have applied a write even when the answer got lost.
		c.invalidate(req.invalidates)
	}
	if err != nil {
		return result, err
	}

	return decode(data)
}

func (c *Client) ttl(namespace string) time.Duration {
	if namespace == "" {
		return 0
	}
	return c.ttls[namespace]
}

// cachedRead serves req from the cache or coalesces concurrent misses of the
// same key into one device call. Only bodies that pass validate are stored.
func (c *Client) cachedRead(ctx context.Context, span trace.Span, req request, validate func([]byte) error) ([]byte, error) {
	key := cache.Key{
		Namespace: req.namespace,
		Endpoint:  req.path,
		Params:    codec.CanonicalKey(req.params),
	}

	if data, ok := c.cache.Get(key); ok {
		c.metrics.RecordCacheHit(req.namespace)
		span.SetAttributes(attribute.Bool("fpp.cache_hit", true))
		return data, nil
	}
	c.metrics.RecordCacheMiss(req.namespace)
	span.SetAttributes(attribute.Bool("fpp.cache_hit", false))

	// A write that lands while a call is in flight bumps the generation, so
	// later readers start a fresh call instead of joining the stale one.
	generation := c.cache.Generation(req.namespace)
	flightKey := key.String() + "#" + strconv.FormatUint(generation, 10)

	ch := c.flight.DoChan(flightKey, func() (any, error) {
		// The call is shared: one waiter giving up must not fail the others.
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.flightBudget())
		defer cancel()

		data, err := c.roundTrip(flightCtx, req, nil)
		if err != nil {
			return nil, err
		}
		if err := validate(data); err != nil {
			return nil, err
		}

		stored, err := c.cache.Put(key, data, c.ttl(req.namespace), generation)
		if err != nil {
			return nil, err
		}
		if !stored {
			c.logger.Debug("response not cached, namespace changed during the call",
				observability.Field{Key: "key", Value: key.String()},
			)
		}

		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, contextError(ctx, c.target.Key())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		data, _ := res.Val.([]byte)
		return data, nil
	}
}

// flightBudget bounds a shared call: the retry budget plus the one attempt
// that may still be running when it runs out.
func (c *Client) flightBudget() time.Duration {
	budget := c.policy.MaxElapsed
	if budget <= 0 {
		budget = retry.DefaultMaxElapsed
	}
	return budget + c.conn.Timeout()
}

// roundTrip sends req through the retry policy. Statuses of 400 and above
// become *fpperr.APIError.
func (c *Client) roundTrip(ctx context.Context, req request, body []byte) ([]byte, error) {
	policy := c.policy
	single := !req.idempotent && !c.retryNI
	if single {
		policy.MaxAttempts = 1
	}
	policy.Hint = retryAfterHint
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		c.logger.Warn("retrying request",
			observability.Field{Key: "operation", Value: req.op},
			observability.Field{Key: "attempt", Value: attempt},
			observability.Field{Key: "wait", Value: wait.String()},
			observability.Err(err),
		)
		c.metrics.RecordRetry(attempt, req.op)
	}

	data, err := retry.Execute(ctx, policy, func(ctx context.Context) ([]byte, error) {
		resp, err := c.conn.Send(ctx, req.method, req.path, body)
		if err != nil {
			return nil, err
		}
		if resp.Status >= http.StatusBadRequest {
			return nil, &fpperr.APIError{
				Status:     resp.Status,
				Path:       req.path,
				Message:    errorMessage(resp.Body),
				RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
			}
		}
		return resp.Body, nil
	}, nil)

	// Nothing was retried, so there is no budget to report as exhausted.
	var exhausted *fpperr.RetryExhaustedError
	if single && errors.As(err, &exhausted) && exhausted.Last != nil {
		return nil, exhausted.Last
	}

	return data, err
}

func retryAfterHint(err error) time.Duration {
	var apiErr *fpperr.APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// errorMessage extracts a human readable message from an error body, which
// FPP sends either as JSON or as plain text.
func errorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"message", "Message", "error", "status"} {
			if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.Str != "" {
				return v.Str
			}
		}
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorMessage {
		msg = msg[:maxErrorMessage]
	}
	return msg
}

// contextError reports a caller that stopped waiting. Cancellation and an
// expired deadline are both the caller's decision and never retried.
func contextError(ctx context.Context, target string) error {
	return &fpperr.PermanentTransportError{Target: target, Err: ctx.Err()}
}

// fetchVersion feeds the version gate. SystemInfo is not gated itself.
func (c *Client) fetchVersion(ctx context.Context) (string, error) {
	info, err := c.SystemInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.VersionString(), nil
}

func decodeInto[T any](data []byte) (T, error) {
	return codec.Decode[T](data)
}

// decodeResult accepts the loose answers FPP gives to writes: JSON, plain
// text or nothing at all.
func decodeResult(data []byte) (Result, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return Result{}, nil
	}
	if !gjson.Valid(trimmed) || !strings.HasPrefix(trimmed, "{") {
		return Result{Message: strings.Trim(trimmed, `"`)}, nil
	}
	return codec.Decode[Result]([]byte(trimmed))
}
