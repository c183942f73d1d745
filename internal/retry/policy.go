package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cockroachdb/errors"

	"github.com/lexfrei/go-fpp/fpperr"
)

const (
	// DefaultMaxAttempts matches the three tries the device's reference client makes.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the ceiling of the first backoff delay.
	DefaultBaseDelay = 100 * time.Millisecond
	// DefaultMaxDelay caps a single backoff delay.
	DefaultMaxDelay = 2 * time.Second
	// DefaultMaxElapsed bounds the whole retried operation.
	DefaultMaxElapsed = 20 * time.Second
)

// Class is the retry classification of a failed attempt.
type Class int

const (
	// Permanent failures are returned immediately.
	Permanent Class = iota
	// Transient failures are retried while the budget allows.
	Transient
)

// Classifier decides whether a failed attempt may be retried.
type Classifier func(error) Class

// ClassifyError is the default Classifier: transient transport errors and
// 5xx/429 API errors are retried, everything else is permanent.
func ClassifyError(err error) Class {
	var apiErr *fpperr.APIError
	if errors.As(err, &apiErr) {
		if ShouldRetry(apiErr.Status) {
			return Transient
		}
		return Permanent
	}

	if fpperr.IsTransient(err) {
		return Transient
	}
	return Permanent
}

// Policy is a retry budget. Retrying stops at MaxAttempts attempts or when
// the next wait would cross MaxElapsed, whichever comes first.
type Policy struct {
	MaxAttempts int
	MaxElapsed  time.Duration
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Hint optionally returns a minimum delay requested by the failure
	// itself, such as a Retry-After header.
	Hint func(error) time.Duration

	// OnRetry is called before each wait with the number of the attempt
	// that just failed.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy returns the default retry budget.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		MaxElapsed:  DefaultMaxElapsed,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// normalized fills zero fields with defaults.
func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.MaxElapsed <= 0 {
		p.MaxElapsed = DefaultMaxElapsed
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Execute runs attempt until it succeeds, fails permanently or the policy
// budget is spent.
//
// Permanent failures are returned unchanged after a single attempt. When the
// budget runs out the last transient failure is returned inside an
// *fpperr.RetryExhaustedError. If ctx is canceled or its deadline passes
// while waiting, the result is an *fpperr.PermanentTransportError wrapping
// the context error.
func Execute[T any](ctx context.Context, policy Policy, attempt func(context.Context) (T, error), classify Classifier) (T, error) {
	policy = policy.normalized()
	if classify == nil {
		classify = ClassifyError
	}

	jitter := newFullJitter(policy.BaseDelay, policy.MaxDelay)

	var (
		attempts  int
		lastErr   error
		permanent bool
	)

	start := time.Now()

	operation := func() (T, error) {
		attempts++

		value, err := attempt(ctx)
		if err == nil {
			return value, nil
		}

		lastErr = err
		if classify(err) != Transient {
			permanent = true
			return value, backoff.Permanent(err)
		}

		if policy.Hint != nil {
			if floor := policy.Hint(err); floor > 0 {
				jitter.hint(floor)
			}
		}

		return value, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(jitter),
		backoff.WithMaxTries(uint(policy.MaxAttempts)), //nolint:gosec // normalized to a positive value
		backoff.WithMaxElapsedTime(policy.MaxElapsed),
	}
	if policy.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			policy.OnRetry(attempts, err, wait)
		}))
	}

	value, err := backoff.Retry(ctx, operation, opts...)
	if err == nil {
		return value, nil
	}

	if permanent {
		return value, lastErr
	}

	if ctxErr := ctx.Err(); ctxErr != nil && (lastErr == nil || errors.Is(err, ctxErr)) {
		if lastErr != nil {
			ctxErr = errors.WithSecondaryError(ctxErr, lastErr)
		}
		return value, &fpperr.PermanentTransportError{Err: ctxErr}
	}

	return value, &fpperr.RetryExhaustedError{
		Last:     lastErr,
		Attempts: attempts,
		Elapsed:  time.Since(start),
	}
}
