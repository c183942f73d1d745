package retry

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Ceiling returns the un-jittered delay before retry n (0-based):
// base * 2^n, capped at maxDelay.
func Ceiling(base, maxDelay time.Duration, n int) time.Duration {
	if base <= 0 {
		return 0
	}

	delay := base
	for range n {
		if delay >= maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}

	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// fullJitter is a backoff.BackOff that draws each delay uniformly from
// [0, Ceiling(n)]. A hint (e.g. Retry-After) raises the floor of the next
// delay, still capped at maxDelay.
type fullJitter struct {
	mu       sync.Mutex
	base     time.Duration
	maxDelay time.Duration
	attempt  int
	floor    time.Duration
	rnd      func(n int64) int64
}

var _ backoff.BackOff = (*fullJitter)(nil)

func newFullJitter(base, maxDelay time.Duration) *fullJitter {
	return &fullJitter{
		base:     base,
		maxDelay: maxDelay,
		rnd:      rand.Int64N,
	}
}

// NextBackOff implements backoff.BackOff.
func (b *fullJitter) NextBackOff() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	ceiling := Ceiling(b.base, b.maxDelay, b.attempt)
	b.attempt++

	var delay time.Duration
	if ceiling > 0 {
		delay = time.Duration(b.rnd(int64(ceiling) + 1))
	}

	if b.floor > delay {
		delay = min(b.floor, b.maxDelay)
	}
	b.floor = 0

	return delay
}

// Reset implements backoff.BackOff.
func (b *fullJitter) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempt = 0
	b.floor = 0
}

func (b *fullJitter) hint(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.floor = d
}
