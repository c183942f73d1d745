package version

import (
	"context"
	"sync"

	"github.com/lexfrei/go-fpp/fpperr"
	"github.com/lexfrei/go-fpp/observability"
)

// FetchFunc retrieves the raw firmware version string from the device.
type FetchFunc func(ctx context.Context) (string, error)

// Gate lazily learns the device version once per session and checks
// feature requirements against it.
//
// Concurrent callers share a single fetch. A failed fetch is not
// remembered; the next caller tries again. A version string that cannot be
// parsed is remembered as Minimum.
type Gate struct {
	// sem serializes fetches while letting waiters honor their context.
	sem chan struct{}

	mu      sync.Mutex
	loaded  bool
	version Version
	raw     string

	logger observability.Logger
}

// NewGate creates an empty gate.
func NewGate(logger observability.Logger) *Gate {
	if logger == nil {
		logger = observability.NoopLogger()
	}
	return &Gate{
		sem:    make(chan struct{}, 1),
		logger: logger,
	}
}

// Version returns the known version, if loaded.
func (g *Gate) Version() (Version, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.version, g.loaded
}

// Raw returns the version string the device reported.
func (g *Gate) Raw() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.raw
}

// EnsureLoaded returns the device version, calling fetch at most once at a
// time until a fetch succeeds.
func (g *Gate) EnsureLoaded(ctx context.Context, fetch FetchFunc) (Version, error) {
	if v, ok := g.Version(); ok {
		return v, nil
	}

	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return Version{}, &fpperr.PermanentTransportError{Err: ctx.Err()}
	}
	defer func() { <-g.sem }()

	// Another caller may have finished while we waited.
	if v, ok := g.Version(); ok {
		return v, nil
	}

	raw, err := fetch(ctx)
	if err != nil {
		return Version{}, err
	}

	v, err := Parse(raw)
	if err != nil {
		g.logger.Warn("unparsable device version, assuming minimal feature set",
			observability.Field{Key: "version", Value: raw},
			observability.Err(err),
		)
		v = Minimum
	} else {
		g.logger.Debug("device version loaded",
			observability.Field{Key: "version", Value: v.String()},
		)
	}

	g.mu.Lock()
	g.version = v
	g.raw = raw
	g.loaded = true
	g.mu.Unlock()

	return v, nil
}

// Check loads the version if needed and returns an
// *fpperr.UnsupportedFeatureError when the device is too old for feature.
func (g *Gate) Check(ctx context.Context, feature Feature, fetch FetchFunc) error {
	v, err := g.EnsureLoaded(ctx, fetch)
	if err != nil {
		return err
	}

	if Supports(v, feature) {
		return nil
	}

	required := "unknown"
	if r, ok := Requirement(feature); ok {
		required = r.String()
	}

	return &fpperr.UnsupportedFeatureError{
		Feature:  string(feature),
		Required: required,
		Actual:   v.String(),
	}
}

// Supports reports whether the loaded version offers feature.
func (g *Gate) Supports(ctx context.Context, feature Feature, fetch FetchFunc) (bool, error) {
	v, err := g.EnsureLoaded(ctx, fetch)
	if err != nil {
		return false, err
	}
	return Supports(v, feature), nil
}

// Reset forgets the loaded version, e.g. after a firmware upgrade.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loaded = false
	g.version = Version{}
	g.raw = ""
}
