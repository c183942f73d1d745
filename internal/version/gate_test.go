package version_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfrei/go-fpp/fpperr"
	"github.com/lexfrei/go-fpp/internal/version"
)

func fixed(raw string, calls *atomic.Int32) version.FetchFunc {
	return func(context.Context) (string, error) {
		calls.Add(1)
		return raw, nil
	}
}

func TestGateFetchesOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	gate := version.NewGate(nil)
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "5.2.1", nil
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := gate.EnsureLoaded(context.Background(), fetch)
			assert.NoError(t, err)
			assert.Equal(t, version.MustParse("5.2.1"), v)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "5.2.1", gate.Raw())
}

func TestGateFailedFetchIsNotRemembered(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	gate := version.NewGate(nil)
	unreachable := &fpperr.RetryExhaustedError{Last: errors.New("refused"), Attempts: 3}

	_, err := gate.EnsureLoaded(context.Background(), func(context.Context) (string, error) {
		calls.Add(1)
		return "", unreachable
	})
	assert.Same(t, unreachable, err)

	_, loaded := gate.Version()
	assert.False(t, loaded)

	v, err := gate.EnsureLoaded(context.Background(), fixed("6.1", &calls))
	require.NoError(t, err)
	assert.Equal(t, version.Version{Major: 6, Minor: 1}, v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGateUnparsableVersionDegrades(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	gate := version.NewGate(nil)

	v, err := gate.EnsureLoaded(context.Background(), fixed("master", &calls))
	require.NoError(t, err)
	assert.Equal(t, version.Minimum, v)

	// Remembered: no second fetch.
	_, err = gate.EnsureLoaded(context.Background(), fixed("master", &calls))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGateCheck(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	gate := version.NewGate(nil)
	fetch := fixed("5.2.1", &calls)

	require.NoError(t, gate.Check(context.Background(), version.FeatureScheduleAPI, fetch))

	err := gate.Check(context.Background(), version.FeatureMultiSyncSystems, fetch)
	var unsupported *fpperr.UnsupportedFeatureError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "multisync_systems", unsupported.Feature)
	assert.Equal(t, "6.0.0", unsupported.Required)
	assert.Equal(t, "5.2.1", unsupported.Actual)

	ok, err := gate.Supports(context.Background(), version.FeaturePlaylistPause, fetch)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, int32(1), calls.Load())
}

func TestGateCanceledWhileWaiting(t *testing.T) {
	t.Parallel()

	gate := version.NewGate(nil)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = gate.EnsureLoaded(context.Background(), func(context.Context) (string, error) {
			close(started)
			<-release
			return "5.0", nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gate.EnsureLoaded(ctx, func(context.Context) (string, error) {
		t.Error("second fetch must not run")
		return "", nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, fpperr.KindPermanent, fpperr.Classify(err))

	close(release)
}

func TestGateReset(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	gate := version.NewGate(nil)

	_, err := gate.EnsureLoaded(context.Background(), fixed("5.0", &calls))
	require.NoError(t, err)

	gate.Reset()
	_, loaded := gate.Version()
	assert.False(t, loaded)

	v, err := gate.EnsureLoaded(context.Background(), fixed("6.0", &calls))
	require.NoError(t, err)
	assert.Equal(t, 6, v.Major)
	assert.Equal(t, int32(2), calls.Load())
}
