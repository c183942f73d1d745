package fpp_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfrei/go-fpp"
	"github.com/lexfrei/go-fpp/fpperr"
	"github.com/lexfrei/go-fpp/internal/codec"
	"github.com/lexfrei/go-fpp/internal/testutil"
)

const (
	pathInfo   = "/api/system/info"
	pathStatus = "/api/system/status"
)

func TestSystemStatus(t *testing.T) {
	t.Parallel()

	dev := testutil.NewDevice(t)
	dev.Handle(http.MethodGet, pathStatus, testutil.Fixture(t, "system_status.json"))

	status, err := newClient(t, dev).SystemStatus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "playing", status.StatusName)
	assert.Equal(t, "player", status.ModeName)
	assert.Equal(t, 70, status.Volume.Int())
	assert.Equal(t, 3, status.CurrentPlaylist.Count.Int(), "numeric strings decode")
	assert.Equal(t, "Christmas", status.CurrentPlaylist.Playlist)
	assert.Equal(t, 141, status.SecondsRemaining.Int())
	require.NotNil(t, status.Scheduler)
	assert.Equal(t, "playing", status.Scheduler.Status)
}

func TestSystemInfo(t *testing.T) {
	t.Parallel()

	dev := testutil.NewDevice(t)
	dev.Handle(http.MethodGet, pathInfo, testutil.Fixture(t, "system_info.json"))

	info, err := newClient(t, dev).SystemInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "fpp-garage", info.HostName)
	assert.Equal(t, "5.2.1", info.VersionString())
	assert.Equal(t, []string{"192.168.1.50"}, info.IPs)
	assert.InDelta(t, 12.5, info.Utilization.CPU, 0.001)
}

func TestVersionGate(t *testing.T) {
	t.Parallel()

	t.Run("5.2.1 supports >=5 and rejects >=6", func(t *testing.T) {
		t.Parallel()

		dev := testutil.NewDevice(t)
		dev.Handle(http.MethodGet, pathInfo, testutil.Fixture(t, "system_info.json"))
		dev.Handle(http.MethodGet, "/api/schedule", testutil.Fixture(t, "schedule.json"))

		client := newClient(t, dev)
		ctx := context.Background()

		v, err := client.Version(ctx)
		require.NoError(t, err)
		assert.Equal(t, fpp.FirmwareVersion{Major: 5, Minor: 2, Patch: 1}, v)

		schedule, err := client.Schedule(ctx)
		require.NoError(t, err)
		require.Len(t, schedule, 1)
		assert.Equal(t, "Christmas", schedule[0].Playlist)

		_, err = client.MultiSyncSystems(ctx)

		var unsupported *fpperr.UnsupportedFeatureError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, string(fpp.FeatureMultiSyncSystems), unsupported.Feature)
		assert.Equal(t, "6.0.0", unsupported.Required)
		assert.Equal(t, "5.2.1", unsupported.Actual)

		ok, err := client.Supports(ctx, fpp.FeatureSettingsAPI)
		require.NoError(t, err)
		assert.True(t, ok)

		assert.Equal(t, 1, dev.Calls(http.MethodGet, pathInfo), "version is fetched once per session")
	})

	t.Run("old firmware fails fast without a request", func(t *testing.T) {
		t.Parallel()

		dev := testutil.NewDevice(t)
		dev.Handle(http.MethodGet, pathInfo, testutil.Fixture(t, "system_info_v4.json"))

		client := newClient(t, dev)
		ctx := context.Background()

		_, err := client.Schedule(ctx)
		assert.Equal(t, fpperr.KindUnsupported, fpperr.Classify(err))

		_, err = client.SetSetting(ctx, "ShowName", "x")
		assert.Equal(t, fpperr.KindUnsupported, fpperr.Classify(err))

		_, err = client.PausePlaylist(ctx)
		assert.Equal(t, fpperr.KindUnsupported, fpperr.Classify(err))

		assert.Zero(t, dev.Calls(http.MethodGet, "/api/schedule"))
		assert.Zero(t, dev.Calls(http.MethodPut, "/api/settings/ShowName"))
		assert.Zero(t, dev.Calls(http.MethodGet, "/api/playlists/pause"))

		ok, err := client.Supports(ctx, fpp.FeatureCommandAPI)
		require.NoError(t, err)
		assert.True(t, ok, "4.6.1 has the command API")
	})

	t.Run("unparsable version assumes the minimum", func(t *testing.T) {
		t.Parallel()

		dev := testutil.NewDevice(t)
		dev.Handle(http.MethodGet, pathInfo, testutil.JSON([]byte(`{"HostName":"fpp","Version":"unknown"}`)))

		client := newClient(t, dev)

		v, err := client.Version(context.Background())
		require.NoError(t, err)
		assert.Equal(t, fpp.FirmwareVersion{}, v)

		_, err = client.RunCommand(context.Background(), fpp.Command{Command: "Stop Now"})
		assert.Equal(t, fpperr.KindUnsupported, fpperr.Classify(err))
	})

	t.Run("failed fetch is retried on next use", func(t *testing.T) {
		t.Parallel()

		dev := testutil.NewDevice(t)
		dev.Handle(http.MethodGet, pathInfo,
			testutil.Response{Status: http.StatusForbidden},
			testutil.Fixture(t, "system_info_v7.json"),
		)
		dev.Handle(http.MethodGet, "/api/fppd/multiSyncSystems", testutil.Fixture(t, "multisync.json"))

		client := newClient(t, dev)
		ctx := context.Background()

		_, err := client.MultiSyncSystems(ctx)
		assert.Equal(t, fpperr.KindAPI, fpperr.Classify(err))

		systems, err := client.MultiSyncSystems(ctx)
		require.NoError(t, err)
		require.Len(t, systems, 2)
		assert.Equal(t, "fpp-shed", systems[1].HostName)
		assert.Equal(t, 6, systems[1].MajorVersion.Int())
	})
}

func TestPlaylists(t *testing.T) {
	t.Parallel()

	dev := testutil.NewDevice(t)
	dev.Handle(http.MethodGet, "/api/playlists", testutil.Fixture(t, "playlists.json"))
	dev.Handle(http.MethodGet, "/api/playlist/Test%20Pattern", testutil.Fixture(t, "playlist.json"))

	client := newClient(t, dev)
	ctx := context.Background()

	names, err := client.Playlists(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Christmas", "Halloween", "Test Pattern"}, names)

	playlist, err := client.Playlist(ctx, "Test Pattern")
	require.NoError(t, err)
	assert.Equal(t, "Christmas", playlist.Name)
	require.Len(t, playlist.MainPlaylist, 2)
	assert.Equal(t, 1, playlist.MainPlaylist[1].Enabled.Int())
	assert.InDelta(t, 183.2, playlist.MainPlaylist[0].Duration, 0.001)
}

func TestPlaylistControl(t *testing.T) {
	t.Parallel()

	dev := testutil.NewDevice(t)
	ok := testutil.JSON([]byte(`{"status":"OK"}`))
	dev.Handle(http.MethodGet, pathInfo, testutil.Fixture(t, "system_info.json"))
	dev.Handle(http.MethodGet, "/api/playlist/Christmas/start", ok)
	dev.Handle(http.MethodGet, "/api/playlist/Christmas/start/2/1", ok)
	dev.Handle(http.MethodGet, "/api/playlists/stop", ok)
	dev.Handle(http.MethodGet, "/api/playlists/stopgracefully", testutil.Response{Status: http.StatusOK})
	dev.Handle(http.MethodGet, "/api/playlists/pause", testutil.JSON([]byte("Paused")))
	dev.Handle(http.MethodGet, "/api/playlists/resume", ok)

	client := newClient(t, dev)
	ctx := context.Background()

	_, err := client.SetPlaylist(ctx, "Christmas")
	require.NoError(t, err)

	_, err = client.StartPlaylist(ctx, "Christmas", fpp.StartOptions{Item: 2, Repeat: true})
	require.NoError(t, err)

	_, err = client.StopPlaylist(ctx, false)
	require.NoError(t, err)

	result, err := client.StopPlaylist(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, fpp.Result{}, *result, "empty answers are fine for writes")

	result, err = client.PausePlaylist(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Paused", result.Message, "plain text answers end up in Message")

	_, err = client.ResumePlaylist(ctx)
	require.NoError(t, err)

	for _, path := range []string{
		"/api/playlist/Christmas/start",
		"/api/playlist/Christmas/start/2/1",
		"/api/playlists/stop",
		"/api/playlists/stopgracefully",
		"/api/playlists/pause",
		"/api/playlists/resume",
	} {
		assert.Equal(t, 1, dev.Calls(http.MethodGet, path), path)
	}
}

func TestScheduleWrites(t *testing.T) {
	t.Parallel()

	dev := testutil.NewDevice(t)
	dev.Handle(http.MethodGet, pathInfo, testutil.Fixture(t, "system_info.json"))
	dev.Handle(http.MethodPost, "/api/schedule", testutil.JSON([]byte(`{"Status":"OK","Message":""}`)))
	dev.Handle(http.MethodGet, "/api/schedule/reload", testutil.JSON([]byte(`{"status":"OK"}`)))

	client := newClient(t, dev)
	ctx := context.Background()

	_, err := client.SetSchedule(ctx, fpp.Schedule{{Playlist: "Christmas", StartTime: "17:00:00", Enabled: 1}})
	require.NoError(t, err)

	_, err = client.SetSchedule(ctx, nil)
	require.NoError(t, err)

	bodies := dev.Bodies(http.MethodPost, "/api/schedule")
	require.Len(t, bodies, 2)
	assert.Contains(t, string(bodies[0]), `"playlist":"Christmas"`)
	assert.Contains(t, string(bodies[0]), `"enabled":1`)
	assert.JSONEq(t, `[]`, string(bodies[1]), "a nil schedule clears every entry")

	result, err := client.ReloadSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OK", result.Status)
}

func TestSettings(t *testing.T) {
	t.Parallel()

	dev := testutil.NewDevice(t)
	dev.Handle(http.MethodGet, pathInfo, testutil.Fixture(t, "system_info.json"))
	dev.Handle(http.MethodGet, "/api/settings/ShowName",
		testutil.Fixture(t, "setting.json"),
		testutil.JSON([]byte(`{"value":"New Show"}`)),
	)
	dev.Handle(http.MethodPut, "/api/settings/ShowName", testutil.JSON([]byte("OK")))
	dev.Handle(http.MethodGet, "/api/settings/Volume", testutil.JSON([]byte(`{"name":"Volume","value":70}`)))

	client := newClient(t, dev)
	ctx := context.Background()

	setting, err := client.Setting(ctx, "ShowName")
	require.NoError(t, err)
	assert.Equal(t, fpp.FlexString("Holiday Lights"), setting.Value)

	volume, err := client.Setting(ctx, "Volume")
	require.NoError(t, err)
	assert.Equal(t, fpp.FlexString("70"), volume.Value)

	result, err := client.SetSetting(ctx, "ShowName", "New Show")
	require.NoError(t, err)
	assert.Equal(t, "OK", result.Message)
	assert.Equal(t, [][]byte{[]byte("New Show")}, dev.Bodies(http.MethodPut, "/api/settings/ShowName"))

	setting, err = client.Setting(ctx, "ShowName")
	require.NoError(t, err)
	assert.Equal(t, fpp.FlexString("New Show"), setting.Value)
	assert.Equal(t, "ShowName", setting.Name)
}

func TestVolume(t *testing.T) {
	t.Parallel()

	dev := testutil.NewDevice(t)
	dev.Handle(http.MethodGet, "/api/system/volume", testutil.Fixture(t, "volume.json"))
	dev.Handle(http.MethodPost, "/api/system/volume", testutil.JSON([]byte(`{"status":"OK","volume":30}`)))

	client := newClient(t, dev)
	ctx := context.Background()

	volume, err := client.Volume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 70, volume)

	_, err = client.SetVolume(ctx, 30)
	require.NoError(t, err)

	bodies := dev.Bodies(http.MethodPost, "/api/system/volume")
	require.Len(t, bodies, 1)
	assert.JSONEq(t, `{"volume":30}`, string(bodies[0]))
}

func TestRunCommand(t *testing.T) {
	t.Parallel()

	t.Run("sends the command", func(t *testing.T) {
		t.Parallel()

		dev := testutil.NewDevice(t)
		dev.Handle(http.MethodGet, pathInfo, testutil.Fixture(t, "system_info.json"))
		dev.Handle(http.MethodPost, "/api/command", testutil.JSON([]byte("Playlist Started")))

		result, err := newClient(t, dev).RunCommand(context.Background(), fpp.Command{
			Command: "Start Playlist",
			Args:    []string{"Christmas", "true"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Playlist Started", result.Message)

		bodies := dev.Bodies(http.MethodPost, "/api/command")
		require.Len(t, bodies, 1)
		assert.JSONEq(t, `{"command":"Start Playlist","args":["Christmas","true"]}`, string(bodies[0]))
	})

	t.Run("is not retried by default", func(t *testing.T) {
		t.Parallel()

		dev := testutil.NewDevice(t)
		dev.Handle(http.MethodGet, pathInfo, testutil.Fixture(t, "system_info.json"))
		dev.Handle(http.MethodPost, "/api/command", testutil.Response{Status: http.StatusServiceUnavailable})

		_, err := newClient(t, dev).RunCommand(context.Background(), fpp.Command{Command: "Stop Now"})
		require.Error(t, err)
		assert.Equal(t, 1, dev.Calls(http.MethodPost, "/api/command"))

		var apiErr *fpperr.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
		assert.Equal(t, fpperr.KindAPI, fpperr.Classify(err), "a single attempt is not an exhausted budget")
		assert.True(t, fpperr.IsTransient(err))
	})

	t.Run("is retried when allowed", func(t *testing.T) {
		t.Parallel()

		dev := testutil.NewDevice(t)
		dev.Handle(http.MethodGet, pathInfo, testutil.Fixture(t, "system_info.json"))
		dev.Handle(http.MethodPost, "/api/command", testutil.Response{Status: http.StatusServiceUnavailable})

		client := newClient(t, dev, func(cfg *fpp.ClientConfig) { cfg.RetryNonIdempotent = true })
		_, err := client.RunCommand(context.Background(), fpp.Command{Command: "Stop Now"})
		assert.Equal(t, fpperr.KindRetryExhausted, fpperr.Classify(err))
		assert.Equal(t, 3, dev.Calls(http.MethodPost, "/api/command"))
	})
}

func TestValidation(t *testing.T) {
	t.Parallel()

	dev := testutil.NewDevice(t)
	client := newClient(t, dev)
	ctx := context.Background()

	calls := map[string]func() error{
		"empty playlist": func() error { _, err := client.Playlist(ctx, ""); return err },
		"blank start":    func() error { _, err := client.SetPlaylist(ctx, "  "); return err },
		"negative item": func() error {
			_, err := client.StartPlaylist(ctx, "Christmas", fpp.StartOptions{Item: -1})
			return err
		},
		"empty setting":   func() error { _, err := client.Setting(ctx, ""); return err },
		"empty set":       func() error { _, err := client.SetSetting(ctx, "", "x"); return err },
		"volume too low":  func() error { _, err := client.SetVolume(ctx, -1); return err },
		"volume too high": func() error { _, err := client.SetVolume(ctx, 101); return err },
		"empty command":   func() error { _, err := client.RunCommand(ctx, fpp.Command{}); return err },
	}

	for name, call := range calls {
		err := call()
		assert.Equal(t, fpperr.KindValidation, fpperr.Classify(err), name)
	}
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	dev := testutil.NewDevice(t)
	dev.Handle(http.MethodGet, pathStatus, testutil.Fixture(t, "system_status.json"))
	dev.Handle(http.MethodGet, "/api/playlists", testutil.Fixture(t, "playlists.json"))
	dev.Handle(http.MethodGet, "/api/sequence", testutil.Fixture(t, "sequences.json"))

	device, err := newClient(t, dev).Update(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "playing", device.Status.StatusName)
	assert.Len(t, device.Playlists, 3)
	assert.Equal(t, []string{"Carol of the Bells", "Test Pattern", "Wizards in Winter"}, device.Sequences)
}

func TestUpdateEmptyResponse(t *testing.T) {
	t.Parallel()

	t.Run("empty status", func(t *testing.T) {
		t.Parallel()

		dev := testutil.NewDevice(t)
		dev.Handle(http.MethodGet, pathStatus, testutil.JSON(nil), testutil.Fixture(t, "system_status.json"))
		dev.Handle(http.MethodGet, "/api/playlists", testutil.Fixture(t, "playlists.json"))
		dev.Handle(http.MethodGet, "/api/sequence", testutil.Fixture(t, "sequences.json"))

		client := newClient(t, dev)

		device, err := client.Update(context.Background())
		require.Error(t, err)
		assert.Nil(t, device)
		assert.Equal(t, fpperr.KindDecode, fpperr.Classify(err))
		assert.ErrorIs(t, err, codec.ErrEmptyBody)
		assert.Zero(t, dev.Calls(http.MethodGet, "/api/playlists"), "aggregate stops at the first failure")

		// The empty answer was not cached.
		device, err = client.Update(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "playing", device.Status.StatusName)
		assert.Equal(t, 2, dev.Calls(http.MethodGet, pathStatus))
	})

	t.Run("empty sequences", func(t *testing.T) {
		t.Parallel()

		dev := testutil.NewDevice(t)
		dev.Handle(http.MethodGet, pathStatus, testutil.Fixture(t, "system_status.json"))
		dev.Handle(http.MethodGet, "/api/playlists", testutil.Fixture(t, "playlists.json"))
		dev.Handle(http.MethodGet, "/api/sequence", testutil.JSON([]byte("  \n")))

		_, err := newClient(t, dev).Update(context.Background())
		assert.Equal(t, fpperr.KindDecode, fpperr.Classify(err))
		assert.ErrorIs(t, err, codec.ErrEmptyBody)
	})
}

func TestInvalidateCache(t *testing.T) {
	t.Parallel()

	dev := testutil.NewDevice(t)
	dev.Handle(http.MethodGet, "/api/playlists", testutil.Fixture(t, "playlists.json"))
	dev.Handle(http.MethodGet, "/api/sequence", testutil.Fixture(t, "sequences.json"))

	client := newClient(t, dev)
	ctx := context.Background()

	fetch := func() {
		_, err := client.Playlists(ctx)
		require.NoError(t, err)
		_, err = client.Sequences(ctx)
		require.NoError(t, err)
	}

	fetch()
	client.InvalidateCache(fpp.NamespacePlaylist)
	fetch()
	assert.Equal(t, 2, dev.Calls(http.MethodGet, "/api/playlists"))
	assert.Equal(t, 1, dev.Calls(http.MethodGet, "/api/sequence"))

	client.InvalidateCache()
	fetch()
	assert.Equal(t, 3, dev.Calls(http.MethodGet, "/api/playlists"))
	assert.Equal(t, 2, dev.Calls(http.MethodGet, "/api/sequence"))
}
