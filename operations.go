package fpp

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lexfrei/go-fpp/fpperr"
	"github.com/lexfrei/go-fpp/internal/version"
)

// FirmwareVersion is the parsed firmware version of a device.
type FirmwareVersion = version.Version

// Feature is an API capability that depends on the firmware version.
type Feature = version.Feature

// Version-gated features.
const (
	FeatureCommandAPI       = version.FeatureCommandAPI
	FeatureScheduleAPI      = version.FeatureScheduleAPI
	FeatureSettingsAPI      = version.FeatureSettingsAPI
	FeaturePlaylistPause    = version.FeaturePlaylistPause
	FeatureMultiSyncSystems = version.FeatureMultiSyncSystems
)

// Features returns every version-gated feature, sorted by name.
func Features() []Feature { return version.Features() }

// StartOptions tune StartPlaylist. The zero value starts at the first entry
// without repeating.
type StartOptions struct {
	// Item is the 1-based entry to start at, 0 for the beginning.
	Item int
	// Repeat loops the playlist until stopped.
	Repeat bool
}

// SystemStatus returns the current fppd status.
func (c *Client) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	status, err := execute(ctx, c, request{
		op:         "SystemStatus",
		method:     http.MethodGet,
		path:       "/api/system/status",
		namespace:  NamespaceStatus,
		idempotent: true,
	}, decodeInto[SystemStatus])
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// SystemInfo returns static information about the device, including its
// firmware version.
func (c *Client) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	info, err := execute(ctx, c, request{
		op:         "SystemInfo",
		method:     http.MethodGet,
		path:       "/api/system/info",
		namespace:  NamespaceSystem,
		idempotent: true,
	}, decodeInto[SystemInfo])
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Version returns the firmware version, querying the device on first use.
// A version string that cannot be parsed is reported as the minimum version.
func (c *Client) Version(ctx context.Context) (FirmwareVersion, error) {
	if c.closed.Load() {
		return FirmwareVersion{}, fpperr.ErrClosed
	}
	return c.gate.EnsureLoaded(ctx, c.fetchVersion)
}

// Supports reports whether the device firmware offers feature.
func (c *Client) Supports(ctx context.Context, feature Feature) (bool, error) {
	if c.closed.Load() {
		return false, fpperr.ErrClosed
	}
	return c.gate.Supports(ctx, feature, c.fetchVersion)
}

// PlaylistStatus returns the playlist part of the system status.
func (c *Client) PlaylistStatus(ctx context.Context) (*PlaylistStatus, error) {
	status, err := c.SystemStatus(ctx)
	if err != nil {
		return nil, err
	}
	ps := playlistStatusFrom(*status)
	return &ps, nil
}

// Playlists returns the names of all playlists.
func (c *Client) Playlists(ctx context.Context) ([]string, error) {
	return execute(ctx, c, request{
		op:         "Playlists",
		method:     http.MethodGet,
		path:       "/api/playlists",
		namespace:  NamespacePlaylist,
		idempotent: true,
	}, decodeInto[[]string])
}

// Playlist returns one playlist with its entries.
func (c *Client) Playlist(ctx context.Context, name string) (*Playlist, error) {
	if err := requireName("playlist", name); err != nil {
		return nil, err
	}

	playlist, err := execute(ctx, c, request{
		op:         "Playlist",
		method:     http.MethodGet,
		path:       "/api/playlist/" + url.PathEscape(name),
		namespace:  NamespacePlaylist,
		params:     map[string]any{"name": name},
		idempotent: true,
	}, decodeInto[Playlist])
	if err != nil {
		return nil, err
	}
	return &playlist, nil
}

// Sequences returns the names of all sequence files.
func (c *Client) Sequences(ctx context.Context) ([]string, error) {
	return execute(ctx, c, request{
		op:         "Sequences",
		method:     http.MethodGet,
		path:       "/api/sequence",
		namespace:  NamespaceSequence,
		idempotent: true,
	}, decodeInto[[]string])
}

// SetPlaylist starts playlist name from the beginning.
func (c *Client) SetPlaylist(ctx context.Context, name string) (*Result, error) {
	return c.StartPlaylist(ctx, name, StartOptions{})
}

// StartPlaylist starts playlist name.
func (c *Client) StartPlaylist(ctx context.Context, name string, opts StartOptions) (*Result, error) {
	if err := requireName("playlist", name); err != nil {
		return nil, err
	}
	if opts.Item < 0 {
		return nil, &fpperr.ValidationError{Field: "item", Msg: "must not be negative"}
	}

	path := "/api/playlist/" + url.PathEscape(name) + "/start"
	if opts.Item > 0 || opts.Repeat {
		path += "/" + strconv.Itoa(opts.Item)
	}
	if opts.Repeat {
		path += "/1"
	}

	return c.write(ctx, request{
		op:          "StartPlaylist",
		method:      http.MethodGet,
		path:        path,
		invalidates: []string{NamespaceStatus, NamespacePlaylist},
		idempotent:  true,
	})
}

// StopPlaylist stops the running playlist, at the end of the current
// entry when graceful is set.
func (c *Client) StopPlaylist(ctx context.Context, graceful bool) (*Result, error) {
	path := "/api/playlists/stop"
	if graceful {
		path = "/api/playlists/stopgracefully"
	}

	return c.write(ctx, request{
		op:          "StopPlaylist",
		method:      http.MethodGet,
		path:        path,
		invalidates: []string{NamespaceStatus, NamespacePlaylist},
		idempotent:  true,
	})
}

// PausePlaylist pauses the running playlist.
func (c *Client) PausePlaylist(ctx context.Context) (*Result, error) {
	return c.write(ctx, request{
		op:          "PausePlaylist",
		method:      http.MethodGet,
		path:        "/api/playlists/pause",
		feature:     FeaturePlaylistPause,
		invalidates: []string{NamespaceStatus},
		idempotent:  true,
	})
}

// ResumePlaylist resumes a paused playlist.
func (c *Client) ResumePlaylist(ctx context.Context) (*Result, error) {
	return c.write(ctx, request{
		op:          "ResumePlaylist",
		method:      http.MethodGet,
		path:        "/api/playlists/resume",
		feature:     FeaturePlaylistPause,
		invalidates: []string{NamespaceStatus},
		idempotent:  true,
	})
}

// Schedule returns the schedule.
func (c *Client) Schedule(ctx context.Context) (Schedule, error) {
	return execute(ctx, c, request{
		op:         "Schedule",
		method:     http.MethodGet,
		path:       "/api/schedule",
		feature:    FeatureScheduleAPI,
		namespace:  NamespaceSchedule,
		idempotent: true,
	}, decodeInto[Schedule])
}

// SetSchedule replaces the whole schedule.
func (c *Client) SetSchedule(ctx context.Context, schedule Schedule) (*Result, error) {
	if schedule == nil {
		schedule = Schedule{}
	}

	return c.write(ctx, request{
		op:          "SetSchedule",
		method:      http.MethodPost,
		path:        "/api/schedule",
		payload:     schedule,
		feature:     FeatureScheduleAPI,
		invalidates: []string{NamespaceSchedule, NamespaceStatus},
		idempotent:  true,
	})
}

// ReloadSchedule makes fppd re-read its schedule.
func (c *Client) ReloadSchedule(ctx context.Context) (*Result, error) {
	return c.write(ctx, request{
		op:          "ReloadSchedule",
		method:      http.MethodGet,
		path:        "/api/schedule/reload",
		feature:     FeatureScheduleAPI,
		invalidates: []string{NamespaceSchedule, NamespaceStatus},
		idempotent:  true,
	})
}

// Setting returns a single setting.
func (c *Client) Setting(ctx context.Context, name string) (*Setting, error) {
	if err := requireName("setting", name); err != nil {
		return nil, err
	}

	setting, err := execute(ctx, c, request{
		op:         "Setting",
		method:     http.MethodGet,
		path:       "/api/settings/" + url.PathEscape(name),
		feature:    FeatureSettingsAPI,
		namespace:  NamespaceSettings,
		params:     map[string]any{"name": name},
		idempotent: true,
	}, decodeInto[Setting])
	if err != nil {
		return nil, err
	}
	if setting.Name == "" {
		setting.Name = name
	}
	return &setting, nil
}

// SetSetting stores value under name. The device takes the raw value as
// the request body.
func (c *Client) SetSetting(ctx context.Context, name, value string) (*Result, error) {
	if err := requireName("setting", name); err != nil {
		return nil, err
	}

	return c.write(ctx, request{
		op:          "SetSetting",
		method:      http.MethodPut,
		path:        "/api/settings/" + url.PathEscape(name),
		raw:         []byte(value),
		feature:     FeatureSettingsAPI,
		invalidates: []string{NamespaceSettings, NamespaceStatus},
		idempotent:  true,
	})
}

// Volume returns the current volume.
func (c *Client) Volume(ctx context.Context) (int, error) {
	v, err := execute(ctx, c, request{
		op:         "Volume",
		method:     http.MethodGet,
		path:       "/api/system/volume",
		namespace:  NamespaceStatus,
		idempotent: true,
	}, decodeInto[Volume])
	if err != nil {
		return 0, err
	}
	return v.Volume.Int(), nil
}

// SetVolume sets the volume, 0 to 100.
func (c *Client) SetVolume(ctx context.Context, volume int) (*Result, error) {
	if volume < 0 || volume > 100 {
		return nil, &fpperr.ValidationError{Field: "volume", Msg: "must be between 0 and 100, got " + strconv.Itoa(volume)}
	}

	return c.write(ctx, request{
		op:          "SetVolume",
		method:      http.MethodPost,
		path:        "/api/system/volume",
		payload:     map[string]int{"volume": volume},
		invalidates: []string{NamespaceStatus},
		idempotent:  true,
	})
}

// RunCommand runs an FPP command. Commands are not retried unless
// ClientConfig.RetryNonIdempotent is set.
func (c *Client) RunCommand(ctx context.Context, cmd Command) (*CommandResult, error) {
	if strings.TrimSpace(cmd.Command) == "" {
		return nil, &fpperr.ValidationError{Field: "command", Msg: "is required"}
	}
	if cmd.Args == nil {
		cmd.Args = []string{}
	}

	return c.write(ctx, request{
		op:          "RunCommand",
		method:      http.MethodPost,
		path:        "/api/command",
		payload:     cmd,
		feature:     FeatureCommandAPI,
		invalidates: []string{NamespaceStatus, NamespacePlaylist},
	})
}

// MultiSyncSystems returns the devices known to fppd through MultiSync.
func (c *Client) MultiSyncSystems(ctx context.Context) ([]MultiSyncSystem, error) {
	systems, err := execute(ctx, c, request{
		op:         "MultiSyncSystems",
		method:     http.MethodGet,
		path:       "/api/fppd/multiSyncSystems",
		feature:    FeatureMultiSyncSystems,
		namespace:  NamespaceSystem,
		idempotent: true,
	}, decodeInto[multiSyncSystems])
	if err != nil {
		return nil, err
	}
	return systems.Systems, nil
}

// Update fetches status, playlists and sequences in one go.
func (c *Client) Update(ctx context.Context) (*Device, error) {
	status, err := c.SystemStatus(ctx)
	if err != nil {
		return nil, err
	}

	playlists, err := c.Playlists(ctx)
	if err != nil {
		return nil, err
	}

	sequences, err := c.Sequences(ctx)
	if err != nil {
		return nil, err
	}

	return &Device{
		Status:    *status,
		Playlists: playlists,
		Sequences: sequences,
	}, nil
}

func (c *Client) write(ctx context.Context, req request) (*Result, error) {
	result, err := execute(ctx, c, req, decodeResult)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func requireName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return &fpperr.ValidationError{Field: field, Msg: "name is required"}
	}
	return nil
}
