package fpp

import "context"

// DeviceAPIClient defines the interface for FPP device operations.
// This interface enables consumers to create mock implementations for testing.
//
// The device API covers:
//   - System status, info and firmware version
//   - Playlists and sequences
//   - Schedule and settings
//   - Volume and FPP commands
//   - MultiSync peers
//
// All methods mirror the corresponding methods of Client.
//
// Example usage with testify/mock:
//
//	type MockDevice struct {
//	    mock.Mock
//	}
//
//	func (m *MockDevice) Volume(ctx context.Context) (int, error) {
//	    args := m.Called(ctx)
//	    return args.Int(0), args.Error(1)
//	}
type DeviceAPIClient interface { //nolint:interfacebloat // mirrors the full client
	SystemStatus(ctx context.Context) (*SystemStatus, error)
	SystemInfo(ctx context.Context) (*SystemInfo, error)
	Version(ctx context.Context) (FirmwareVersion, error)
	Supports(ctx context.Context, feature Feature) (bool, error)

	PlaylistStatus(ctx context.Context) (*PlaylistStatus, error)
	Playlists(ctx context.Context) ([]string, error)
	Playlist(ctx context.Context, name string) (*Playlist, error)
	Sequences(ctx context.Context) ([]string, error)
	SetPlaylist(ctx context.Context, name string) (*Result, error)
	StartPlaylist(ctx context.Context, name string, opts StartOptions) (*Result, error)
	StopPlaylist(ctx context.Context, graceful bool) (*Result, error)
	PausePlaylist(ctx context.Context) (*Result, error)
	ResumePlaylist(ctx context.Context) (*Result, error)

	Schedule(ctx context.Context) (Schedule, error)
	SetSchedule(ctx context.Context, schedule Schedule) (*Result, error)
	ReloadSchedule(ctx context.Context) (*Result, error)

	Setting(ctx context.Context, name string) (*Setting, error)
	SetSetting(ctx context.Context, name, value string) (*Result, error)

	Volume(ctx context.Context) (int, error)
	SetVolume(ctx context.Context, volume int) (*Result, error)

	RunCommand(ctx context.Context, cmd Command) (*CommandResult, error)
	MultiSyncSystems(ctx context.Context) ([]MultiSyncSystem, error)
	Update(ctx context.Context) (*Device, error)

	Close() error
}

// Ensure Client implements DeviceAPIClient at compile time.
var _ DeviceAPIClient = (*Client)(nil)
