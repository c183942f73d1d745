package fpp

import (
	"strconv"

	"github.com/lexfrei/go-fpp/internal/codec"
)

// FlexInt is an integer that FPP may send as a JSON string.
type FlexInt = codec.FlexInt

// FlexString is a string that FPP may send as a JSON number or boolean.
type FlexString = codec.FlexString

// SystemStatus is the answer of GET /api/system/status.
type SystemStatus struct {
	MQTT             MQTTStatus       `json:"MQTT"`
	FPPD             string           `json:"fppd"`
	Mode             FlexInt          `json:"mode"`
	ModeName         string           `json:"mode_name"`
	Status           FlexInt          `json:"status"`
	StatusName       string           `json:"status_name"`
	Volume           FlexInt          `json:"volume"`
	CurrentSequence  string           `json:"current_sequence"`
	CurrentSong      string           `json:"current_song"`
	CurrentPlaylist  CurrentPlaylist  `json:"current_playlist"`
	NextPlaylist     NextPlaylist     `json:"next_playlist"`
	Scheduler        *SchedulerStatus `json:"scheduler,omitempty"`
	SecondsPlayed    FlexInt          `json:"seconds_played"`
	SecondsElapsed   FlexInt          `json:"seconds_elapsed"`
	SecondsRemaining FlexInt          `json:"seconds_remaining"`
	RepeatMode       FlexInt          `json:"repeat_mode"`
	Time             string           `json:"time,omitempty"`
	AdvancedView     *SystemInfo      `json:"advancedView,omitempty"`
}

// RequiredFields implements codec.Requirer.
func (SystemStatus) RequiredFields() []string { return []string{"status_name"} }

// Playing reports whether fppd is currently running a playlist.
func (s SystemStatus) Playing() bool { return s.StatusName == "playing" }

// CurrentPlaylist describes the playlist entry being played.
type CurrentPlaylist struct {
	Count       FlexInt `json:"count"`
	Description string  `json:"description"`
	Index       FlexInt `json:"index"`
	Playlist    string  `json:"playlist"`
	Type        string  `json:"type"`
}

// NextPlaylist is the next scheduled playlist.
type NextPlaylist struct {
	Playlist  string `json:"playlist"`
	StartTime string `json:"start_time"`
}

// SchedulerStatus is the scheduler part of the system status.
type SchedulerStatus struct {
	Enabled FlexInt `json:"enabled"`
	Status  string  `json:"status"`
}

// MQTTStatus tells whether fppd talks to an MQTT broker.
type MQTTStatus struct {
	Configured bool `json:"configured"`
	Connected  bool `json:"connected"`
}

// SystemInfo is the answer of GET /api/system/info, also embedded in the
// status as advancedView.
type SystemInfo struct {
	HostName         string      `json:"HostName"`
	HostDescription  string      `json:"HostDescription"`
	Platform         string      `json:"Platform"`
	Variant          string      `json:"Variant"`
	Mode             string      `json:"Mode"`
	Version          string      `json:"Version"`
	Branch           string      `json:"Branch"`
	OSVersion        string      `json:"OSVersion"`
	OSRelease        string      `json:"OSRelease"`
	ChannelRanges    string      `json:"channelRanges"`
	MajorVersion     FlexInt     `json:"majorVersion"`
	MinorVersion     FlexInt     `json:"minorVersion"`
	TypeID           FlexInt     `json:"typeId"`
	Utilization      Utilization `json:"Utilization"`
	Kernel           string      `json:"Kernel"`
	LocalGitVersion  string      `json:"LocalGitVersion"`
	RemoteGitVersion string      `json:"RemoteGitVersion"`
	UpgradeSource    string      `json:"UpgradeSource"`
	IPs              []string    `json:"IPs"`
}

// RequiredFields implements codec.Requirer.
func (SystemInfo) RequiredFields() []string { return []string{"HostName"} }

// VersionString returns the firmware version, falling back to
// majorVersion.minorVersion on builds that leave Version empty.
func (i SystemInfo) VersionString() string {
	if i.Version != "" {
		return i.Version
	}
	if i.MajorVersion == 0 && i.MinorVersion == 0 {
		return ""
	}
	return strconv.Itoa(i.MajorVersion.Int()) + "." + strconv.Itoa(i.MinorVersion.Int())
}

// Utilization is the resource usage of the device.
type Utilization struct {
	CPU    float64 `json:"CPU"`
	Memory float64 `json:"Memory"`
	Uptime string  `json:"Uptime"`
}

// PlaylistStatus is the playlist-related part of the system status.
type PlaylistStatus struct {
	StatusName       string
	Current          CurrentPlaylist
	Next             NextPlaylist
	CurrentSequence  string
	CurrentSong      string
	SecondsPlayed    int
	SecondsRemaining int
	RepeatMode       int
}

func playlistStatusFrom(s SystemStatus) PlaylistStatus {
	return PlaylistStatus{
		StatusName:       s.StatusName,
		Current:          s.CurrentPlaylist,
		Next:             s.NextPlaylist,
		CurrentSequence:  s.CurrentSequence,
		CurrentSong:      s.CurrentSong,
		SecondsPlayed:    s.SecondsPlayed.Int(),
		SecondsRemaining: s.SecondsRemaining.Int(),
		RepeatMode:       s.RepeatMode.Int(),
	}
}

// Playlist is the answer of GET /api/playlist/:name.
type Playlist struct {
	Name         string         `json:"name"`
	Version      FlexInt        `json:"version"`
	Repeat       FlexInt        `json:"repeat"`
	LoopCount    FlexInt        `json:"loopCount"`
	Empty        bool           `json:"empty"`
	Desc         string         `json:"desc"`
	Random       FlexInt        `json:"random"`
	LeadIn       []PlaylistItem `json:"leadIn"`
	MainPlaylist []PlaylistItem `json:"mainPlaylist"`
	LeadOut      []PlaylistItem `json:"leadOut"`
}

// RequiredFields implements codec.Requirer.
func (Playlist) RequiredFields() []string { return []string{"name"} }

// PlaylistItem is one entry of a playlist section.
type PlaylistItem struct {
	Type         string  `json:"type"`
	Enabled      FlexInt `json:"enabled"`
	PlayOnce     FlexInt `json:"playOnce"`
	SequenceName string  `json:"sequenceName,omitempty"`
	MediaName    string  `json:"mediaName,omitempty"`
	VideoOut     string  `json:"videoOut,omitempty"`
	Timecode     string  `json:"timecode,omitempty"`
	Duration     float64 `json:"duration"`
}

// ScheduleEntry is one line of the FPP schedule.
type ScheduleEntry struct {
	Enabled         FlexInt `json:"enabled"`
	Sequence        FlexInt `json:"sequence"`
	Playlist        string  `json:"playlist"`
	Day             FlexInt `json:"day"`
	StartTime       string  `json:"startTime"`
	StartTimeOffset FlexInt `json:"startTimeOffset"`
	EndTime         string  `json:"endTime"`
	EndTimeOffset   FlexInt `json:"endTimeOffset"`
	Repeat          FlexInt `json:"repeat"`
	StartDate       string  `json:"startDate"`
	EndDate         string  `json:"endDate"`
	StopType        FlexInt `json:"stopType"`
}

// Schedule is the full schedule. Setting it replaces every entry.
type Schedule []ScheduleEntry

// Setting is a single named device setting.
type Setting struct {
	Name  string     `json:"name,omitempty"`
	Value FlexString `json:"value"`
}

// RequiredFields implements codec.Requirer.
func (Setting) RequiredFields() []string { return []string{"value"} }

// Volume is the answer of GET /api/system/volume.
type Volume struct {
	Status string  `json:"status,omitempty"`
	Volume FlexInt `json:"volume"`
	Method string  `json:"method,omitempty"`
}

// RequiredFields implements codec.Requirer.
func (Volume) RequiredFields() []string { return []string{"volume"} }

// Command is an FPP command as accepted by POST /api/command.
type Command struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// Result is the acknowledgement of a write. FPP answers writes with JSON,
// plain text or nothing; plain text ends up in Message.
type Result struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// CommandResult is the answer of POST /api/command.
type CommandResult = Result

// MultiSyncSystem is a device seen by the MultiSync protocol.
type MultiSyncSystem struct {
	HostName      string  `json:"hostname"`
	Address       string  `json:"address"`
	FPPModeString string  `json:"fppModeString"`
	Version       string  `json:"version"`
	Platform      string  `json:"platform"`
	Model         string  `json:"model"`
	MajorVersion  FlexInt `json:"majorVersion"`
	MinorVersion  FlexInt `json:"minorVersion"`
	TypeID        FlexInt `json:"typeId"`
	Local         FlexInt `json:"local"`
}

type multiSyncSystems struct {
	Systems []MultiSyncSystem `json:"systems"`
}

func (multiSyncSystems) RequiredFields() []string { return []string{"systems"} }

// Device is everything Update collects in one call.
type Device struct {
	Status    SystemStatus `json:"status"`
	Playlists []string     `json:"playlists"`
	Sequences []string     `json:"sequences"`
}
