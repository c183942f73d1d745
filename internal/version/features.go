package version

import "sort"

// Feature names an API capability whose availability depends on the
// firmware version.
type Feature string

// Known features.
const (
	FeatureCommandAPI       Feature = "command_api"
	FeatureScheduleAPI      Feature = "schedule_api"
	FeatureSettingsAPI      Feature = "settings_api"
	FeaturePlaylistPause    Feature = "playlist_pause"
	FeatureMultiSyncSystems Feature = "multisync_systems"
)

var requirements = map[Feature]Version{
	FeatureCommandAPI:       {Major: 4},
	FeatureScheduleAPI:      {Major: 5},
	FeatureSettingsAPI:      {Major: 5},
	FeaturePlaylistPause:    {Major: 5},
	FeatureMultiSyncSystems: {Major: 6},
}

// Requirement returns the minimum version for feature.
func Requirement(feature Feature) (Version, bool) {
	v, ok := requirements[feature]
	return v, ok
}

// Supports reports whether a device running v offers feature. Unknown
// features are never supported.
func Supports(v Version, feature Feature) bool {
	required, ok := requirements[feature]
	if !ok {
		return false
	}
	return v.AtLeast(required)
}

// Features returns the known features sorted by name.
func Features() []Feature {
	out := make([]Feature, 0, len(requirements))
	for f := range requirements {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
