// Package version parses FPP firmware versions and decides which API
// features a device supports.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrInvalid is returned by Parse for strings without a leading major number.
var ErrInvalid = errors.New("invalid version")

// Version is a firmware version. Versions are totally ordered by
// (Major, Minor, Patch).
type Version struct {
	Major int
	Minor int
	Patch int
}

// Minimum is assumed when the device reports a version that cannot be
// parsed. It supports only features without a requirement.
var Minimum = Version{}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or +1.
func (v Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		return sign(v.Major - other.Major)
	case v.Minor != other.Minor:
		return sign(v.Minor - other.Minor)
	default:
		return sign(v.Patch - other.Patch)
	}
}

// AtLeast reports whether v >= other.
func (v Version) AtLeast(other Version) bool {
	return v.Compare(other) >= 0
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// Parse reads versions as FPP reports them. It is lenient: a leading "v" is
// dropped, build suffixes after '-', '+' or ' ' are ignored, and a
// non-numeric component ends the version with zeros, so
// "4.x-master-914-gebda8520" is 4.0.0 and "v7.4" is 7.4.0.
func Parse(s string) (Version, error) {
	raw := s

	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "v"), "V")
	if i := strings.IndexAny(s, "-+ "); i >= 0 {
		s = s[:i]
	}

	var parts [3]int

	for i, component := range strings.SplitN(s, ".", 3) {
		digits := leadingDigits(component)
		if digits == "" {
			if i == 0 {
				return Version{}, errors.Wrapf(ErrInvalid, "%q", raw)
			}
			break
		}

		n, err := strconv.Atoi(digits)
		if err != nil {
			return Version{}, errors.Wrapf(ErrInvalid, "%q", raw)
		}
		parts[i] = n

		if len(digits) != len(component) {
			break
		}
	}

	return Version{Major: parts[0], Minor: parts[1], Patch: parts[2]}, nil
}

// MustParse is Parse for constants. It panics on error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func leadingDigits(s string) string {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}
