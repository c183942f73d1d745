package codec

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"strconv"

	"github.com/cockroachdb/errors"
)

var flexIntType = reflect.TypeFor[FlexInt]()

// FlexInt is an integer that FPP sometimes sends as a JSON string
// ("count": "4"). It accepts numbers, numeric strings, "" and null, and
// always encodes as a JSON number.
type FlexInt int64

// Int returns the value as an int.
func (f FlexInt) Int() int { return int(f) }

// MarshalJSON implements json.Marshaler.
func (f FlexInt) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, int64(f), 10), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return errors.Wrap(err, "invalid string integer")
		}
		if raw == "" {
			*f = 0
			return nil
		}
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*f = FlexInt(n)
		return nil
	}

	// 70.0 and "70.0" show up for volume on some firmware.
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return &json.UnmarshalTypeError{Value: "value " + raw, Type: flexIntType}
	}

	*f = FlexInt(math.Trunc(v))
	return nil
}

// FlexString is a string that FPP sometimes sends as a number or boolean,
// typically setting values. Non-string scalars keep their JSON spelling.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "invalid string")
		}
		*f = FlexString(s)
		return nil
	case len(data) > 0 && (data[0] == '{' || data[0] == '['):
		return &json.UnmarshalTypeError{Value: "object", Type: flexStringType}
	default:
		*f = FlexString(data)
		return nil
	}
}

var flexStringType = reflect.TypeFor[FlexString]()
