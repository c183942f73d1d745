// Package codec converts FPP request and response models to and from JSON.
//
// It knows nothing about transport, retries or caching. Decode ignores
// unknown fields, but rejects bodies that are empty, malformed, miss a
// required field or carry a value of the wrong type.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"

	"github.com/lexfrei/go-fpp/fpperr"
)

var (
	// ErrEmptyBody is returned when a value was expected but the body was empty.
	ErrEmptyBody = errors.New("empty response body")
	// ErrMalformed is returned for bodies that are not valid JSON.
	ErrMalformed = errors.New("malformed JSON")
	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("missing required field")
)

// Requirer is implemented by models that cannot be decoded without some
// fields. RequiredFields returns gjson paths.
type Requirer interface {
	RequiredFields() []string
}

// Encode marshals a request model. A nil value encodes to no body.
func Encode(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %T", v)
	}

	return data, nil
}

// Decode unmarshals data into a T. All failures are *fpperr.DecodeError.
func Decode[T any](data []byte) (T, error) {
	var out T

	typeName := reflect.TypeFor[T]().String()

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return out, &fpperr.DecodeError{Type: typeName, Err: ErrEmptyBody}
	}

	if !gjson.ValidBytes(data) {
		return out, &fpperr.DecodeError{Type: typeName, Err: ErrMalformed}
	}

	for _, path := range requiredFields(&out) {
		if !gjson.GetBytes(data, path).Exists() {
			return out, &fpperr.DecodeError{Type: typeName, Field: path, Err: ErrMissingField}
		}
	}

	if err := json.Unmarshal(data, &out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return out, &fpperr.DecodeError{
				Type:  typeName,
				Field: typeErr.Field,
				Err:   errors.Newf("cannot use JSON %s as %s", typeErr.Value, typeErr.Type),
			}
		}
		return out, &fpperr.DecodeError{Type: typeName, Err: err}
	}

	return out, nil
}

func requiredFields(v any) []string {
	if r, ok := v.(Requirer); ok {
		return r.RequiredFields()
	}
	if r, ok := reflect.ValueOf(v).Elem().Interface().(Requirer); ok {
		return r.RequiredFields()
	}
	return nil
}

// CanonicalKey renders request parameters in a stable form for cache keys.
// Map keys are sorted at every level; nil and empty params give "".
func CanonicalKey(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}

	data, err := json.Marshal(params)
	if err != nil {
		// fmt prints maps with sorted keys too.
		return fmt.Sprintf("%v", params)
	}

	return string(data)
}
