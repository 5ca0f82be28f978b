package jobs

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	apperrors "docworker/core/errors"

	"github.com/mitchellh/mapstructure"
)

// Decode parses one raw queue item. The payload must be a single JSON object.
// Keys match field names exactly. Two conversions are allowed: a JSON number
// for a string field and a decimal integer string for FileSize; any other type
// mismatch is an error. Errors wrap apperrors.ErrDecode.
func Decode(raw string) (*JobEnvelope, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, apperrors.Kind(apperrors.ErrDecode, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, apperrors.Kind(apperrors.ErrDecode, fmt.Errorf("unexpected data after JSON value at offset %d", dec.InputOffset()))
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, apperrors.Kind(apperrors.ErrDecode, fmt.Errorf("expected a JSON object, got %s", jsonKind(v)))
	}

	var env JobEnvelope
	md, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: integerStrings,
		MatchName:  func(mapKey, fieldName string) bool { return mapKey == fieldName },
		Result:     &env,
	})
	if err != nil {
		return nil, err
	}
	if err := md.Decode(obj); err != nil {
		return nil, apperrors.Kind(apperrors.ErrDecode, err)
	}
	return &env, nil
}

// integerStrings parses string input for int64 fields. With UseNumber, JSON
// numbers arrive as json.Number, whose kind is also string.
func integerStrings(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Int64 || from.Kind() != reflect.String {
		return data, nil
	}
	s := reflect.ValueOf(data).String()
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not an integer", s)
	}
	return n, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
