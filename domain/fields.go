package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// clock is swapped in tests that need deterministic defaults.
var clock = time.Now

func now() time.Time {
	return clock().Truncate(time.Second).UTC()
}

func requireMap(event string, data map[string]any, key string) (map[string]any, error) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return nil, missingField(event, key)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, invalidField(event, key, raw)
	}
	return m, nil
}

func requireString(event string, data map[string]any, key string) (string, error) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return "", missingField(event, key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", invalidField(event, key, raw)
	}
	if s == "" {
		return "", missingField(event, key)
	}
	return s, nil
}

// requireID reads an aggregate identifier, which must be a UUID.
func requireID(event string, data map[string]any, key string) (string, error) {
	s, err := requireString(event, data, key)
	if err != nil {
		return "", err
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", invalidField(event, key, s)
	}
	return s, nil
}

func optionalString(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

func optionalBool(data map[string]any, key string) (*bool, bool) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return nil, true
	}
	b, ok := toBool(raw)
	if !ok {
		return nil, false
	}
	return &b, true
}

func toBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	}
	if f, ok := toFloat(raw); ok {
		return f != 0, true
	}
	return false, false
}

// toFloat accepts any numeric representation, including numeric strings.
func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func optionalFloat(event string, data map[string]any, key string) (float64, error) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return 0, nil
	}
	f, ok := toFloat(raw)
	if !ok {
		return 0, invalidField(event, key, raw)
	}
	return f, nil
}

func optionalFloatPtr(event string, data map[string]any, key string) (*float64, error) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return nil, nil
	}
	f, ok := toFloat(raw)
	if !ok {
		return nil, invalidField(event, key, raw)
	}
	return &f, nil
}

// toTime normalizes epoch seconds, RFC3339 strings and time values to a
// second-precision UTC time.
func toTime(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v.Truncate(time.Second).UTC(), true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return v.Truncate(time.Second).UTC(), true
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.Truncate(time.Second).UTC(), true
		}
	}
	if f, ok := toFloat(raw); ok {
		return time.Unix(int64(f), 0).UTC(), true
	}
	return time.Time{}, false
}

func requireTime(event string, data map[string]any, key string) (time.Time, error) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return time.Time{}, missingField(event, key)
	}
	t, ok := toTime(raw)
	if !ok {
		return time.Time{}, invalidField(event, key, raw)
	}
	return t, nil
}

func optionalTime(event string, data map[string]any, key string) (*time.Time, error) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return nil, nil
	}
	if s, isString := raw.(string); isString && s == "" {
		return nil, nil
	}
	t, ok := toTime(raw)
	if !ok {
		return nil, invalidField(event, key, raw)
	}
	return &t, nil
}

// timeOrNow reads an optional timestamp and falls back to the current time
// when it is absent.
func timeOrNow(event string, data map[string]any, key string) (time.Time, error) {
	t, err := optionalTime(event, data, key)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return now(), nil
	}
	return *t, nil
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func stringOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func boolOrNil(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

// toList flattens both decoded JSON arrays and in-memory slices of mappings.
func toList(raw any) ([]map[string]any, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, true
	case []map[string]any:
		return v, true
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, el := range v {
			m, ok := el.(map[string]any)
			if !ok {
				return nil, false
			}
			out = append(out, m)
		}
		return out, true
	}
	return nil, false
}

func toStrings(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, true
	case []string:
		if len(v) == 0 {
			return nil, true
		}
		return append([]string(nil), v...), true
	case []any:
		var out []string
		for _, el := range v {
			s, ok := el.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func copyStrings(in []string) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}
