package normalizer

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

var now = func() time.Time {
	return time.Now().UTC()
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// lookup returns the first non-nil value stored under any of keys.
func lookup(m map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v, true
		}
	}

	return nil, false
}

func value(m map[string]any, keys ...string) any {
	v, _ := lookup(m, keys...)
	return v
}

func hasAny(m map[string]any, keys []string) bool {
	_, ok := lookup(m, keys...)
	return ok
}

func num(m map[string]any, keys ...string) float64 {
	return asFloat(value(m, keys...))
}

func str(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := asString(m[key]); s != "" {
			return s
		}
	}

	return ""
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}

	return nil
}

func asSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []map[string]any:
		out := make([]any, 0, len(s))
		for _, item := range s {
			out = append(out, item)
		}
		return out
	default:
		return nil
	}
}

// asFloat mirrors `Number(x) || 0`: anything that is not a finite number becomes 0.
func asFloat(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		f = parseNumeric(n.String())
	case bool:
		if n {
			f = 1
		}
	case string:
		f = parseNumeric(n)
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}

	return f
}

func parseNumeric(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0
	}

	return d.InexactFloat64()
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

func asStringSlice(v any) []string {
	out := make([]string, 0)
	switch items := v.(type) {
	case []string:
		for _, item := range items {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range items {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
	}

	return out
}

// asTime accepts RFC3339-ish strings and unix epochs in seconds or milliseconds.
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t.UTC(), true
	case string:
		raw := strings.TrimSpace(t)
		if raw == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, raw); err == nil {
				return parsed.UTC(), true
			}
		}
		if _, err := decimal.NewFromString(raw); err == nil {
			return epochToTime(parseNumeric(raw))
		}
		return time.Time{}, false
	default:
		return epochToTime(asFloat(v))
	}
}

func epochToTime(f float64) (time.Time, bool) {
	if f <= 0 {
		return time.Time{}, false
	}

	if f >= 1e12 {
		return time.UnixMilli(int64(f)).UTC(), true
	}

	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}

func timeOr(v any, fallback time.Time) time.Time {
	if t, ok := asTime(v); ok {
		return t
	}

	return fallback
}
