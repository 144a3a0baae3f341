package core

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// NormalizeTime converts a stored timestamp to the canonical representation:
// a UTC time, or nil when the value is missing or cannot be read.
//
// Accepted inputs are time.Time, RFC 3339 strings, unix milliseconds and
// {"seconds", "nanos"} maps as produced by protobuf-style timestamps.
func NormalizeTime(v any) *time.Time {
	var t time.Time
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		t = x
	case *time.Time:
		if x == nil {
			return nil
		}
		t = *x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			ms, perr := strconv.ParseInt(s, 10, 64)
			if perr != nil {
				return nil
			}
			parsed = time.UnixMilli(ms)
		}
		t = parsed
	case int64:
		t = time.UnixMilli(x)
	case int:
		t = time.UnixMilli(int64(x))
	case float64:
		t = time.UnixMilli(int64(x))
	case json.Number:
		ms, err := x.Int64()
		if err != nil {
			return nil
		}
		t = time.UnixMilli(ms)
	case map[string]any:
		secs, ok := numberOf(x["seconds"])
		if !ok {
			secs, ok = numberOf(x["_seconds"])
		}
		if !ok {
			return nil
		}
		nanos, _ := numberOf(x["nanos"])
		if nanos == 0 {
			nanos, _ = numberOf(x["_nanoseconds"])
		}
		t = time.Unix(secs, nanos)
	default:
		return nil
	}
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

func numberOf(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	}
	return 0, false
}
