package jsonfile

import (
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// unwrapExtended replaces MongoDB extended JSON wrappers with plain values.
//
//	{"$oid": "65f..."}            -> "65f..."
//	{"$date": "2021-01-02T..."}   -> "2021-01-02 ..." (date-time text)
//	{"$date": {"$numberLong": n}} -> same, from epoch millis
//	{"$numberInt": "7"}           -> int64(7)
//	{"$numberLong": "7"}          -> int64(7)
//	{"$numberDouble": "1.5"}      -> float64(1.5)
//
// json.Number values from UseNumber decoding become int64 when integral and
// float64 otherwise. Anything else is walked recursively.
func unwrapExtended(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 1 {
			for k, inner := range t {
				if out, ok := unwrapWrapper(k, inner); ok {
					return out
				}
			}
		}
		for k, inner := range t {
			t[k] = unwrapExtended(inner)
		}
		return t

	case []any:
		for i := range t {
			t[i] = unwrapExtended(t[i])
		}
		return t

	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return string(t)

	default:
		return v
	}
}

func unwrapWrapper(key string, inner any) (any, bool) {
	switch key {
	case "$oid":
		s, ok := inner.(string)
		return s, ok

	case "$numberInt", "$numberLong":
		s, ok := textOf(inner)
		if !ok {
			return nil, false
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, false
		}
		return n, true

	case "$numberDouble":
		s, ok := textOf(inner)
		if !ok {
			return nil, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return f, true

	case "$date":
		switch d := inner.(type) {
		case string:
			ts, err := time.Parse(time.RFC3339Nano, d)
			if err != nil {
				return d, true
			}
			return formatDate(ts), true
		case map[string]any:
			ms, ok := unwrapExtended(d).(int64)
			if !ok {
				return nil, false
			}
			return formatDate(time.UnixMilli(ms)), true
		case json.Number:
			ms, err := d.Int64()
			if err != nil {
				return nil, false
			}
			return formatDate(time.UnixMilli(ms)), true
		}
	}
	return nil, false
}

// formatDate renders a timestamp the way the source database printed
// dates, so the date-only coercion can split it at the first space.
func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

func textOf(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}
