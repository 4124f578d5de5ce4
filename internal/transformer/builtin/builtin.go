// Package builtin contains the domain filters that turn raw document tuples
// into the rows of the orders, history, profiles and sessions tables.
//
// Filters never fail on shape problems in the source data: a record whose
// lists are missing or malformed is skipped. Only store errors (in
// LinkSessionsToProfile) are returned.
package builtin

import (
	"reflect"

	"recsys/internal/transformer"
)

// History types written to history.history_type.
const (
	HistoryPreviouslyRecommended = "previously_recommended"
	HistoryViewedBefore          = "viewed_before"
)

// MaxProductIDLen is the longest product id accepted into history; longer
// ids are upstream encoding defects.
const MaxProductIDLen = 32

// Truthy follows document-store truthiness: nil, false, zero numbers and
// empty strings, lists and documents are false.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	default:
		return true
	}
}

// asList returns the elements of an array-shaped value. ok is false for
// scalars, documents and nil.
func asList(v any) (items []any, ok bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case string, []byte:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// idString renders a scalar identifier. Documents and lists are not ids.
func idString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if _, isHex := v.(interface{ Hex() string }); !isHex {
			return "", false
		}
	}
	s, err := transformer.ToString(v)
	if err != nil || s == "" {
		return "", false
	}
	return s, true
}
