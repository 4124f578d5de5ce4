package transformer

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

var (
	// ErrNotArray is returned by KindFirstOfArray for scalar values.
	ErrNotArray = errors.New("value is not an array")
	// ErrEmptyArray is returned by KindFirstOfArray for empty arrays.
	ErrEmptyArray = errors.New("array is empty")
	// ErrNotInteger is returned by KindInteger for values with no integer form.
	ErrNotInteger = errors.New("value is not an integer")
)

// CoercionError reports which value failed to coerce.
type CoercionError struct {
	Kind  Kind
	Row   int // row index, or element index for CoerceArray
	Index int // column index; -1 for CoerceArray
	Value any
	Err   error
}

func (e *CoercionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("coerce %s: element %d (%T): %v", e.Kind, e.Row, e.Value, e.Err)
	}
	return fmt.Sprintf("coerce %s: row %d column %d (%T): %v", e.Kind, e.Row, e.Index, e.Value, e.Err)
}

func (e *CoercionError) Unwrap() error { return e.Err }

// CoerceColumn rewrites column index of every row in place.
//
// nil values are never coerced. Rows too short to have the column are an
// error. The first failing value aborts with a *CoercionError; rows before
// it have already been rewritten.
func CoerceColumn(rows [][]any, index int, kind Kind) error {
	if index < 0 {
		return fmt.Errorf("coerce %s: negative column index %d", kind, index)
	}
	for i, row := range rows {
		if index >= len(row) {
			return fmt.Errorf("coerce %s: row %d has %d columns, want > %d", kind, i, len(row), index)
		}
		if row[index] == nil {
			continue
		}
		v, err := Coerce(row[index], kind)
		if err != nil {
			return &CoercionError{Kind: kind, Row: i, Index: index, Value: row[index], Err: err}
		}
		row[index] = v
	}
	return nil
}

// CoerceArray applies kind to every element of a flat list and returns a
// new slice. nil elements stay nil.
func CoerceArray(values []any, kind Kind) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		c, err := Coerce(v, kind)
		if err != nil {
			return nil, &CoercionError{Kind: kind, Row: i, Index: -1, Value: v, Err: err}
		}
		out[i] = c
	}
	return out, nil
}

// Coerce converts a single non-nil value.
func Coerce(v any, kind Kind) (any, error) {
	switch kind {
	case KindString:
		return ToString(v)
	case KindInteger:
		return toInt64(v)
	case KindFirstOfArray:
		return firstOf(v)
	case KindDateOnly:
		s, err := ToString(v)
		if err != nil {
			return nil, err
		}
		if i := strings.IndexByte(s, ' '); i >= 0 {
			return s[:i], nil
		}
		return s, nil
	default:
		return nil, fmt.Errorf("invalid coercion kind %d", int(kind))
	}
}

// hexer matches BSON ObjectIDs and similar identifier types.
type hexer interface {
	Hex() string
}

// ToString renders v as text.
//
// Strings pass through. ObjectID-like values render as hex, numbers without
// exponent, booleans as true/false, timestamps as "YYYY-MM-DD hh:mm:ss" and
// documents or arrays as compact JSON.
func ToString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case hexer:
		return t.Hex(), nil
	case json.Number:
		return t.String(), nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil

	case int:
		return strconv.Itoa(t), nil
	case int8:
		return strconv.FormatInt(int64(t), 10), nil
	case int16:
		return strconv.FormatInt(int64(t), 10), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil

	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil

	case time.Time:
		return t.UTC().Format("2006-01-02 15:04:05"), nil

	case fmt.Stringer:
		return t.String(), nil
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode %T: %w", v, err)
		}
		return string(b), nil
	default:
		return fmt.Sprint(v), nil
	}
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return 0, ErrNotInteger
		}
		return int64(t), nil
	case float32:
		return truncFloat(float64(t))
	case float64:
		return truncFloat(t)
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		f, err := t.Float64()
		if err != nil {
			return 0, ErrNotInteger
		}
		return truncFloat(f)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		return n, nil
	default:
		return 0, ErrNotInteger
	}
}

func truncFloat(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, ErrNotInteger
	}
	return int64(f), nil
}

func firstOf(v any) (any, error) {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return nil, ErrEmptyArray
		}
		return t[0], nil
	case []string:
		if len(t) == 0 {
			return nil, ErrEmptyArray
		}
		return t[0], nil
	case string, []byte:
		return nil, ErrNotArray
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, ErrNotArray
	}
	if rv.Len() == 0 {
		return nil, ErrEmptyArray
	}
	return rv.Index(0).Interface(), nil
}
