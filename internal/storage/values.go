package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// NormalizeKey converts a scanned key value to a canonical string form.
//
// Backends must not assume a particular underlying type for keys (TEXT can
// come back as string or []byte depending on the driver); this helper keeps
// comparisons consistent across backends.
func NormalizeKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// AsString returns v as a string. ok is false for NULL.
func AsString(v any) (s string, ok bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case []byte:
		return string(t), true
	default:
		return fmt.Sprint(v), true
	}
}

// AsInt64 returns v as an int64. ok is false for NULL or non-numeric values.
func AsInt64(v any) (n int64, ok bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int32:
		return int64(t), true
	case int16:
		return int64(t), true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case []byte:
		n, err := strconv.ParseInt(strings.TrimSpace(string(t)), 10, 64)
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// AsBool returns v as a bool. SQLite hands booleans back as integers and
// some drivers as "t"/"f" text. ok is false for NULL.
func AsBool(v any) (b bool, ok bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case int64:
		return t != 0, true
	case int:
		return t != 0, true
	case []byte:
		return parseBoolText(string(t))
	case string:
		return parseBoolText(t)
	default:
		return false, false
	}
}

func parseBoolText(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t", "true", "1", "y", "yes":
		return true, true
	case "f", "false", "0", "n", "no":
		return false, true
	default:
		return false, false
	}
}

// DecodeList turns a stored TypeTextList value back into ids.
//
// Postgres returns native arrays ([]any or []string); SQLite and SQL Server
// store the list as a JSON array in a text column.
func DecodeList(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), t...), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := AsString(e)
			if !ok {
				continue
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return decodeJSONList([]byte(t))
	case []byte:
		return decodeJSONList(t)
	default:
		return nil, fmt.Errorf("storage: cannot decode list from %T", v)
	}
}

func decodeJSONList(b []byte) ([]string, error) {
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("storage: decode list: %w", err)
	}
	return out, nil
}

// EncodeJSONList is the TypeTextList encoding for backends without arrays.
func EncodeJSONList(ids []string) (any, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("storage: encode list: %w", err)
	}
	return string(b), nil
}
