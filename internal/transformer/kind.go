// Package transformer normalizes raw document tuples into relational values.
//
// Coercion is dispatched on a closed Kind enumeration. Config files spell
// kinds as "string", "int", "non-array" and "date"; ParseKind maps those once
// so the hot path never compares strings.
package transformer

import (
	"fmt"
	"strings"
)

// Kind is a column coercion.
type Kind int

const (
	// KindString renders a value as text.
	KindString Kind = iota + 1
	// KindInteger converts a value to int64.
	KindInteger
	// KindFirstOfArray replaces an array with its first element.
	KindFirstOfArray
	// KindDateOnly keeps the part of a timestamp before the first space.
	KindDateOnly
)

var kindNames = map[Kind]string{
	KindString:       "string",
	KindInteger:      "int",
	KindFirstOfArray: "non-array",
	KindDateOnly:     "date",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a config spelling to a Kind. Matching is case-insensitive;
// "integer" and "first" are accepted as aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "str", "text":
		return KindString, nil
	case "int", "integer":
		return KindInteger, nil
	case "non-array", "first":
		return KindFirstOfArray, nil
	case "date":
		return KindDateOnly, nil
	default:
		return 0, fmt.Errorf("unknown coercion kind %q", s)
	}
}

// UnmarshalText lets Kind be used directly in config structs.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// MarshalText renders the config spelling.
func (k Kind) MarshalText() ([]byte, error) {
	s, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("invalid coercion kind %d", int(k))
	}
	return []byte(s), nil
}
