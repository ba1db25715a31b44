package domain

import (
	"fmt"
	"strings"
)

// Side is the direction of a trade intent.
type Side int

const (
	SideBuy Side = iota + 1
	SideSell
)

// side string constants to avoid magic strings
const (
	sideStringBuy  = "buy"
	sideStringSell = "sell"
)

// String returns the string representation of the side.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return sideStringBuy
	case SideSell:
		return sideStringSell
	default:
		return "unknown"
	}
}

// Verb returns the past-tense verb used in user-facing messages.
func (s Side) Verb() string {
	if s == SideSell {
		return "sold"
	}
	return "bought"
}

// Valid reports whether s is one of the known sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// ParseSide converts "buy" or "sell" (case-insensitive) into a Side.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case sideStringBuy:
		return SideBuy, nil
	case sideStringSell:
		return SideSell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid side %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Side) UnmarshalText(text []byte) error {
	parsed, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
