// Package normalize converts raw feed strings into canonical values.
// Classification is three-way: a value parses, is absent, or is
// unparseable. Unparseable is not an error; the caller decides whether
// to store a null, skip the row, or reject the request.
package normalize

import (
	"strconv"
	"strings"
	"time"
)

// Classification reports how a raw input was interpreted.
type Classification int

const (
	Parsed Classification = iota
	Absent
	Unparseable
)

func (c Classification) String() string {
	switch c {
	case Parsed:
		return "parsed"
	case Absent:
		return "absent"
	default:
		return "unparseable"
	}
}

// Normalized is the outcome of normalizing one raw string. Value is set
// only when Class is Parsed.
type Normalized struct {
	Class Classification
	Value any
}

func parsed(v any) Normalized {
	return Normalized{Class: Parsed, Value: v}
}

var (
	absent      = Normalized{Class: Absent}
	unparseable = Normalized{Class: Unparseable}
)

// FieldKind selects the normalization applied to a raw string.
type FieldKind int

const (
	KindDate FieldKind = iota
	KindRating
	KindNullableText
)

// Field normalizes raw according to kind.
func Field(kind FieldKind, raw string) Normalized {
	switch kind {
	case KindDate:
		return Date(raw)
	case KindRating:
		return Rating(raw)
	default:
		return NullableText(raw)
	}
}

// dateShape pairs a structural digit/separator pattern with the layout
// used to parse strings of that shape. The shape decides the layout
// before any parse attempt; a string whose shape-selected parse fails is
// unparseable, never reinterpreted under another layout.
type dateShape struct {
	pattern string
	layout  string
}

var dateShapes = []dateShape{
	{"dddd-dd-dd", "2006-01-02"},
	{"dd-dd-dddd", "01-02-2006"},
	{"dd/dd/dddd", "01/02/2006"},
}

// matchShape reports whether s matches pattern, where 'd' stands for an
// ASCII digit and every other byte must match literally.
func matchShape(s, pattern string) bool {
	if len(s) != len(pattern) {
		return false
	}
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == 'd' {
			if s[i] < '0' || s[i] > '9' {
				return false
			}
			continue
		}
		if s[i] != pattern[i] {
			return false
		}
	}
	return true
}

// Date normalizes a raw date string. Accepted shapes are YYYY-MM-DD,
// MM-DD-YYYY, and MM/DD/YYYY. The canonical value is a UTC date.
func Date(raw string) Normalized {
	for _, shape := range dateShapes {
		if !matchShape(raw, shape.pattern) {
			continue
		}
		t, err := time.Parse(shape.layout, raw)
		if err != nil {
			return unparseable
		}
		return parsed(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
	}
	return unparseable
}

// Rating normalizes a raw rating string. Only unsigned all-digit input
// parses; decimals, signs, blanks, and words are unparseable. Range
// checking is the validation engine's job, not this one's.
func Rating(raw string) Normalized {
	if raw == "" {
		return unparseable
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return unparseable
		}
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return unparseable
	}
	return parsed(n)
}

// NullableText normalizes free text where the feed uses empty strings
// for missing values. Whitespace-only input counts as absent; present
// values pass through untrimmed.
func NullableText(raw string) Normalized {
	if strings.TrimSpace(raw) == "" {
		return absent
	}
	return parsed(raw)
}
