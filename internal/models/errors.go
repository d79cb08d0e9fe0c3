package models

import (
	"fmt"
	"strings"
)

// MalformedInputError reports a value that cannot be parsed or ordered.
// Data is static, so callers should not retry.
type MalformedInputError struct {
	Source string // "observations", "forecasts", or a file URI
	Column string
	Row    int // 1-based data row, 0 when unknown
	Value  string
	Err    error
}

func (e *MalformedInputError) Error() string {
	var b strings.Builder
	b.WriteString("malformed input")
	if e.Source != "" {
		b.WriteString(" in ")
		b.WriteString(e.Source)
	}
	fmt.Fprintf(&b, ": column %q", e.Column)
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " value %q", e.Value)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// NormalizeName trims and lower-cases a location or model identifier.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeLocation is NormalizeName with the unknown-location fallback.
func NormalizeLocation(s string) string {
	if n := NormalizeName(s); n != "" {
		return n
	}
	return UnknownLocation
}
