// Package numeric normalizes the heterogeneous scalar values returned
// by quote upstreams (floats, ints, padded strings, percent strings,
// and a zoo of null sentinels) into *float64 / int.
package numeric

import (
	"math"
	"strconv"
	"strings"
)

// pbMaxMagnitude rejects sentinel placeholders the upstreams emit for
// missing ratios (observed as huge negative values for loss makers).
const maxMagnitude = 10000

func isSentinel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "-", "--", "none", "null", "nan":
		return true
	}
	return false
}

func parseString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if isSentinel(s) {
		return 0, false
	}
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToFloat converts an arbitrary upstream value to *float64, returning
// nil for absent/sentinel values. Percent strings are parsed as their
// numeric part ("5.2%" -> 5.2). The value is not clamped: domain
// specific sanity checks belong in SafePE / SafePB.
func ToFloat(v any) *float64 {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return &x
	case float32:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	case int:
		f := float64(x)
		return &f
	case int64:
		f := float64(x)
		return &f
	case string:
		if f, ok := parseString(x); ok {
			return &f
		}
		return nil
	default:
		return nil
	}
}

// ToInt is the integer variant; counts are never absent, so sentinels
// collapse to 0 instead of nil.
func ToInt(v any) int64 {
	f := ToFloat(v)
	if f == nil {
		return 0
	}
	return int64(*f)
}

// SafePE validates a dynamic PE. Magnitudes >= 10000 are upstream
// placeholder garbage and become nil; a legitimate negative PE (loss
// making stock) is preserved as-is.
func SafePE(v any) *float64 {
	f := ToFloat(v)
	if f == nil || math.Abs(*f) >= maxMagnitude {
		return nil
	}
	return f
}

// SafePB validates a price-to-book ratio: PB is meaningless when
// negative, unlike PE.
func SafePB(v any) *float64 {
	f := ToFloat(v)
	if f == nil || *f < 0 || *f >= maxMagnitude {
		return nil
	}
	return f
}

// Float returns the value or 0 when absent.
func Float(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// Ptr is a literal helper for tests and fixtures.
func Ptr(f float64) *float64 { return &f }
