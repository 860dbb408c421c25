package numeric

import (
	"math"
	"testing"
)

func TestToFloatSentinels(t *testing.T) {
	for _, v := range []any{nil, "", "-", "--", "null", "NaN", "nan", math.NaN()} {
		if got := ToFloat(v); got != nil {
			t.Fatalf("ToFloat(%v) = %v, want nil", v, *got)
		}
	}
}

func TestToFloatParsing(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{12.5, 12.5},
		{int64(3), 3},
		{"5.2%", 5.2},
		{"-3.1%", -3.1},
		{"1,234.5", 1234.5},
		{"  7.8  ", 7.8},
	}
	for _, c := range cases {
		got := ToFloat(c.in)
		if got == nil || *got != c.want {
			t.Fatalf("ToFloat(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestToFloatIdempotent(t *testing.T) {
	first := ToFloat("42.42")
	second := ToFloat(*first)
	if second == nil || *second != *first {
		t.Fatalf("normalization not idempotent: %v vs %v", first, second)
	}
}

func TestToInt(t *testing.T) {
	if got := ToInt("-"); got != 0 {
		t.Fatalf("ToInt(-) = %d, want 0", got)
	}
	if got := ToInt("1024"); got != 1024 {
		t.Fatalf("ToInt(1024) = %d", got)
	}
	if got := ToInt(3.9); got != 3 {
		t.Fatalf("ToInt(3.9) = %d, want 3", got)
	}
}

func TestSafePE(t *testing.T) {
	// a loss-making stock's real negative PE survives
	if got := SafePE(-8.3); got == nil || *got != -8.3 {
		t.Fatalf("SafePE(-8.3) = %v, want -8.3", got)
	}
	for _, v := range []any{10000.0, -99999.0, "12345.6", math.NaN(), "--"} {
		if got := SafePE(v); got != nil {
			t.Fatalf("SafePE(%v) = %v, want nil", v, *got)
		}
	}
	if got := SafePE(25.4); got == nil || *got != 25.4 {
		t.Fatalf("SafePE(25.4) = %v", got)
	}
}

func TestSafePB(t *testing.T) {
	if got := SafePB(-0.5); got != nil {
		t.Fatalf("SafePB(-0.5) = %v, want nil", *got)
	}
	if got := SafePB(1.8); got == nil || *got != 1.8 {
		t.Fatalf("SafePB(1.8) = %v", got)
	}
}
