package score

import (
	"math"
	"testing"
	"time"

	"github.com/grand-thief-cash/valuetrack/internal/model"
	"github.com/grand-thief-cash/valuetrack/internal/numeric"
)

// syntheticCloses builds a deterministic price path whose daily return
// alternates between +r and -r.
func syntheticCloses(n int, r float64) []float64 {
	closes := make([]float64, n)
	p := 100.0
	for i := range closes {
		if i%2 == 0 {
			p *= 1 + r
		} else {
			p *= 1 - r
		}
		closes[i] = p
	}
	return closes
}

func TestVolatilityMonotonicity(t *testing.T) {
	calm := syntheticCloses(31, 0.002)
	wild := syntheticCloses(31, 0.04)

	calmVol, ok1 := AnnualizedVolatility(calm)
	wildVol, ok2 := AnnualizedVolatility(wild)
	if !ok1 || !ok2 {
		t.Fatalf("expected enough samples")
	}
	if calmVol >= wildVol {
		t.Fatalf("calm vol %v >= wild vol %v", calmVol, wildVol)
	}

	calmScore, _ := volatilityScore(calm)
	wildScore, _ := volatilityScore(wild)
	if calmScore < wildScore {
		t.Fatalf("lower std must not score lower: %d < %d", calmScore, wildScore)
	}
}

func TestVolatilityInsufficientSamples(t *testing.T) {
	if pts, _ := volatilityScore(syntheticCloses(15, 0.01)); pts != 0 {
		t.Fatalf("score = %d, want 0 for <20 return samples", pts)
	}
}

func TestAnnualizedVolatilityFormula(t *testing.T) {
	closes := syntheticCloses(41, 0.01)
	vol, ok := AnnualizedVolatility(closes)
	if !ok {
		t.Fatalf("expected enough samples")
	}
	// returns alternate ±log(1±0.01), std ≈ 0.01, annualized ≈ 15.9
	want := 0.01 * math.Sqrt(252) * 100
	if math.Abs(vol-want) > 1.0 {
		t.Fatalf("vol = %v, want ≈ %v", vol, want)
	}
}

func TestParseDividendPerShare(t *testing.T) {
	cases := []struct {
		plan string
		want float64
		ok   bool
	}{
		{"10派5.2", 0.52, true},
		{"10派5.2元(含税)", 0.52, true},
		{"10转4派3", 0.3, true},
		{"派2.5", 0.25, true},
		{"10转5", 0, false},
		{"不分配不转增", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseDividendPerShare(c.plan)
		if ok != c.ok || math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("ParseDividendPerShare(%q) = (%v, %v), want (%v, %v)", c.plan, got, ok, c.want, c.ok)
		}
	}
}

func TestDividendYieldScenario(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	events := []*model.DividendEvent{
		{Code: "600036", ExDate: "2026-06-15", Plan: "10派5.2"},
		// outside the trailing year, must not count
		{Code: "600036", ExDate: "2024-06-15", Plan: "10派9.9"},
	}
	perShare := TTMDividendPerShare(events, now)
	if math.Abs(perShare-0.52) > 1e-9 {
		t.Fatalf("perShare = %v, want 0.52", perShare)
	}

	quote := &model.MarketQuote{LatestPrice: 50.0}
	r := Score(quote, nil, events, 0, 0, now)
	if math.Abs(r.DividendYield-1.04) > 1e-9 {
		t.Fatalf("yield = %v, want 1.04", r.DividendYield)
	}
	// 1.04% sits under the lowest 1.5% breakpoint
	if r.Sub.Dividend != 0 {
		t.Fatalf("dividend score = %d, want 0", r.Sub.Dividend)
	}
}

func TestValuationNullAndNegativePE(t *testing.T) {
	if pts := valuationScore(nil, nil); pts != 0 {
		t.Fatalf("nil PE/PB = %d, want 0", pts)
	}
	// a loss-making stock's negative PE contributes exactly zero
	if pts := valuationScore(numeric.Ptr(-8.3), nil); pts != 0 {
		t.Fatalf("negative PE = %d, want 0", pts)
	}
	if pts := valuationScore(numeric.Ptr(8.0), numeric.Ptr(0.9)); pts != 10 {
		t.Fatalf("cheap stock = %d, want 10", pts)
	}
	if pts := valuationScore(numeric.Ptr(25.0), numeric.Ptr(2.5)); pts != 2 {
		t.Fatalf("mid valuation = %d, want 2", pts)
	}
}

func TestGrowthScore(t *testing.T) {
	if pts := growthScore(18, 25); pts != 20 {
		t.Fatalf("top growth = %d, want 20", pts)
	}
	if pts := growthScore(12, 5); pts != 10 {
		t.Fatalf("mid growth = %d, want 10", pts)
	}
	if pts := growthScore(0, -10); pts != 0 {
		t.Fatalf("no growth = %d, want 0", pts)
	}
}

func TestTier(t *testing.T) {
	cases := []struct {
		total int
		want  string
	}{
		{90, "强烈推荐"},
		{75, "强烈推荐"},
		{60, "推荐"},
		{45, "关注"},
		{10, "观望"},
	}
	for _, c := range cases {
		if got := Tier(c.total); got != c.want {
			t.Fatalf("Tier(%d) = %s, want %s", c.total, got, c.want)
		}
	}
}

func TestScoreBounded(t *testing.T) {
	quote := &model.MarketQuote{
		LatestPrice: 10,
		PEDynamic:   numeric.Ptr(8.0),
		PB:          numeric.Ptr(0.9),
	}
	events := []*model.DividendEvent{{ExDate: "2026-07-01", Plan: "10派6"}}
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	r := Score(quote, syntheticCloses(31, 0.002), events, 20, 30, now)
	if r.Total != 100 {
		t.Fatalf("best case total = %d, want 100", r.Total)
	}
	if r.Tier != "强烈推荐" {
		t.Fatalf("tier = %s", r.Tier)
	}
}
