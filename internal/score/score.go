// Package score is the pure composite-scoring engine: no I/O, no
// clock reads besides the caller-supplied reference time. All
// breakpoint tables are package-level data so tuning the policy is a
// table change, not a code change.
package score

import (
	"math"
	"time"

	"github.com/grand-thief-cash/valuetrack/internal/model"
)

type band struct {
	threshold float64
	points    int
}

// Volatility: lower annualized vol scores higher, matched as value < threshold.
var volatilityBands = []band{
	{20, 40},
	{30, 30},
	{40, 20},
}

const volatilityFloorPoints = 10

// minReturnSamples guards the volatility estimate; fewer log returns
// than this scores 0 rather than trusting a noisy estimate.
const minReturnSamples = 20

// Dividend yield (%), matched as value >= threshold.
var dividendBands = []band{
	{5, 30},
	{3, 20},
	{1.5, 10},
}

// ROE (%) and profit growth (%), matched as value > threshold.
var roeBands = []band{
	{15, 12},
	{10, 8},
	{5, 4},
}

var growthBands = []band{
	{20, 8},
	{10, 5},
	{0, 2},
}

// PE and PB, matched as value < threshold. A nil or non-positive PE
// (loss-making stock) contributes 0; it must never read as "cheap".
var peBands = []band{
	{10, 5},
	{20, 3},
	{30, 1},
}

var pbBands = []band{
	{1, 5},
	{2, 3},
	{3, 1},
}

type tierBand struct {
	threshold int
	name      string
}

var tierBands = []tierBand{
	{75, "强烈推荐"},
	{55, "推荐"},
	{40, "关注"},
}

const defaultTier = "观望"

type SubScores struct {
	Volatility int `json:"volatility"`
	Dividend   int `json:"dividend"`
	Growth     int `json:"growth"`
	Valuation  int `json:"valuation"`
}

type Result struct {
	Sub   SubScores `json:"sub"`
	Total int       `json:"total"`
	Tier  string    `json:"tier"`

	// inputs as actually used, persisted alongside the score
	AnnualVolatility float64 `json:"annualVolatility"`
	DividendYield    float64 `json:"dividendYield"`
}

// AnnualizedVolatility computes std of daily log returns annualized as
// std * sqrt(252) * 100, over chronological closes. Returns (0, false)
// with fewer than minReturnSamples returns.
func AnnualizedVolatility(closes []float64) (float64, bool) {
	var returns []float64
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}
	if len(returns) < minReturnSamples {
		return 0, false
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))
	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(returns)))
	return std * math.Sqrt(252) * 100, true
}

func volatilityScore(closes []float64) (int, float64) {
	vol, ok := AnnualizedVolatility(closes)
	if !ok {
		return 0, 0
	}
	for _, b := range volatilityBands {
		if vol < b.threshold {
			return b.points, vol
		}
	}
	return volatilityFloorPoints, vol
}

func dividendScore(yield float64) int {
	for _, b := range dividendBands {
		if yield >= b.threshold {
			return b.points
		}
	}
	return 0
}

func growthScore(roe, growth float64) int {
	pts := 0
	for _, b := range roeBands {
		if roe > b.threshold {
			pts += b.points
			break
		}
	}
	for _, b := range growthBands {
		if growth > b.threshold {
			pts += b.points
			break
		}
	}
	return pts
}

func valuationScore(pe, pb *float64) int {
	pts := 0
	if pe != nil && *pe > 0 {
		for _, b := range peBands {
			if *pe < b.threshold {
				pts += b.points
				break
			}
		}
	}
	if pb != nil && *pb > 0 {
		for _, b := range pbBands {
			if *pb < b.threshold {
				pts += b.points
				break
			}
		}
	}
	return pts
}

// Tier maps a total score to its recommendation bucket.
func Tier(total int) string {
	for _, b := range tierBands {
		if total >= b.threshold {
			return b.name
		}
	}
	return defaultTier
}

// Score combines the four factor scores. closes must be chronological;
// dividends are filtered to the trailing 365 days relative to now.
func Score(quote *model.MarketQuote, closes []float64, dividends []*model.DividendEvent, roe, growth float64, now time.Time) Result {
	var r Result

	r.Sub.Volatility, r.AnnualVolatility = volatilityScore(closes)

	perShareTTM := TTMDividendPerShare(dividends, now)
	if quote != nil && quote.LatestPrice > 0 {
		r.DividendYield = perShareTTM / quote.LatestPrice * 100
	}
	r.Sub.Dividend = dividendScore(r.DividendYield)

	r.Sub.Growth = growthScore(roe, growth)

	if quote != nil {
		r.Sub.Valuation = valuationScore(quote.PEDynamic, quote.PB)
	}

	r.Total = r.Sub.Volatility + r.Sub.Dividend + r.Sub.Growth + r.Sub.Valuation
	r.Tier = Tier(r.Total)
	return r
}
