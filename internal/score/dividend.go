package score

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/grand-thief-cash/valuetrack/internal/model"
)

// Distribution descriptors follow the per-10-share convention:
// "10派5.2" pays 5.2 yuan per 10 shares. Some upstreams drop the
// leading 10, so a bare "派X" is matched second.
var (
	perTenPattern = regexp.MustCompile(`10派(\d+\.?\d*)`)
	barePattern   = regexp.MustCompile(`派(\d+\.?\d*)`)

	ten = decimal.NewFromInt(10)
)

// ParseDividendPerShare extracts the per-share cash amount from a
// free-text plan. Returns false when the plan carries no cash component
// (e.g. pure stock splits "10转5").
func ParseDividendPerShare(plan string) (float64, bool) {
	m := perTenPattern.FindStringSubmatch(plan)
	if m == nil {
		m = barePattern.FindStringSubmatch(plan)
	}
	if m == nil {
		return 0, false
	}
	amount, err := decimal.NewFromString(m[1])
	if err != nil {
		return 0, false
	}
	f, _ := amount.Div(ten).Float64()
	return f, true
}

// TTMDividendPerShare sums per-share cash across events whose ex-date
// falls in the trailing 365 days.
func TTMDividendPerShare(events []*model.DividendEvent, now time.Time) float64 {
	cutoff := now.AddDate(0, 0, -365).Format("2006-01-02")
	var total float64
	for _, e := range events {
		if e.ExDate < cutoff {
			continue
		}
		if perShare, ok := ParseDividendPerShare(e.Plan); ok {
			total += perShare
		}
	}
	return total
}
