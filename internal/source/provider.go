package source

import (
	"context"
	"errors"
	"strings"

	"github.com/grand-thief-cash/valuetrack/internal/model"
)

// ErrNoProvider means every provider in a fallback chain came back
// empty or failed; the caller must not write an empty snapshot.
var ErrNoProvider = errors.New("all providers failed or returned no data")

// QuoteProvider fetches realtime quotes. Providers that batch over a
// known code universe use the universe argument; full-market providers
// ignore it.
type QuoteProvider interface {
	Name() string
	FetchQuotes(ctx context.Context, universe []string) (rows []*model.MarketQuote, pages int, err error)
}

// KlineProvider fetches one stock's daily bars, most recent last.
type KlineProvider interface {
	Name() string
	FetchKlines(ctx context.Context, code string, limit int) ([]*model.HistBar, error)
}

// DividendProvider fetches one stock's distribution events.
type DividendProvider interface {
	Name() string
	FetchDividends(ctx context.Context, code string) ([]*model.DividendEvent, error)
}

// marketPrefix maps a bare 6-digit code to its exchange prefix:
// 6xx/9xx Shanghai, 4xx/8xx Beijing, rest Shenzhen.
func marketPrefix(code string) string {
	switch {
	case strings.HasPrefix(code, "6"), strings.HasPrefix(code, "9"):
		return "sh"
	case strings.HasPrefix(code, "4"), strings.HasPrefix(code, "8"):
		return "bj"
	default:
		return "sz"
	}
}

// secID is the eastmoney market.code form: market 1 for Shanghai,
// 0 for everything else.
func secID(code string) string {
	if strings.HasPrefix(code, "6") || strings.HasPrefix(code, "9") {
		return "1." + code
	}
	return "0." + code
}
