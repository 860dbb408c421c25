package source

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/grand-thief-cash/valuetrack/internal/config"
	"github.com/grand-thief-cash/valuetrack/internal/model"
	"github.com/grand-thief-cash/valuetrack/internal/numeric"
)

const sinaBatch = 80

// sinaHeaders: hq.sinajs.cn rejects requests without a finance referer.
var sinaHeaders = map[string]string{
	"Referer": "https://finance.sina.com.cn",
}

// SinaProvider is the last quote fallback. Its payload carries no
// PE/PB, so snapshots sourced here have nil valuation columns and the
// scoring engine treats those as zero contribution.
type SinaProvider struct {
	sm  *SessionManager
	cfg config.SourceConfig
}

func NewSinaProvider(sm *SessionManager, cfg config.SourceConfig) *SinaProvider {
	return &SinaProvider{sm: sm, cfg: cfg}
}

func (p *SinaProvider) Name() string { return "sina" }

func (p *SinaProvider) FetchQuotes(ctx context.Context, universe []string) ([]*model.MarketQuote, int, error) {
	if len(universe) == 0 {
		return nil, 0, ErrEmptyPayload
	}

	var rows []*model.MarketQuote
	pages := 0
	for i := 0; i < len(universe); i += sinaBatch {
		end := i + sinaBatch
		if end > len(universe) {
			end = len(universe)
		}
		keys := make([]string, 0, end-i)
		for _, code := range universe[i:end] {
			keys = append(keys, marketPrefix(code)+code)
		}

		raw, err := p.sm.Fetch(ctx, p.cfg.SinaQuoteURL+strings.Join(keys, ","), sinaHeaders)
		if err != nil {
			return rows, pages, err
		}
		pages++
		// hq.sinajs.cn serves GB18030; stock names are garbage without a decode.
		if decoded, _, derr := transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), raw); derr == nil {
			raw = decoded
		}
		for _, q := range parseSinaQuotes(string(raw)) {
			q.Provider = p.Name()
			rows = append(rows, q)
		}

		if end < len(universe) {
			if werr := p.sm.Wait(ctx, p.sm.RandomPageDelay()); werr != nil {
				return rows, pages, werr
			}
		}
	}
	if len(rows) == 0 {
		return nil, pages, ErrEmptyPayload
	}
	return rows, pages, nil
}

// parseSinaQuotes decodes lines of the form
// var hq_str_sh600036="招商银行,33.10,32.90,33.00,...";
// comma positions: 0 name, 1 open, 2 prev close, 3 price, 4 high,
// 5 low, 8 volume, 9 amount.
func parseSinaQuotes(payload string) []*model.MarketQuote {
	var rows []*model.MarketQuote
	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "var hq_str_") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		key := line[len("var hq_str_"):eq]
		if len(key) < 8 {
			continue
		}
		code := key[2:8]
		body := strings.Trim(strings.TrimSuffix(line[eq+1:], ";"), `"`)
		f := strings.Split(body, ",")
		if len(f) < 10 {
			continue
		}
		price := numeric.ToFloat(f[3])
		prevClose := numeric.ToFloat(f[2])
		if price == nil || *price <= 0 {
			continue
		}
		q := &model.MarketQuote{
			Code:        code,
			Name:        f[0],
			LatestPrice: *price,
			Open:        numeric.Float(numeric.ToFloat(f[1])),
			High:        numeric.Float(numeric.ToFloat(f[4])),
			Low:         numeric.Float(numeric.ToFloat(f[5])),
			Volume:      numeric.ToInt(f[8]),
			Amount:      numeric.Float(numeric.ToFloat(f[9])),
		}
		if prevClose != nil && *prevClose > 0 {
			q.PrevClose = *prevClose
			q.ChangeAmt = *price - *prevClose
			q.ChangePct = (*price - *prevClose) / *prevClose * 100
		}
		rows = append(rows, q)
	}
	return rows
}

// FinancePageURL builds the finance summary page URL for goquery
// scraping by the financial resolver.
func (p *SinaProvider) FinancePageURL(code string) string {
	return fmt.Sprintf(p.cfg.SinaFinanceURL, code)
}

// FetchFinancePage returns the raw HTML of the finance summary page.
func (p *SinaProvider) FetchFinancePage(ctx context.Context, code string) ([]byte, error) {
	return p.sm.Fetch(ctx, p.FinancePageURL(code), sinaHeaders)
}
