package source

import (
	"context"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/grand-thief-cash/valuetrack/internal/config"
	"github.com/grand-thief-cash/valuetrack/internal/model"
	"github.com/grand-thief-cash/valuetrack/internal/numeric"
)

// tencentBatch is how many codes fit in one qt.gtimg.cn query.
const tencentBatch = 60

// TencentProvider batch-fetches realtime quotes and per-stock K-lines
// from the qt.gtimg.cn endpoints. It needs a code universe: unlike the
// eastmoney clist there is no full-market listing.
type TencentProvider struct {
	sm  *SessionManager
	cfg config.SourceConfig
}

func NewTencentProvider(sm *SessionManager, cfg config.SourceConfig) *TencentProvider {
	return &TencentProvider{sm: sm, cfg: cfg}
}

func (p *TencentProvider) Name() string { return "tencent" }

func (p *TencentProvider) FetchQuotes(ctx context.Context, universe []string) ([]*model.MarketQuote, int, error) {
	if len(universe) == 0 {
		return nil, 0, ErrEmptyPayload
	}

	var rows []*model.MarketQuote
	pages := 0
	for i := 0; i < len(universe); i += tencentBatch {
		end := i + tencentBatch
		if end > len(universe) {
			end = len(universe)
		}
		keys := make([]string, 0, end-i)
		for _, code := range universe[i:end] {
			keys = append(keys, marketPrefix(code)+code)
		}

		raw, err := p.sm.Fetch(ctx, p.cfg.TencentQuoteURL+strings.Join(keys, ","), nil)
		if err != nil {
			return rows, pages, err
		}
		pages++
		for _, q := range parseTencentQuotes(string(raw)) {
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

// parseTencentQuotes decodes lines of the form
// v_sh600036="1~招商银行~600036~33.00~..."; the payload is ~-separated
// with well-known positions.
func parseTencentQuotes(payload string) []*model.MarketQuote {
	var rows []*model.MarketQuote
	for _, line := range strings.Split(payload, ";") {
		line = strings.TrimSpace(line)
		eq := strings.Index(line, "=")
		if !strings.HasPrefix(line, "v_") || eq < 0 {
			continue
		}
		body := strings.Trim(line[eq+1:], `"`)
		f := strings.Split(body, "~")
		if len(f) < 47 {
			continue
		}
		price := numeric.ToFloat(f[3])
		if price == nil || *price <= 0 {
			continue
		}
		rows = append(rows, &model.MarketQuote{
			Code:         f[2],
			Name:         f[1],
			LatestPrice:  *price,
			PrevClose:    numeric.Float(numeric.ToFloat(f[4])),
			Open:         numeric.Float(numeric.ToFloat(f[5])),
			ChangeAmt:    numeric.Float(numeric.ToFloat(f[31])),
			ChangePct:    numeric.Float(numeric.ToFloat(f[32])),
			High:         numeric.Float(numeric.ToFloat(f[33])),
			Low:          numeric.Float(numeric.ToFloat(f[34])),
			Volume:       numeric.ToInt(f[36]) * 100,                  // 手 -> shares
			Amount:       numeric.Float(numeric.ToFloat(f[37])) * 1e4, // 万元 -> yuan
			TurnoverRate: numeric.Float(numeric.ToFloat(f[38])),
			PEDynamic:    numeric.SafePE(f[39]),
			CircMktCap:   numeric.Float(numeric.ToFloat(f[44])) * 1e8, // 亿 -> yuan
			TotalMktCap:  numeric.Float(numeric.ToFloat(f[45])) * 1e8,
			PB:           numeric.SafePB(f[46]),
		})
	}
	return rows
}

// FetchKlines pulls the forward-adjusted daily K-line series.
func (p *TencentProvider) FetchKlines(ctx context.Context, code string, limit int) ([]*model.HistBar, error) {
	if limit <= 0 {
		limit = 120
	}
	key := marketPrefix(code) + code
	u := p.cfg.TencentKlineURL + "?param=" + key + ",day,,," + strconv.Itoa(limit) + ",qfq"

	raw, err := p.sm.Fetch(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	body, err := DecodeJSON(raw)
	if err != nil {
		return nil, err
	}

	series := gjson.GetBytes(body, "data."+key+".qfqday")
	if !series.Exists() {
		series = gjson.GetBytes(body, "data."+key+".day")
	}
	if !series.Exists() || len(series.Array()) == 0 {
		return nil, ErrEmptyPayload
	}

	bars := make([]*model.HistBar, 0, len(series.Array()))
	var prevClose float64
	for _, item := range series.Array() {
		// [date, open, close, high, low, volume]
		f := item.Array()
		if len(f) < 6 {
			continue
		}
		closeP := numeric.Float(numeric.ToFloat(f[2].Value()))
		bar := &model.HistBar{
			Date:   f[0].String(),
			Code:   code,
			Open:   numeric.Float(numeric.ToFloat(f[1].Value())),
			Close:  closeP,
			High:   numeric.Float(numeric.ToFloat(f[3].Value())),
			Low:    numeric.Float(numeric.ToFloat(f[4].Value())),
			Volume: numeric.ToInt(f[5].Value()) * 100,
		}
		if prevClose > 0 {
			bar.ChangePct = (closeP - prevClose) / prevClose * 100
		}
		prevClose = closeP
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, ErrEmptyPayload
	}
	return bars, nil
}
