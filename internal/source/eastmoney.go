package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/grand-thief-cash/valuetrack/application/components/http_client"
	"github.com/grand-thief-cash/valuetrack/application/components/logging"
	"github.com/grand-thief-cash/valuetrack/internal/config"
	"github.com/grand-thief-cash/valuetrack/internal/model"
	"github.com/grand-thief-cash/valuetrack/internal/numeric"
)

// defaultUT is the long-lived public token; the scraped one replaces it
// when the upstream starts rejecting requests.
const defaultUT = "fa5fd1943c7b386f172d6893dbfba10b"

// emQuoteFields maps our column names onto the clist f-codes. Kept as
// data so a remapping upstream is a table change, not a code change.
var emQuoteFields = map[string]string{
	"code":         "f12",
	"name":         "f14",
	"latestPrice":  "f2",
	"changePct":    "f3",
	"changeAmt":    "f4",
	"volume":       "f5",
	"amount":       "f6",
	"turnoverRate": "f8",
	"pe":           "f9",
	"high":         "f15",
	"low":          "f16",
	"open":         "f17",
	"prevClose":    "f18",
	"totalCap":     "f20",
	"circCap":      "f21",
	"pb":           "f23",
}

// jsonGetter is the slice of the instrumented client pool the plain
// JSON endpoints use. The datacenter API sits behind no anti-scraping
// defenses, so those requests skip session rotation entirely.
type jsonGetter interface {
	Get(ctx context.Context, path string, query map[string]string, headers map[string]string, out interface{}) (*http.Response, error)
}

type EastmoneyProvider struct {
	sm   *SessionManager
	cfg  config.SourceConfig
	pool jsonGetter
}

func NewEastmoneyProvider(sm *SessionManager, cfg config.SourceConfig) *EastmoneyProvider {
	return &EastmoneyProvider{sm: sm, cfg: cfg}
}

func (p *EastmoneyProvider) Name() string { return "eastmoney" }

// SetPool overrides the pooled JSON client; tests inject fakes here.
func (p *EastmoneyProvider) SetPool(cli jsonGetter) { p.pool = cli }

func (p *EastmoneyProvider) jsonClient() jsonGetter {
	if p.pool != nil {
		return p.pool
	}
	if cli := http_client.Default(); cli != nil {
		return cli
	}
	return nil
}

// getJSON fetches a plain JSON endpoint through the instrumented pool.
// The session manager covers boots without the http_clients component.
func (p *EastmoneyProvider) getJSON(ctx context.Context, rawURL string, v url.Values) ([]byte, error) {
	if cli := p.jsonClient(); cli != nil {
		query := make(map[string]string, len(v))
		for k := range v {
			query[k] = v.Get(k)
		}
		var body json.RawMessage
		if _, err := cli.Get(ctx, rawURL, query, nil, &body); err != nil {
			return nil, err
		}
		if len(body) == 0 {
			return nil, ErrEmptyPayload
		}
		return body, nil
	}
	raw, err := p.sm.Fetch(ctx, rawURL+"?"+v.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return DecodeJSON(raw)
}

func (p *EastmoneyProvider) ut(ctx context.Context) string {
	if t, err := p.sm.UT(ctx); err == nil && t != "" {
		return t
	}
	return defaultUT
}

func (p *EastmoneyProvider) listURL(page, pageSize int, ut string) string {
	v := url.Values{}
	v.Set("pn", strconv.Itoa(page))
	v.Set("pz", strconv.Itoa(pageSize))
	v.Set("po", "1")
	v.Set("np", "1")
	v.Set("ut", ut)
	v.Set("fltt", "2")
	v.Set("invt", "2")
	v.Set("fid", "f3")
	// SH/SZ/BJ main boards plus ChiNext/STAR
	v.Set("fs", "m:0 t:6,m:0 t:80,m:1 t:2,m:1 t:23,m:0 t:81 s:2048")
	fields := make([]string, 0, len(emQuoteFields))
	for _, f := range emQuoteFields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	v.Set("fields", strings.Join(fields, ","))
	return p.cfg.EastmoneyListURL + "?" + v.Encode()
}

// fetchListPage returns one clist page; (nil, 0, ErrEmptyPayload) when
// the answer decodes but carries no rows.
func (p *EastmoneyProvider) fetchListPage(ctx context.Context, page, pageSize int, ut string) ([]*model.MarketQuote, int64, error) {
	raw, err := p.sm.Fetch(ctx, p.listURL(page, pageSize, ut), nil)
	if err != nil {
		return nil, 0, err
	}
	body, err := DecodeJSON(raw)
	if err != nil {
		return nil, 0, err
	}

	data := gjson.GetBytes(body, "data")
	if !data.Exists() || data.Type == gjson.Null {
		return nil, 0, ErrEmptyPayload
	}
	total := data.Get("total").Int()
	diff := data.Get("diff")
	var rows []*model.MarketQuote
	diff.ForEach(func(_, item gjson.Result) bool {
		if q := p.toQuote(item); q != nil {
			rows = append(rows, q)
		}
		return true
	})
	if len(rows) == 0 {
		return nil, total, ErrEmptyPayload
	}
	return rows, total, nil
}

func (p *EastmoneyProvider) toQuote(item gjson.Result) *model.MarketQuote {
	code := item.Get(emQuoteFields["code"]).String()
	if len(code) != 6 {
		return nil
	}
	price := numeric.ToFloat(item.Get(emQuoteFields["latestPrice"]).Value())
	if price == nil {
		// suspended stocks report "-" for price; skip them
		return nil
	}
	return &model.MarketQuote{
		Code:         code,
		Name:         item.Get(emQuoteFields["name"]).String(),
		LatestPrice:  *price,
		ChangePct:    numeric.Float(numeric.ToFloat(item.Get(emQuoteFields["changePct"]).Value())),
		ChangeAmt:    numeric.Float(numeric.ToFloat(item.Get(emQuoteFields["changeAmt"]).Value())),
		Open:         numeric.Float(numeric.ToFloat(item.Get(emQuoteFields["open"]).Value())),
		High:         numeric.Float(numeric.ToFloat(item.Get(emQuoteFields["high"]).Value())),
		Low:          numeric.Float(numeric.ToFloat(item.Get(emQuoteFields["low"]).Value())),
		PrevClose:    numeric.Float(numeric.ToFloat(item.Get(emQuoteFields["prevClose"]).Value())),
		TurnoverRate: numeric.Float(numeric.ToFloat(item.Get(emQuoteFields["turnoverRate"]).Value())),
		PEDynamic:    numeric.SafePE(item.Get(emQuoteFields["pe"]).Value()),
		PB:           numeric.SafePB(item.Get(emQuoteFields["pb"]).Value()),
		TotalMktCap:  numeric.Float(numeric.ToFloat(item.Get(emQuoteFields["totalCap"]).Value())),
		CircMktCap:   numeric.Float(numeric.ToFloat(item.Get(emQuoteFields["circCap"]).Value())),
		Volume:       numeric.ToInt(item.Get(emQuoteFields["volume"]).Value()),
		Amount:       numeric.Float(numeric.ToFloat(item.Get(emQuoteFields["amount"]).Value())),
		Provider:     p.Name(),
	}
}

// FetchQuotes walks the paginated clist. Page count derives from the
// `data.total` field of page 1. A failure mid-walk returns the rows
// collected so far together with the error so the caller can decide
// whether a partial snapshot is worth keeping.
func (p *EastmoneyProvider) FetchQuotes(ctx context.Context, _ []string) ([]*model.MarketQuote, int, error) {
	pageSize := p.cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	ut := p.ut(ctx)

	rows, total, err := p.fetchListPage(ctx, 1, pageSize, ut)
	if err == ErrEmptyPayload {
		// stale token is the usual cause; refresh once and retry
		if fresh, rerr := p.sm.RefreshUT(ctx); rerr == nil {
			ut = fresh
			rows, total, err = p.fetchListPage(ctx, 1, pageSize, ut)
		}
	}
	if err != nil {
		return nil, 0, err
	}

	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	for page := 2; page <= pages; page++ {
		if werr := p.sm.Wait(ctx, p.sm.RandomPageDelay()); werr != nil {
			return rows, page - 1, werr
		}
		pageRows, _, perr := p.fetchListPage(ctx, page, pageSize, ut)
		if perr != nil {
			logging.Warn(ctx, fmt.Sprintf("eastmoney clist page %d/%d failed: %v", page, pages, perr))
			return rows, page - 1, perr
		}
		rows = append(rows, pageRows...)
	}
	return rows, pages, nil
}

// FetchKlines pulls the per-stock daily K-line JSONP endpoint
// (forward adjusted, last `limit` bars).
func (p *EastmoneyProvider) FetchKlines(ctx context.Context, code string, limit int) ([]*model.HistBar, error) {
	if limit <= 0 {
		limit = 120
	}
	v := url.Values{}
	v.Set("secid", secID(code))
	v.Set("ut", p.ut(ctx))
	v.Set("klt", "101")
	v.Set("fqt", "1")
	v.Set("beg", "0")
	v.Set("end", "20500101")
	v.Set("lmt", strconv.Itoa(limit))
	v.Set("fields1", "f1,f2,f3,f4,f5,f6")
	v.Set("fields2", "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61")

	raw, err := p.sm.Fetch(ctx, p.cfg.EastmoneyKlineURL+"?"+v.Encode(), nil)
	if err != nil {
		return nil, err
	}
	body, err := DecodeJSON(raw)
	if err != nil {
		return nil, err
	}

	klines := gjson.GetBytes(body, "data.klines")
	if !klines.Exists() || len(klines.Array()) == 0 {
		return nil, ErrEmptyPayload
	}

	bars := make([]*model.HistBar, 0, len(klines.Array()))
	for _, line := range klines.Array() {
		// date,open,close,high,low,volume,amount,amplitude,pct_chg,chg,turnover
		parts := strings.Split(line.String(), ",")
		if len(parts) < 11 {
			continue
		}
		bars = append(bars, &model.HistBar{
			Date:      parts[0],
			Code:      code,
			Open:      numeric.Float(numeric.ToFloat(parts[1])),
			Close:     numeric.Float(numeric.ToFloat(parts[2])),
			High:      numeric.Float(numeric.ToFloat(parts[3])),
			Low:       numeric.Float(numeric.ToFloat(parts[4])),
			Volume:    numeric.ToInt(parts[5]),
			Amount:    numeric.Float(numeric.ToFloat(parts[6])),
			ChangePct: numeric.Float(numeric.ToFloat(parts[8])),
			Turnover:  numeric.Float(numeric.ToFloat(parts[10])),
		})
	}
	if len(bars) == 0 {
		return nil, ErrEmptyPayload
	}
	return bars, nil
}

// FetchStockInfo returns the decoded per-stock base-info JSON
// (push2 stock/get); the financial resolver probes it for ROE and
// profit-growth candidate keys.
func (p *EastmoneyProvider) FetchStockInfo(ctx context.Context, code string) ([]byte, error) {
	v := url.Values{}
	v.Set("secid", secID(code))
	v.Set("ut", p.ut(ctx))
	v.Set("invt", "2")
	v.Set("fltt", "2")
	v.Set("fields", "f57,f58,f162,f167,f173,f183,f184,f185")

	raw, err := p.sm.Fetch(ctx, p.cfg.EastmoneyInfoURL+"?"+v.Encode(), nil)
	if err != nil {
		return nil, err
	}
	body, err := DecodeJSON(raw)
	if err != nil {
		return nil, err
	}
	if data := gjson.GetBytes(body, "data"); !data.Exists() || data.Type == gjson.Null {
		return nil, ErrEmptyPayload
	}
	return body, nil
}

// FetchDividends queries the datacenter share-bonus report. The plan
// text (e.g. "10派5.2元(含税)") is stored raw; parsing happens at
// scoring time.
func (p *EastmoneyProvider) FetchDividends(ctx context.Context, code string) ([]*model.DividendEvent, error) {
	v := url.Values{}
	v.Set("reportName", "RPT_SHAREBONUS_DET")
	v.Set("columns", "ALL")
	v.Set("pageSize", "50")
	v.Set("sortColumns", "EX_DIVIDEND_DATE")
	v.Set("sortTypes", "-1")
	v.Set("filter", fmt.Sprintf(`(SECURITY_CODE="%s")`, code))

	body, err := p.getJSON(ctx, p.cfg.EastmoneyDividendURL, v)
	if err != nil {
		return nil, err
	}

	items := gjson.GetBytes(body, "result.data")
	if !items.Exists() || len(items.Array()) == 0 {
		return nil, ErrEmptyPayload
	}

	var events []*model.DividendEvent
	for _, it := range items.Array() {
		exDate := it.Get("EX_DIVIDEND_DATE").String()
		plan := it.Get("IMPL_PLAN_PROFILE").String()
		if exDate == "" || plan == "" {
			continue
		}
		if len(exDate) > 10 {
			exDate = exDate[:10]
		}
		events = append(events, &model.DividendEvent{
			Code:   code,
			ExDate: exDate,
			Plan:   plan,
			Source: p.Name(),
		})
	}
	if len(events) == 0 {
		return nil, ErrEmptyPayload
	}
	return events, nil
}
