package source

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

func TestEastmoneyFetchQuotesPaginated(t *testing.T) {
	cfg := testSourceConfig()
	cfg.PageSize = 2
	cfg.EastmoneyListURL = "http://fake.test/clist"

	page1 := `cb({"data":{"total":3,"diff":[
		{"f12":"600036","f14":"招商银行","f2":33.0,"f3":1.2,"f5":100,"f6":3300.0,"f9":6.5,"f20":8.0e11,"f21":8.0e11,"f23":0.9},
		{"f12":"000002","f14":"万科A","f2":7.5,"f3":-0.8,"f5":200,"f6":1500.0,"f9":"-","f20":9.0e10,"f21":8.0e10,"f23":0.6}]}})`
	page2 := `cb({"data":{"total":3,"diff":[
		{"f12":"601318","f14":"中国平安","f2":45.2,"f3":0.4,"f5":300,"f6":13560.0,"f9":8.1,"f20":8.2e11,"f21":8.2e11,"f23":1.1}]}})`

	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		switch r.URL.Query().Get("pn") {
		case "1":
			return textResponse(200, page1), nil
		case "2":
			return textResponse(200, page2), nil
		}
		t.Fatalf("unexpected page %q", r.URL.Query().Get("pn"))
		return nil, nil
	})

	p := NewEastmoneyProvider(newTestSession(cfg, rt), cfg)
	rows, pages, err := p.FetchQuotes(context.Background(), nil)
	if err != nil {
		t.Fatalf("fetch quotes: %v", err)
	}
	if pages != 2 || len(rows) != 3 {
		t.Fatalf("pages=%d rows=%d, want 2/3", pages, len(rows))
	}
	if rows[0].Code != "600036" || rows[0].PB == nil || *rows[0].PB != 0.9 {
		t.Fatalf("row0 = %+v", rows[0])
	}
	// "-" PE sentinel normalized to nil, not zero
	if rows[1].PEDynamic != nil {
		t.Fatalf("row1 PE = %v, want nil", *rows[1].PEDynamic)
	}
}

func TestEastmoneyFetchQuotesRefreshesUTOnEmpty(t *testing.T) {
	cfg := testSourceConfig()
	cfg.PageSize = 10
	cfg.EastmoneyListURL = "http://fake.test/clist"
	cfg.EastmoneyUTPage = "http://fake.test/center"

	const freshUT = "0123456789abcdef0123456789abcdef"
	utPage := `<html><script>var cfg={ut:"` + freshUT + `"};</script></html>`
	goodPage := `({"data":{"total":1,"diff":[{"f12":"600036","f14":"招商银行","f2":33.0,"f3":1.2,"f5":1,"f6":1.0,"f9":6.5,"f20":1.0,"f21":1.0,"f23":0.9}]}})`

	var listCalls int
	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if strings.Contains(r.URL.Path, "center") {
			return textResponse(200, utPage), nil
		}
		listCalls++
		if r.URL.Query().Get("ut") != freshUT {
			return textResponse(200, `({"data":null})`), nil
		}
		return textResponse(200, goodPage), nil
	})

	p := NewEastmoneyProvider(newTestSession(cfg, rt), cfg)
	rows, _, err := p.FetchQuotes(context.Background(), nil)
	if err != nil {
		t.Fatalf("fetch quotes: %v", err)
	}
	if len(rows) != 1 || listCalls != 2 {
		t.Fatalf("rows=%d listCalls=%d, want 1 row after one refresh retry", len(rows), listCalls)
	}
}

func TestEastmoneyFetchKlines(t *testing.T) {
	cfg := testSourceConfig()
	cfg.EastmoneyKlineURL = "http://fake.test/kline"
	payload := `({"data":{"code":"600036","klines":[
		"2024-01-02,10.0,10.2,10.5,9.9,1000,102000.0,6.0,2.0,0.2,0.8",
		"2024-01-03,10.2,10.1,10.4,10.0,900,90900.0,3.9,-0.98,-0.1,0.7"]}})`

	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if got := r.URL.Query().Get("secid"); got != "1.600036" {
			t.Fatalf("secid = %q", got)
		}
		if got := r.URL.Query().Get("klt"); got != "101" {
			t.Fatalf("klt = %q", got)
		}
		return textResponse(200, payload), nil
	})

	p := NewEastmoneyProvider(newTestSession(cfg, rt), cfg)
	bars, err := p.FetchKlines(context.Background(), "600036", 120)
	if err != nil {
		t.Fatalf("fetch klines: %v", err)
	}
	if len(bars) != 2 || bars[0].Date != "2024-01-02" || bars[1].Close != 10.1 {
		t.Fatalf("bars = %+v", bars)
	}
}

type stubJSONGetter struct {
	calls int
	query map[string]string
	body  string
}

func (s *stubJSONGetter) Get(_ context.Context, _ string, query map[string]string, _ map[string]string, out interface{}) (*http.Response, error) {
	s.calls++
	s.query = query
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = json.RawMessage(s.body)
	}
	return &http.Response{StatusCode: 200}, nil
}

func TestEastmoneyFetchDividendsUsesPooledClient(t *testing.T) {
	cfg := testSourceConfig()
	cfg.EastmoneyDividendURL = "http://fake.test/datacenter"

	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		t.Fatalf("dividend fetch must not go through the rotating session")
		return nil, nil
	})
	p := NewEastmoneyProvider(newTestSession(cfg, rt), cfg)

	stub := &stubJSONGetter{body: `{"result":{"data":[
		{"EX_DIVIDEND_DATE":"2026-07-10 00:00:00","IMPL_PLAN_PROFILE":"10派20.0元(含税)"},
		{"EX_DIVIDEND_DATE":"2025-07-11 00:00:00","IMPL_PLAN_PROFILE":"10派17.5元(含税)"}]}}`}
	p.SetPool(stub)

	events, err := p.FetchDividends(context.Background(), "600036")
	if err != nil {
		t.Fatalf("fetch dividends: %v", err)
	}
	if stub.calls != 1 {
		t.Fatalf("pool calls = %d, want 1", stub.calls)
	}
	if !strings.Contains(stub.query["filter"], "600036") {
		t.Fatalf("filter = %q", stub.query["filter"])
	}
	if len(events) != 2 || events[0].ExDate != "2026-07-10" || events[0].Plan != "10派20.0元(含税)" {
		t.Fatalf("events = %+v", events)
	}
}

func TestParseTencentQuotes(t *testing.T) {
	f := make([]string, 50)
	f[0] = "1"
	f[1] = "招商银行"
	f[2] = "600036"
	f[3] = "33.00"
	f[32] = "0.61"
	f[36] = "338304"
	f[37] = "111563.2"
	f[39] = "6.50"
	f[44] = "8343.11"
	f[45] = "10085.21"
	f[46] = "0.95"
	line := `v_sh600036="` + strings.Join(f, "~") + `";`
	rows := parseTencentQuotes(line)
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	q := rows[0]
	if q.Code != "600036" || q.Name != "招商银行" || q.LatestPrice != 33.00 {
		t.Fatalf("quote = %+v", q)
	}
	if q.PEDynamic == nil || *q.PEDynamic != 6.50 {
		t.Fatalf("pe = %v", q.PEDynamic)
	}
	if q.PB == nil || *q.PB != 0.95 {
		t.Fatalf("pb = %v", q.PB)
	}
}

func TestParseSinaQuotes(t *testing.T) {
	payload := `var hq_str_sh600036="招商银行,32.90,32.80,33.00,33.50,32.60,33.00,33.01,33830400,1115632320.00,100,33.00,200,32.99,0,0,0,0,0,0,0,0,0,0,2024-01-02,15:00:00,00";` + "\n"
	rows := parseSinaQuotes(payload)
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	q := rows[0]
	if q.Code != "600036" || q.LatestPrice != 33.00 {
		t.Fatalf("quote = %+v", q)
	}
	// change pct derived from prev close 32.80
	if q.ChangePct < 0.60 || q.ChangePct > 0.62 {
		t.Fatalf("changePct = %v", q.ChangePct)
	}
	// sina carries no valuation fields
	if q.PEDynamic != nil || q.PB != nil {
		t.Fatalf("valuation should be nil: %+v", q)
	}
}

func TestParseSinaQuotesSkipsMalformedLine(t *testing.T) {
	good := `var hq_str_sh600036="招商银行,32.90,32.80,33.00,33.50,32.60,33.00,33.01,33830400,1115632320.00";`
	payload := "var hq_str_sh601398\n" + good + "\n"
	rows := parseSinaQuotes(payload)
	if len(rows) != 1 || rows[0].Code != "600036" {
		t.Fatalf("rows = %+v, a truncated line must not drop the rest of the batch", rows)
	}
}

func TestMarketPrefixAndSecID(t *testing.T) {
	cases := []struct{ code, prefix, sec string }{
		{"600036", "sh", "1.600036"},
		{"000002", "sz", "0.000002"},
		{"300750", "sz", "0.300750"},
		{"830799", "bj", "0.830799"},
	}
	for _, c := range cases {
		if got := marketPrefix(c.code); got != c.prefix {
			t.Fatalf("marketPrefix(%s) = %s", c.code, got)
		}
		if got := secID(c.code); got != c.sec {
			t.Fatalf("secID(%s) = %s", c.code, got)
		}
	}
}
