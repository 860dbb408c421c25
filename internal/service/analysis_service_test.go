package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/grand-thief-cash/valuetrack/internal/model"
	"github.com/grand-thief-cash/valuetrack/internal/numeric"
)

type analysisFixture struct {
	svc       *AnalysisService
	quoteDao  *stubQuoteDao
	barDao    *stubBarDao
	divDao    *stubDivDao
	resultDao *stubResultDao
	watchDao  *stubWatchDao
}

func newAnalysisFixture(entries ...*model.WatchEntry) *analysisFixture {
	fixedNow := func() time.Time { return time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC) }
	cfg := testBizConfig()
	cfg.Financial.CacheTTL = time.Hour

	f := &analysisFixture{
		quoteDao:  newStubQuoteDao(),
		barDao:    newStubBarDao(),
		divDao:    newStubDivDao(),
		resultDao: newStubResultDao(),
		watchDao:  newStubWatchDao(entries...),
	}

	history := NewHistorySyncService(cfg)
	history.BarDao = f.barDao
	history.DivDao = f.divDao
	history.now = fixedNow

	fin := NewFinancialService(cfg)
	fin.now = fixedNow
	fin.steps = []finStep{
		{tierBaseInfo, func(context.Context, string) (float64, float64, bool) {
			return 16.0, 12.0, true
		}},
	}

	svc := NewAnalysisService(cfg)
	svc.WatchDao = f.watchDao
	svc.QuoteDao = f.quoteDao
	svc.BarDao = f.barDao
	svc.DivDao = f.divDao
	svc.ResultDao = f.resultDao
	svc.History = history
	svc.Financials = fin
	svc.now = fixedNow
	f.svc = svc
	return f
}

// seedStock makes code fully analyzable: a snapshot row plus enough
// bars to satisfy the history skip threshold.
func (f *analysisFixture) seedStock(code, name string, price float64) {
	f.quoteDao.latest[code] = &model.MarketQuote{
		Date:        "2026-08-28",
		Code:        code,
		Name:        name,
		LatestPrice: price,
		PEDynamic:   numeric.Ptr(8.5),
		PB:          numeric.Ptr(0.9),
		Provider:    "eastmoney",
	}
	bars := make([]*model.HistBar, 120)
	p := price
	for i := range bars {
		if i%2 == 0 {
			p *= 1.001
		} else {
			p *= 0.999
		}
		bars[i] = &model.HistBar{
			Date:  fmt.Sprintf("2026-%02d-%02d", 1+i/28, 1+i%28),
			Code:  code,
			Close: p,
		}
	}
	f.barDao.bars[code] = bars
}

func TestAnalyzeOnePersistsResult(t *testing.T) {
	f := newAnalysisFixture()
	f.seedStock("600036", "招商银行", 40.0)
	f.divDao.events["600036"] = []*model.DividendEvent{
		{Code: "600036", ExDate: "2026-07-10", Plan: "10派20.0元", Source: "eastmoney"},
	}

	res, err := f.svc.AnalyzeOne(context.Background(), "600036")
	if err != nil {
		t.Fatalf("AnalyzeOne: %v", err)
	}
	if res.Code != "600036" || res.Date != "2026-08-28" {
		t.Fatalf("key = (%s, %s)", res.Code, res.Date)
	}
	if res.ROE != 16.0 || res.Growth != 12.0 {
		t.Fatalf("financials = (%v, %v)", res.ROE, res.Growth)
	}
	// 2.0 per share at price 40 is a 5% yield: top dividend band
	if res.DivScore != 30 {
		t.Fatalf("DivScore = %v, want 30", res.DivScore)
	}
	// PE 8.5 and PB 0.9 both sit in the cheapest valuation bands
	if res.ValScore != 10 {
		t.Fatalf("ValScore = %v, want 10", res.ValScore)
	}
	if res.TotalScore != res.VolScore+res.DivScore+res.GrowScore+res.ValScore {
		t.Fatalf("total %v does not sum sub-scores", res.TotalScore)
	}
	if res.Tier == "" {
		t.Fatalf("tier must always be assigned")
	}
	stored, err := f.resultDao.Get(context.Background(), "600036", "2026-08-28")
	if err != nil {
		t.Fatalf("result not persisted: %v", err)
	}
	if stored.TotalScore != res.TotalScore {
		t.Fatalf("stored total %v != returned %v", stored.TotalScore, res.TotalScore)
	}
}

func TestAnalyzeOneNoSnapshot(t *testing.T) {
	f := newAnalysisFixture()
	f.barDao.bars["000001"] = make([]*model.HistBar, 120)
	for i := range f.barDao.bars["000001"] {
		f.barDao.bars["000001"][i] = &model.HistBar{Close: 10}
	}

	_, err := f.svc.AnalyzeOne(context.Background(), "000001")
	if err == nil {
		t.Fatalf("expected failure without a snapshot row")
	}
	if got := categorize(err); got != failNoMarketData {
		t.Fatalf("category = %s, want %s", got, failNoMarketData)
	}
}

func TestAnalyzeAllCountsFailuresByCategory(t *testing.T) {
	entries := []*model.WatchEntry{
		{Code: "600036", Name: "招商银行", Priority: true},
		{Code: "600519", Name: "贵州茅台"},
		{Code: "000858", Name: "五粮液"},
		{Code: "601398", Name: "工商银行"},
		{Code: "999999", Name: "missing"},
	}
	f := newAnalysisFixture(entries...)
	for _, e := range entries[:4] {
		f.seedStock(e.Code, e.Name, 25.0)
	}
	// 999999 has neither quote nor bars; 601398 fails at persistence
	f.resultDao.failFor["601398"] = errors.New("disk full")

	stats, err := f.svc.AnalyzeAll(context.Background())
	if err != nil {
		t.Fatalf("AnalyzeAll: %v", err)
	}
	if stats.Total != 5 {
		t.Fatalf("Total = %d, want 5", stats.Total)
	}
	if stats.Success != 3 {
		t.Fatalf("Success = %d, want 3", stats.Success)
	}
	if stats.Failed != 2 {
		t.Fatalf("Failed = %d, want 2", stats.Failed)
	}
	if stats.Failures[failNoMarketData] != 1 {
		t.Fatalf("Failures[%s] = %d, want 1", failNoMarketData, stats.Failures[failNoMarketData])
	}
	if stats.Failures[failPersist] != 1 {
		t.Fatalf("Failures[%s] = %d, want 1", failPersist, stats.Failures[failPersist])
	}
	for _, code := range []string{"600036", "600519", "000858"} {
		if _, err := f.resultDao.Get(context.Background(), code, "2026-08-28"); err != nil {
			t.Fatalf("result for %s missing: %v", code, err)
		}
	}
}

func TestAnalyzeAllEmptyWatchlist(t *testing.T) {
	f := newAnalysisFixture()
	stats, err := f.svc.AnalyzeAll(context.Background())
	if err != nil {
		t.Fatalf("AnalyzeAll: %v", err)
	}
	if stats.Total != 0 || stats.Success != 0 || stats.Failed != 0 {
		t.Fatalf("empty watchlist must be a no-op, got %+v", stats)
	}
}
