package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/grand-thief-cash/valuetrack/internal/model"
	"github.com/grand-thief-cash/valuetrack/internal/source"
)

func newTestHistorySync(barDao *stubBarDao, divDao *stubDivDao) *HistorySyncService {
	s := NewHistorySyncService(testBizConfig())
	s.BarDao = barDao
	s.DivDao = divDao
	s.now = func() time.Time { return time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC) }
	return s
}

func syntheticBars(n int) []*model.HistBar {
	bars := make([]*model.HistBar, n)
	for i := range bars {
		bars[i] = &model.HistBar{Date: "2026-01-01", Close: 10 + float64(i)*0.1}
	}
	return bars
}

func TestFetchHistorySkipsWhenEnoughBars(t *testing.T) {
	barDao := newStubBarDao()
	barDao.bars["600036"] = syntheticBars(100)
	s := newTestHistorySync(barDao, newStubDivDao())
	p := &fakeKlineProvider{name: "tencent", bars: syntheticBars(120)}
	s.SetProviders([]source.KlineProvider{p}, nil)

	fetched, err := s.FetchHistory(context.Background(), "600036")
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if fetched {
		t.Fatalf("100 stored bars must skip the upstream fetch")
	}
	if len(barDao.bars["600036"]) != 100 {
		t.Fatalf("stored bars changed on a skip")
	}
}

func TestFetchHistoryReplacesStaleBars(t *testing.T) {
	barDao := newStubBarDao()
	barDao.bars["600036"] = syntheticBars(40)
	s := newTestHistorySync(barDao, newStubDivDao())
	p := &fakeKlineProvider{name: "tencent", bars: syntheticBars(120)}
	s.SetProviders([]source.KlineProvider{p}, nil)

	fetched, err := s.FetchHistory(context.Background(), "600036")
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if !fetched {
		t.Fatalf("40 bars is below the threshold, want a fetch")
	}
	// full replace, never a merge: adjusted prices rewrite history
	if got := len(barDao.bars["600036"]); got != 120 {
		t.Fatalf("stored bars = %d, want 120", got)
	}
}

func TestFetchHistoryFallsBackAcrossProviders(t *testing.T) {
	barDao := newStubBarDao()
	s := newTestHistorySync(barDao, newStubDivDao())
	broken := &fakeKlineProvider{name: "tencent", err: errors.New("upstream 502")}
	working := &fakeKlineProvider{name: "eastmoney", bars: syntheticBars(120)}
	s.SetProviders([]source.KlineProvider{broken, working}, nil)

	fetched, err := s.FetchHistory(context.Background(), "600036")
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if !fetched || len(barDao.bars["600036"]) != 120 {
		t.Fatalf("fallback provider result not stored")
	}
}

func TestFetchHistoryAllProvidersFail(t *testing.T) {
	s := newTestHistorySync(newStubBarDao(), newStubDivDao())
	broken := &fakeKlineProvider{name: "tencent", err: errors.New("upstream 502")}
	s.SetProviders([]source.KlineProvider{broken}, nil)

	if _, err := s.FetchHistory(context.Background(), "600036"); !errors.Is(err, source.ErrNoProvider) {
		t.Fatalf("err = %v, want ErrNoProvider", err)
	}
}

func TestFetchDividendsFiltersWindow(t *testing.T) {
	divDao := newStubDivDao()
	s := newTestHistorySync(newStubBarDao(), divDao)
	p := &fakeDividendProvider{name: "eastmoney", events: []*model.DividendEvent{
		{ExDate: "2026-07-10", Plan: "10派5.2元", Source: "eastmoney"},
		{ExDate: "2024-07-12", Plan: "10派4.8元", Source: "eastmoney"},
	}}
	s.SetProviders(nil, []source.DividendProvider{p})

	n, err := s.FetchDividends(context.Background(), "600036", 365*24*time.Hour)
	if err != nil {
		t.Fatalf("FetchDividends: %v", err)
	}
	if n != 1 {
		t.Fatalf("upserted %d events, want 1 inside the window", n)
	}
	events, _ := divDao.ListSince(context.Background(), "600036", "2000-01-01")
	if len(events) != 1 || events[0].ExDate != "2026-07-10" {
		t.Fatalf("stored events = %+v", events)
	}
}

func TestFetchDividendsNoneIsNormal(t *testing.T) {
	s := newTestHistorySync(newStubBarDao(), newStubDivDao())
	p := &fakeDividendProvider{name: "eastmoney"}
	s.SetProviders(nil, []source.DividendProvider{p})

	n, err := s.FetchDividends(context.Background(), "600036", 0)
	if err != nil {
		t.Fatalf("no dividends must not error: %v", err)
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0", n)
	}
}
