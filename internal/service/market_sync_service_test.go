package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/grand-thief-cash/valuetrack/internal/model"
	"github.com/grand-thief-cash/valuetrack/internal/source"
)

func newTestMarketSync(quoteDao *stubQuoteDao, watchDao *stubWatchDao, providers ...source.QuoteProvider) *MarketSyncService {
	s := NewMarketSyncService(testBizConfig())
	s.QuoteDao = quoteDao
	s.WatchDao = watchDao
	s.SetProviders(providers...)
	s.now = func() time.Time { return time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestSnapshotFallbackChain(t *testing.T) {
	p1 := &fakeQuoteProvider{name: "p1", err: errors.New("blocked")}
	p2 := &fakeQuoteProvider{name: "p2", rows: []*model.MarketQuote{{Code: "600036", LatestPrice: 33}}, pages: 1}
	p3 := &fakeQuoteProvider{name: "p3", rows: []*model.MarketQuote{{Code: "999999"}}}

	quoteDao := newStubQuoteDao()
	s := newTestMarketSync(quoteDao, newStubWatchDao(), p1, p2, p3)

	res, err := s.FetchMarketSnapshot(context.Background(), false)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if res.Provider != "p2" || res.Count != 1 || res.Partial {
		t.Fatalf("result = %+v, want provider p2", res)
	}
	// first non-empty wins: the third provider must not be consulted
	if p3.calls != 0 {
		t.Fatalf("p3 called %d times", p3.calls)
	}
	if rows := quoteDao.replaced["2026-08-28"]; len(rows) != 1 || rows[0].Code != "600036" {
		t.Fatalf("stored rows = %+v", rows)
	}
}

func TestSnapshotSkipsWhenPresent(t *testing.T) {
	p1 := &fakeQuoteProvider{name: "p1", rows: []*model.MarketQuote{{Code: "600036"}}}
	quoteDao := newStubQuoteDao()
	quoteDao.counts["2026-08-28"] = 42

	s := newTestMarketSync(quoteDao, newStubWatchDao(), p1)
	res, err := s.FetchMarketSnapshot(context.Background(), false)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !res.Skipped || res.Count != 42 {
		t.Fatalf("result = %+v, want skip", res)
	}
	if p1.calls != 0 {
		t.Fatalf("provider consulted despite existing snapshot")
	}
}

func TestSnapshotForceReplaces(t *testing.T) {
	p1 := &fakeQuoteProvider{name: "p1", rows: []*model.MarketQuote{{Code: "600036"}, {Code: "000002"}}}
	quoteDao := newStubQuoteDao()
	quoteDao.counts["2026-08-28"] = 42

	s := newTestMarketSync(quoteDao, newStubWatchDao(), p1)
	res, err := s.FetchMarketSnapshot(context.Background(), true)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if res.Skipped || res.Count != 2 {
		t.Fatalf("result = %+v, want forced refetch", res)
	}
	if got := quoteDao.counts["2026-08-28"]; got != 2 {
		t.Fatalf("rows after replace = %d, want 2 (full replace, no merge)", got)
	}
}

func TestSnapshotAllProvidersEmpty(t *testing.T) {
	p1 := &fakeQuoteProvider{name: "p1", err: source.ErrEmptyPayload}
	p2 := &fakeQuoteProvider{name: "p2", err: errors.New("reset")}

	s := newTestMarketSync(newStubQuoteDao(), newStubWatchDao(), p1, p2)
	_, err := s.FetchMarketSnapshot(context.Background(), false)
	if !errors.Is(err, source.ErrNoProvider) {
		t.Fatalf("err = %v, want ErrNoProvider", err)
	}
}

func TestSnapshotPartialStored(t *testing.T) {
	p1 := &fakeQuoteProvider{
		name:  "p1",
		rows:  []*model.MarketQuote{{Code: "600036"}},
		pages: 3,
		err:   source.ErrTooManyFailures,
	}
	quoteDao := newStubQuoteDao()
	s := newTestMarketSync(quoteDao, newStubWatchDao(), p1)

	res, err := s.FetchMarketSnapshot(context.Background(), false)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !res.Partial || res.Count != 1 {
		t.Fatalf("result = %+v, want partial stored", res)
	}
}
