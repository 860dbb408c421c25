package service

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/grand-thief-cash/valuetrack/application/core"
	"github.com/grand-thief-cash/valuetrack/internal/config"
	"github.com/grand-thief-cash/valuetrack/internal/model"
)

func testBizConfig() *config.BizConfig {
	cfg := &config.BizConfig{}
	cfg.Analysis.Concurrency = 2
	cfg.Analysis.MinHistoryBars = 100
	cfg.Financial.CacheTTL = 0
	cfg.Financial.HeuristicCacheTTL = 0
	return cfg
}

type stubQuoteDao struct {
	*core.BaseComponent
	mu       sync.Mutex
	counts   map[string]int64
	replaced map[string][]*model.MarketQuote
	latest   map[string]*model.MarketQuote
}

func newStubQuoteDao() *stubQuoteDao {
	return &stubQuoteDao{
		BaseComponent: core.NewBaseComponent("stub_quote_dao"),
		counts:        make(map[string]int64),
		replaced:      make(map[string][]*model.MarketQuote),
		latest:        make(map[string]*model.MarketQuote),
	}
}

func (s *stubQuoteDao) ReplaceForDate(_ context.Context, date string, rows []*model.MarketQuote, _ int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaced[date] = rows
	s.counts[date] = int64(len(rows))
	return int64(len(rows)), nil
}

func (s *stubQuoteDao) CountForDate(_ context.Context, date string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[date], nil
}

func (s *stubQuoteDao) GetLatest(_ context.Context, code string) (*model.MarketQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.latest[code]; ok {
		return q, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubQuoteDao) ListFiltered(context.Context, *model.MarketQuoteFilters, int, int) ([]*model.MarketQuote, error) {
	return nil, nil
}

func (s *stubQuoteDao) CountFiltered(context.Context, *model.MarketQuoteFilters) (int64, error) {
	return 0, nil
}

type stubWatchDao struct {
	*core.BaseComponent
	entries []*model.WatchEntry
}

func newStubWatchDao(entries ...*model.WatchEntry) *stubWatchDao {
	return &stubWatchDao{BaseComponent: core.NewBaseComponent("stub_watch_dao"), entries: entries}
}

func (s *stubWatchDao) Upsert(_ context.Context, e *model.WatchEntry) error {
	s.entries = append(s.entries, e)
	return nil
}

func (s *stubWatchDao) Remove(context.Context, string) (int64, error) { return 0, nil }

func (s *stubWatchDao) List(context.Context) ([]*model.WatchEntry, error) { return s.entries, nil }

func (s *stubWatchDao) CodesByPriority(context.Context) ([]string, []string, error) {
	var priority, rest []string
	for _, e := range s.entries {
		if e.Priority {
			priority = append(priority, e.Code)
		} else {
			rest = append(rest, e.Code)
		}
	}
	return priority, rest, nil
}

type stubBarDao struct {
	*core.BaseComponent
	mu   sync.Mutex
	bars map[string][]*model.HistBar
}

func newStubBarDao() *stubBarDao {
	return &stubBarDao{BaseComponent: core.NewBaseComponent("stub_bar_dao"), bars: make(map[string][]*model.HistBar)}
}

func (s *stubBarDao) ReplaceForCode(_ context.Context, code string, bars []*model.HistBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[code] = bars
	return nil
}

func (s *stubBarDao) CountForCode(_ context.Context, code string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.bars[code])), nil
}

func (s *stubBarDao) ListRecent(_ context.Context, code string, n int) ([]*model.HistBar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bars := s.bars[code]
	if n > 0 && len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

func (s *stubBarDao) ListRange(_ context.Context, code, _, _ string, _, _ int) ([]*model.HistBar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bars[code], nil
}

type stubDivDao struct {
	*core.BaseComponent
	mu     sync.Mutex
	events map[string][]*model.DividendEvent
}

func newStubDivDao() *stubDivDao {
	return &stubDivDao{BaseComponent: core.NewBaseComponent("stub_div_dao"), events: make(map[string][]*model.DividendEvent)}
}

func (s *stubDivDao) BatchUpsert(_ context.Context, events []*model.DividendEvent, _ int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range events {
		dup := false
		for _, old := range s.events[e.Code] {
			if old.ExDate == e.ExDate {
				old.Plan = e.Plan
				dup = true
				break
			}
		}
		if !dup {
			s.events[e.Code] = append(s.events[e.Code], e)
		}
		n++
	}
	return n, nil
}

func (s *stubDivDao) ListSince(_ context.Context, code, since string) ([]*model.DividendEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.DividendEvent
	for _, e := range s.events[code] {
		if e.ExDate >= since {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *stubDivDao) DeleteForCode(_ context.Context, code string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.events[code]))
	delete(s.events, code)
	return n, nil
}

type stubResultDao struct {
	*core.BaseComponent
	mu      sync.Mutex
	results map[string]*model.AnalysisResult
	failFor map[string]error
}

func newStubResultDao() *stubResultDao {
	return &stubResultDao{
		BaseComponent: core.NewBaseComponent("stub_result_dao"),
		results:       make(map[string]*model.AnalysisResult),
		failFor:       make(map[string]error),
	}
}

func (s *stubResultDao) Upsert(_ context.Context, r *model.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failFor[r.Code]; err != nil {
		return err
	}
	s.results[r.Code+"|"+r.Date] = r
	return nil
}

func (s *stubResultDao) Get(_ context.Context, code, date string) (*model.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.results[code+"|"+date]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubResultDao) LatestDate(context.Context) (string, error) { return "", nil }

func (s *stubResultDao) LatestList(context.Context, int, int) ([]*model.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.AnalysisResult
	for _, r := range s.results {
		out = append(out, r)
	}
	return out, nil
}

type fakeQuoteProvider struct {
	name  string
	rows  []*model.MarketQuote
	pages int
	err   error
	calls int
}

func (f *fakeQuoteProvider) Name() string { return f.name }

func (f *fakeQuoteProvider) FetchQuotes(context.Context, []string) ([]*model.MarketQuote, int, error) {
	f.calls++
	return f.rows, f.pages, f.err
}

type fakeKlineProvider struct {
	name string
	bars []*model.HistBar
	err  error
}

func (f *fakeKlineProvider) Name() string { return f.name }

func (f *fakeKlineProvider) FetchKlines(_ context.Context, code string, _ int) ([]*model.HistBar, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*model.HistBar, len(f.bars))
	for i, b := range f.bars {
		c := *b
		c.Code = code
		out[i] = &c
	}
	return out, nil
}

type fakeDividendProvider struct {
	name   string
	events []*model.DividendEvent
	err    error
}

func (f *fakeDividendProvider) Name() string { return f.name }

func (f *fakeDividendProvider) FetchDividends(_ context.Context, code string) ([]*model.DividendEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*model.DividendEvent, len(f.events))
	for i, e := range f.events {
		c := *e
		c.Code = code
		out[i] = &c
	}
	return out, nil
}
