package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/grand-thief-cash/valuetrack/internal/model"
)

func TestFinancialsCascadeFirstUsableWins(t *testing.T) {
	s := NewFinancialService(testBizConfig())
	s.cfg.Financial.CacheTTL = time.Hour

	var calls []string
	s.steps = []finStep{
		{tierBaseInfo, func(context.Context, string) (float64, float64, bool) {
			calls = append(calls, "base")
			return 0, 0, false
		}},
		{tierReport, func(context.Context, string) (float64, float64, bool) {
			calls = append(calls, "report")
			return 15.2, 8.1, true
		}},
		{tierProbe, func(context.Context, string) (float64, float64, bool) {
			calls = append(calls, "probe")
			return 99, 99, true
		}},
	}

	roe, growth := s.GetFinancials(context.Background(), "600036")
	if roe != 15.2 || growth != 8.1 {
		t.Fatalf("got (%v, %v)", roe, growth)
	}
	if len(calls) != 2 || calls[1] != "report" {
		t.Fatalf("calls = %v, probe must not run", calls)
	}
}

func TestFinancialsCachedSingleCall(t *testing.T) {
	s := NewFinancialService(testBizConfig())
	s.cfg.Financial.CacheTTL = time.Hour

	var calls int
	s.steps = []finStep{
		{tierBaseInfo, func(context.Context, string) (float64, float64, bool) {
			calls++
			return 12.0, 5.0, true
		}},
	}

	for i := 0; i < 3; i++ {
		if roe, _ := s.GetFinancials(context.Background(), "600036"); roe != 12.0 {
			t.Fatalf("roe = %v", roe)
		}
	}
	if calls != 1 {
		t.Fatalf("cascade ran %d times, want 1 (cached)", calls)
	}
}

func TestFinancialsNeverErrorsDefaultsZero(t *testing.T) {
	s := NewFinancialService(testBizConfig())
	s.cfg.Financial.HeuristicCacheTTL = time.Minute
	s.steps = []finStep{
		{tierBaseInfo, func(context.Context, string) (float64, float64, bool) { return 0, 0, false }},
	}
	roe, growth := s.GetFinancials(context.Background(), "000000")
	if roe != 0 || growth != 0 {
		t.Fatalf("got (%v, %v), want zeros", roe, growth)
	}
}

func TestHeuristicClamps(t *testing.T) {
	s := NewFinancialService(testBizConfig())
	barDao := newStubBarDao()
	s.BarDao = barDao

	// 60 bars doubling over the window: annualized growth blows past the clamp
	bars := make([]*model.HistBar, 60)
	p := 10.0
	for i := range bars {
		bars[i] = &model.HistBar{Close: p}
		p *= 1.012
	}
	barDao.bars["600036"] = bars

	roe, growth, ok := s.fromHeuristic(context.Background(), "600036")
	if !ok {
		t.Fatalf("expected heuristic result")
	}
	if growth != 50 {
		t.Fatalf("growth = %v, want clamp at 50", growth)
	}
	if math.Abs(roe-30) > 1e-9 {
		t.Fatalf("roe = %v, want cap at 30", roe)
	}
}

func TestHeuristicROEFractionPerBoard(t *testing.T) {
	s := NewFinancialService(testBizConfig())
	barDao := newStubBarDao()
	s.BarDao = barDao

	// moderate appreciation so neither the growth clamp nor the ROE cap bites
	bars := make([]*model.HistBar, 60)
	p := 10.0
	for i := range bars {
		bars[i] = &model.HistBar{Close: p}
		p *= 1.0005
	}
	barDao.bars["600036"] = bars // SH main board
	barDao.bars["300750"] = bars // ChiNext
	barDao.bars["688111"] = bars // STAR

	roeMain, growth, ok := s.fromHeuristic(context.Background(), "600036")
	if !ok {
		t.Fatalf("expected heuristic result")
	}
	if math.Abs(roeMain-math.Abs(growth)*0.8) > 1e-9 {
		t.Fatalf("main board roe = %v, want %v", roeMain, math.Abs(growth)*0.8)
	}
	for _, code := range []string{"300750", "688111"} {
		roe, g, ok := s.fromHeuristic(context.Background(), code)
		if !ok {
			t.Fatalf("expected heuristic result for %s", code)
		}
		if g != growth {
			t.Fatalf("growth differs by board: %v vs %v", g, growth)
		}
		if math.Abs(roe-math.Abs(growth)*0.6) > 1e-9 {
			t.Fatalf("%s roe = %v, want %v", code, roe, math.Abs(growth)*0.6)
		}
	}
}

func TestHeuristicInsufficientBars(t *testing.T) {
	s := NewFinancialService(testBizConfig())
	barDao := newStubBarDao()
	barDao.bars["600036"] = []*model.HistBar{{Close: 10}}
	s.BarDao = barDao

	if _, _, ok := s.fromHeuristic(context.Background(), "600036"); ok {
		t.Fatalf("one bar must not produce a heuristic")
	}
}
