package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"

	"github.com/grand-thief-cash/valuetrack/application/components/logging"
	promc "github.com/grand-thief-cash/valuetrack/application/components/prometheus"
	"github.com/grand-thief-cash/valuetrack/application/consts"
	"github.com/grand-thief-cash/valuetrack/application/core"
	"github.com/grand-thief-cash/valuetrack/internal/config"
	bizConsts "github.com/grand-thief-cash/valuetrack/internal/consts"
	"github.com/grand-thief-cash/valuetrack/internal/dao"
	"github.com/grand-thief-cash/valuetrack/internal/model"
	"github.com/grand-thief-cash/valuetrack/internal/score"

	prom "github.com/prometheus/client_golang/prometheus"
)

// failure categories for BatchStats
const (
	failNoMarketData = "no_market_data"
	failFetch        = "fetch"
	failPersist      = "persist"
)

// BatchStats summarizes one AnalyzeAll run. Failures never abort the
// batch; they are counted by category.
type BatchStats struct {
	Total    int            `json:"total"`
	Success  int            `json:"success"`
	Failed   int            `json:"failed"`
	Failures map[string]int `json:"failures"`
	Elapsed  time.Duration  `json:"elapsed"`
}

// AnalysisService runs the per-stock fetch→score pipeline, bounded by
// a weighted semaphore. Stocks have no ordering guarantee between each
// other, but each stock's own pipeline is strictly ordered.
type AnalysisService struct {
	*core.BaseComponent
	WatchDao    dao.WatchlistDao      `infra:"dep:dao_watchlist"`
	QuoteDao    dao.MarketQuoteDao    `infra:"dep:dao_market_quote"`
	BarDao      dao.HistBarDao        `infra:"dep:dao_hist_bar"`
	DivDao      dao.DividendDao       `infra:"dep:dao_dividend_event"`
	ResultDao   dao.AnalysisResultDao `infra:"dep:dao_analysis_result"`
	History     *HistorySyncService   `infra:"dep:history_sync_service"`
	Financials  *FinancialService     `infra:"dep:financial_service"`

	cfg *config.BizConfig
	now func() time.Time

	analyzedTotal *prom.CounterVec
}

func NewAnalysisService(cfg *config.BizConfig) *AnalysisService {
	return &AnalysisService{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_SVC_ANALYSIS, consts.COMPONENT_LOGGING),
		cfg:           cfg,
		now:           time.Now,
	}
}

func (s *AnalysisService) Start(ctx context.Context) error {
	if err := s.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if c := promc.C(); c != nil && s.analyzedTotal == nil {
		s.analyzedTotal = c.NewCounter("analysis_stocks_total",
			"Stocks processed by the batch analyzer, by outcome.",
			[]string{"outcome"})
	}
	return nil
}

func (s *AnalysisService) Stop(ctx context.Context) error { return s.BaseComponent.Stop(ctx) }

func (s *AnalysisService) countOutcome(outcome string) {
	if s.analyzedTotal != nil {
		s.analyzedTotal.WithLabelValues(outcome).Inc()
	}
}

// AnalyzeAll scores every watched stock. Priority entries are queued
// first; with concurrency > 1 both sets overlap in wall-clock time.
func (s *AnalysisService) AnalyzeAll(ctx context.Context) (*BatchStats, error) {
	start := s.now()
	priority, rest, err := s.WatchDao.CodesByPriority(ctx)
	if err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	codes := append(priority, rest...)

	stats := &BatchStats{Total: len(codes), Failures: make(map[string]int)}
	if len(codes) == 0 {
		return stats, nil
	}

	concurrency := int64(s.cfg.Analysis.Concurrency)
	if concurrency <= 0 {
		concurrency = 4
	}
	sem := semaphore.NewWeighted(concurrency)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, code := range codes {
		if err := sem.Acquire(ctx, 1); err != nil {
			// canceled mid-batch: report what completed so far
			break
		}
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			defer sem.Release(1)

			_, aerr := s.AnalyzeOne(ctx, code)
			mu.Lock()
			defer mu.Unlock()
			if aerr == nil {
				stats.Success++
				s.countOutcome("success")
				return
			}
			stats.Failed++
			stats.Failures[categorize(aerr)]++
			s.countOutcome(categorize(aerr))
			logging.Warn(ctx, fmt.Sprintf("analyze %s failed: %v", code, aerr))
		}(code)
	}
	wg.Wait()

	stats.Elapsed = s.now().Sub(start)
	logging.Info(ctx, fmt.Sprintf("batch analysis done: total=%d success=%d failed=%d elapsed=%s",
		stats.Total, stats.Success, stats.Failed, stats.Elapsed))
	return stats, nil
}

// pipelineError carries the failure category through the pipeline.
type pipelineError struct {
	category string
	err      error
}

func (e *pipelineError) Error() string { return e.err.Error() }
func (e *pipelineError) Unwrap() error { return e.err }

func categorize(err error) string {
	var pe *pipelineError
	if errors.As(err, &pe) {
		return pe.category
	}
	return failFetch
}

// AnalyzeOne runs one stock's strictly ordered pipeline:
// history → dividends → quote/bars/events → financials → score → upsert.
func (s *AnalysisService) AnalyzeOne(ctx context.Context, code string) (*model.AnalysisResult, error) {
	if timeout := s.cfg.Analysis.FetchTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if _, err := s.History.FetchHistory(ctx, code); err != nil {
		// stale history degrades the volatility factor but is not fatal
		logging.Warn(ctx, fmt.Sprintf("history fetch %s: %v", code, err))
	}
	if _, err := s.History.FetchDividends(ctx, code, 0); err != nil {
		logging.Warn(ctx, fmt.Sprintf("dividend fetch %s: %v", code, err))
	}

	quote, err := s.QuoteDao.GetLatest(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &pipelineError{failNoMarketData, fmt.Errorf("no snapshot row for %s", code)}
		}
		return nil, &pipelineError{failFetch, fmt.Errorf("load quote %s: %w", code, err)}
	}

	bars, err := s.BarDao.ListRecent(ctx, code, 60)
	if err != nil {
		return nil, &pipelineError{failFetch, fmt.Errorf("load bars %s: %w", code, err)}
	}
	closes60 := make([]float64, 0, len(bars))
	for _, b := range bars {
		closes60 = append(closes60, b.Close)
	}
	closes := closes60
	if len(closes) > 30 {
		closes = closes[len(closes)-30:]
	}

	now := s.now()
	since := now.AddDate(0, 0, -365).Format("2006-01-02")
	events, err := s.DivDao.ListSince(ctx, code, since)
	if err != nil {
		return nil, &pipelineError{failFetch, fmt.Errorf("load dividends %s: %w", code, err)}
	}

	roe, growth := s.Financials.GetFinancials(ctx, code)

	res := score.Score(quote, closes, events, roe, growth, now)
	vol60, _ := score.AnnualizedVolatility(closes60)

	result := &model.AnalysisResult{
		Code:         code,
		Date:         now.Format("2006-01-02"),
		Name:         quote.Name,
		LatestPrice:  quote.LatestPrice,
		PEDynamic:    quote.PEDynamic,
		PB:           quote.PB,
		Volatility:   res.AnnualVolatility,
		Volatility60: vol60,
		DivYield:     res.DividendYield,
		ROE:          roe,
		Growth:       growth,
		VolScore:     res.Sub.Volatility,
		DivScore:     res.Sub.Dividend,
		GrowScore:    res.Sub.Growth,
		ValScore:     res.Sub.Valuation,
		TotalScore:   res.Total,
		Tier:         res.Tier,
	}
	if err := s.ResultDao.Upsert(ctx, result); err != nil {
		return nil, &pipelineError{failPersist, fmt.Errorf("persist result %s: %w", code, err)}
	}
	return result, nil
}

// LatestResults exposes the most recent batch for the API layer.
func (s *AnalysisService) LatestResults(ctx context.Context, limit, offset int) ([]*model.AnalysisResult, error) {
	return s.ResultDao.LatestList(ctx, limit, offset)
}
