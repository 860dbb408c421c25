package service

import (
	"context"
	"fmt"
	"time"

	"github.com/grand-thief-cash/valuetrack/application/components/logging"
	"github.com/grand-thief-cash/valuetrack/application/consts"
	"github.com/grand-thief-cash/valuetrack/application/core"
	"github.com/grand-thief-cash/valuetrack/internal/config"
	bizConsts "github.com/grand-thief-cash/valuetrack/internal/consts"
	"github.com/grand-thief-cash/valuetrack/internal/dao"
	"github.com/grand-thief-cash/valuetrack/internal/source"
)

// HistorySyncService keeps per-stock daily bars and dividend events
// fresh. Bars are full-replace: upstream re-adjusts past prices, so
// merging old and new sets silently corrupts returns.
type HistorySyncService struct {
	*core.BaseComponent
	BarDao  dao.HistBarDao         `infra:"dep:dao_hist_bar"`
	DivDao  dao.DividendDao        `infra:"dep:dao_dividend_event"`
	Session *source.SessionManager `infra:"dep:source_session_manager"`

	cfg       *config.BizConfig
	klines    []source.KlineProvider
	dividends []source.DividendProvider
	now       func() time.Time
}

func NewHistorySyncService(cfg *config.BizConfig) *HistorySyncService {
	return &HistorySyncService{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_SVC_HISTORY_SYNC, consts.COMPONENT_LOGGING),
		cfg:           cfg,
		now:           time.Now,
	}
}

// SetProviders overrides the fallback chains for tests.
func (s *HistorySyncService) SetProviders(klines []source.KlineProvider, dividends []source.DividendProvider) {
	s.klines = klines
	s.dividends = dividends
}

func (s *HistorySyncService) Start(ctx context.Context) error {
	if err := s.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if len(s.klines) == 0 {
		tencent := source.NewTencentProvider(s.Session, s.cfg.Source)
		eastmoney := source.NewEastmoneyProvider(s.Session, s.cfg.Source)
		s.klines = []source.KlineProvider{tencent, eastmoney}
		s.dividends = []source.DividendProvider{eastmoney}
	}
	return nil
}

func (s *HistorySyncService) Stop(ctx context.Context) error { return s.BaseComponent.Stop(ctx) }

// FetchHistory refreshes one stock's bars. Returns fetched=false when
// the stock already holds enough bars; that skip bounds total request
// volume across a large watchlist.
func (s *HistorySyncService) FetchHistory(ctx context.Context, code string) (bool, error) {
	minBars := s.cfg.Analysis.MinHistoryBars
	if minBars <= 0 {
		minBars = 100
	}
	cnt, err := s.BarDao.CountForCode(ctx, code)
	if err != nil {
		return false, fmt.Errorf("count bars for %s: %w", code, err)
	}
	if cnt >= int64(minBars) {
		return false, nil
	}

	var lastErr error
	for _, p := range s.klines {
		bars, err := p.FetchKlines(ctx, code, 120)
		if err != nil || len(bars) == 0 {
			if err != nil {
				lastErr = err
				logging.Warn(ctx, fmt.Sprintf("kline provider %s failed for %s: %v", p.Name(), code, err))
			}
			continue
		}
		if err := s.BarDao.ReplaceForCode(ctx, code, bars); err != nil {
			return false, fmt.Errorf("replace bars for %s: %w", code, err)
		}
		logging.Info(ctx, fmt.Sprintf("history %s refreshed: provider=%s bars=%d", code, p.Name(), len(bars)))
		return true, nil
	}
	if lastErr != nil {
		return false, fmt.Errorf("%w: %s: last error: %v", source.ErrNoProvider, code, lastErr)
	}
	return false, fmt.Errorf("%w: %s", source.ErrNoProvider, code)
}

// FetchDividends pulls distribution events inside the window ending
// now and upserts them by (code, ex_date). Descriptors stay raw.
func (s *HistorySyncService) FetchDividends(ctx context.Context, code string, window time.Duration) (int, error) {
	if window <= 0 {
		window = s.cfg.Analysis.DividendWindow
	}
	since := s.now().Add(-window).Format("2006-01-02")

	var lastErr error
	for _, p := range s.dividends {
		events, err := p.FetchDividends(ctx, code)
		if err != nil || len(events) == 0 {
			if err != nil {
				lastErr = err
				logging.Warn(ctx, fmt.Sprintf("dividend provider %s failed for %s: %v", p.Name(), code, err))
			}
			continue
		}
		kept := events[:0]
		for _, e := range events {
			if e.ExDate >= since {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			return 0, nil
		}
		n, err := s.DivDao.BatchUpsert(ctx, kept, 0)
		if err != nil {
			return 0, fmt.Errorf("upsert dividends for %s: %w", code, err)
		}
		return int(n), nil
	}
	if lastErr != nil {
		return 0, fmt.Errorf("%w: %s: last error: %v", source.ErrNoProvider, code, lastErr)
	}
	// no events is a normal outcome for many stocks
	return 0, nil
}
