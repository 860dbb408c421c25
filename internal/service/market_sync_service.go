package service

import (
	"context"
	"fmt"
	"time"

	"github.com/grand-thief-cash/valuetrack/application/components/logging"
	promc "github.com/grand-thief-cash/valuetrack/application/components/prometheus"
	"github.com/grand-thief-cash/valuetrack/application/consts"
	"github.com/grand-thief-cash/valuetrack/application/core"
	"github.com/grand-thief-cash/valuetrack/internal/config"
	bizConsts "github.com/grand-thief-cash/valuetrack/internal/consts"
	"github.com/grand-thief-cash/valuetrack/internal/dao"
	"github.com/grand-thief-cash/valuetrack/internal/model"
	"github.com/grand-thief-cash/valuetrack/internal/source"

	prom "github.com/prometheus/client_golang/prometheus"
)

// SnapshotResult summarizes one market snapshot run.
type SnapshotResult struct {
	Date     string `json:"date"`
	Provider string `json:"provider"`
	Count    int    `json:"count"`
	Pages    int    `json:"pages"`
	Partial  bool   `json:"partial"`
	Skipped  bool   `json:"skipped"`
}

// MarketSyncService pulls the daily market snapshot through the quote
// provider chain and full-replaces the date's rows.
type MarketSyncService struct {
	*core.BaseComponent
	QuoteDao dao.MarketQuoteDao     `infra:"dep:dao_market_quote"`
	WatchDao dao.WatchlistDao       `infra:"dep:dao_watchlist"`
	Session  *source.SessionManager `infra:"dep:source_session_manager"`

	cfg       *config.BizConfig
	providers []source.QuoteProvider
	now       func() time.Time

	providerTotal *prom.CounterVec
}

func NewMarketSyncService(cfg *config.BizConfig) *MarketSyncService {
	return &MarketSyncService{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_SVC_MARKET_SYNC, consts.COMPONENT_LOGGING),
		cfg:           cfg,
		now:           time.Now,
	}
}

// SetProviders overrides the fallback chain; tests inject fakes here.
func (s *MarketSyncService) SetProviders(ps ...source.QuoteProvider) { s.providers = ps }

func (s *MarketSyncService) Start(ctx context.Context) error {
	if err := s.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if len(s.providers) == 0 {
		// ordered chain: tencent batch first (cheapest), eastmoney clist
		// walk second (complete but slow), sina batch last resort
		s.providers = []source.QuoteProvider{
			source.NewTencentProvider(s.Session, s.cfg.Source),
			source.NewEastmoneyProvider(s.Session, s.cfg.Source),
			source.NewSinaProvider(s.Session, s.cfg.Source),
		}
	}
	if c := promc.C(); c != nil && s.providerTotal == nil {
		s.providerTotal = c.NewCounter("snapshot_provider_total",
			"Snapshot attempts per quote provider, by outcome.",
			[]string{"provider", "outcome"})
	}
	return nil
}

func (s *MarketSyncService) countProvider(provider, outcome string) {
	if s.providerTotal != nil {
		s.providerTotal.WithLabelValues(provider, outcome).Inc()
	}
}

func (s *MarketSyncService) Stop(ctx context.Context) error { return s.BaseComponent.Stop(ctx) }

// FetchMarketSnapshot fetches and stores today's snapshot.
// force=false is idempotent: it skips when rows already exist for the
// date. force=true deletes the date's rows and re-inserts.
func (s *MarketSyncService) FetchMarketSnapshot(ctx context.Context, force bool) (*SnapshotResult, error) {
	date := s.now().Format("2006-01-02")

	if !force {
		cnt, err := s.QuoteDao.CountForDate(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("check existing snapshot: %w", err)
		}
		if cnt > 0 {
			logging.Info(ctx, fmt.Sprintf("snapshot for %s already present (%d rows), skipping", date, cnt))
			return &SnapshotResult{Date: date, Count: int(cnt), Skipped: true}, nil
		}
	}

	universe := s.codeUniverse(ctx)

	var lastErr error
	for _, p := range s.providers {
		rows, pages, err := p.FetchQuotes(ctx, universe)
		if len(rows) == 0 {
			if err != nil {
				lastErr = err
				s.countProvider(p.Name(), "error")
				logging.Warn(ctx, fmt.Sprintf("quote provider %s failed: %v", p.Name(), err))
			}
			continue
		}

		partial := err != nil
		if partial {
			s.countProvider(p.Name(), "partial")
			logging.Warn(ctx, fmt.Sprintf("quote provider %s returned partial snapshot (%d rows): %v", p.Name(), len(rows), err))
		} else {
			s.countProvider(p.Name(), "success")
		}
		affected, derr := s.QuoteDao.ReplaceForDate(ctx, date, rows, 0)
		if derr != nil {
			return nil, fmt.Errorf("store snapshot from %s: %w", p.Name(), derr)
		}
		logging.Info(ctx, fmt.Sprintf("snapshot %s stored: provider=%s rows=%d pages=%d partial=%v", date, p.Name(), affected, pages, partial))
		return &SnapshotResult{
			Date:     date,
			Provider: p.Name(),
			Count:    len(rows),
			Pages:    pages,
			Partial:  partial,
		}, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: last error: %v", source.ErrNoProvider, lastErr)
	}
	return nil, source.ErrNoProvider
}

// codeUniverse feeds the batch providers. Empty is fine: they fail
// fast with ErrEmptyPayload and the chain falls through to the
// full-market clist walk.
func (s *MarketSyncService) codeUniverse(ctx context.Context) []string {
	priority, rest, err := s.WatchDao.CodesByPriority(ctx)
	if err != nil {
		logging.Warn(ctx, fmt.Sprintf("load watchlist universe: %v", err))
		return nil
	}
	return append(priority, rest...)
}

// GetQuote returns a code's latest stored snapshot row.
func (s *MarketSyncService) GetQuote(ctx context.Context, code string) (*model.MarketQuote, error) {
	return s.QuoteDao.GetLatest(ctx, code)
}

func (s *MarketSyncService) ListQuotes(ctx context.Context, f *model.MarketQuoteFilters, limit, offset int) ([]*model.MarketQuote, error) {
	return s.QuoteDao.ListFiltered(ctx, f, limit, offset)
}

func (s *MarketSyncService) CountQuotes(ctx context.Context, f *model.MarketQuoteFilters) (int64, error) {
	return s.QuoteDao.CountFiltered(ctx, f)
}
