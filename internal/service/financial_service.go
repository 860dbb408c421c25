package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/grand-thief-cash/valuetrack/application/components/http_client"
	"github.com/grand-thief-cash/valuetrack/application/components/logging"
	redisc "github.com/grand-thief-cash/valuetrack/application/components/redis"
	"github.com/grand-thief-cash/valuetrack/application/consts"
	"github.com/grand-thief-cash/valuetrack/application/core"
	"github.com/grand-thief-cash/valuetrack/internal/config"
	bizConsts "github.com/grand-thief-cash/valuetrack/internal/consts"
	"github.com/grand-thief-cash/valuetrack/internal/dao"
	"github.com/grand-thief-cash/valuetrack/internal/numeric"
	"github.com/grand-thief-cash/valuetrack/internal/source"
)

// Candidate gjson paths per metric, tried in order. Upstreams rename
// fields between revisions; probing a list beats chasing them.
var (
	baseInfoROEPaths    = []string{"data.f173"}
	baseInfoGrowthPaths = []string{"data.f185", "data.f184"}

	probeROEPaths = []string{
		"result.data.0.WEIGHTAVG_ROE",
		"result.data.0.ROE_WEIGHT",
		"result.data.0.ROEJQ",
	}
	probeGrowthPaths = []string{
		"result.data.0.NETPROFIT_YOY",
		"result.data.0.PARENT_NETPROFIT_TB",
		"result.data.0.NETPROFIT_GROWTHRATE",
	}

	// row labels probed on the sina finance summary page
	sinaROELabels    = []string{"净资产收益率(%)", "净资产收益率", "ROE(%)", "ROE"}
	sinaGrowthLabels = []string{"净利润同比(%)", "净利润增长率(%)", "净利润同比增长", "净利润增长率"}
)

// quality tiers, best first
const (
	tierBaseInfo  = "base_info"
	tierReport    = "report"
	tierProbe     = "probe"
	tierHeuristic = "heuristic"
)

type finEntry struct {
	ROE     float64   `json:"roe"`
	Growth  float64   `json:"growth"`
	Tier    string    `json:"tier"`
	Expires time.Time `json:"expires"`
}

type finStep struct {
	tier string
	fn   func(ctx context.Context, code string) (roe, growth float64, ok bool)
}

// FinancialService resolves (ROE, profit growth) per stock through a
// best-effort cascade. It never returns an error: a stock with no
// resolvable metrics scores zero on the growth factor, it does not
// abort the batch.
type FinancialService struct {
	*core.BaseComponent
	BarDao  dao.HistBarDao          `infra:"dep:dao_hist_bar"`
	Session *source.SessionManager  `infra:"dep:source_session_manager"`
	Redis   *redisc.RedisComponent  `infra:"dep:redis?"`

	cfg  *config.BizConfig
	em   *source.EastmoneyProvider
	sina *source.SinaProvider

	mu    sync.RWMutex
	cache map[string]finEntry

	steps []finStep
	now   func() time.Time
}

func NewFinancialService(cfg *config.BizConfig) *FinancialService {
	return &FinancialService{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_SVC_FINANCIAL, consts.COMPONENT_LOGGING),
		cfg:           cfg,
		cache:         make(map[string]finEntry),
		now:           time.Now,
	}
}

func (s *FinancialService) Start(ctx context.Context) error {
	if err := s.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if s.em == nil {
		s.em = source.NewEastmoneyProvider(s.Session, s.cfg.Source)
		s.sina = source.NewSinaProvider(s.Session, s.cfg.Source)
	}
	if len(s.steps) == 0 {
		s.steps = []finStep{
			{tierBaseInfo, s.fromBaseInfo},
			{tierReport, s.fromSinaReport},
			{tierProbe, s.fromIndicatorProbe},
			{tierHeuristic, s.fromHeuristic},
		}
	}
	return nil
}

func (s *FinancialService) Stop(ctx context.Context) error { return s.BaseComponent.Stop(ctx) }

// GetFinancials resolves (roe, growth) for one code; (0, 0) when every
// step comes up empty.
func (s *FinancialService) GetFinancials(ctx context.Context, code string) (float64, float64) {
	if e, ok := s.cached(ctx, code); ok {
		return e.ROE, e.Growth
	}

	for _, step := range s.steps {
		roe, growth, ok := step.fn(ctx, code)
		if !ok || (roe == 0 && growth == 0) {
			continue
		}
		s.store(ctx, code, finEntry{ROE: roe, Growth: growth, Tier: step.tier})
		return roe, growth
	}

	// negative cache so a dead stock doesn't re-trigger the cascade
	s.store(ctx, code, finEntry{Tier: tierHeuristic})
	return 0, 0
}

func (s *FinancialService) cached(ctx context.Context, code string) (finEntry, bool) {
	s.mu.RLock()
	e, ok := s.cache[code]
	s.mu.RUnlock()
	if ok && s.now().Before(e.Expires) {
		return e, true
	}

	if s.Redis != nil {
		if raw, err := s.Redis.Client().Get(ctx, finCacheKey(code)).Bytes(); err == nil {
			var re finEntry
			if json.Unmarshal(raw, &re) == nil && s.now().Before(re.Expires) {
				s.mu.Lock()
				s.cache[code] = re
				s.mu.Unlock()
				return re, true
			}
		}
	}
	return finEntry{}, false
}

func (s *FinancialService) store(ctx context.Context, code string, e finEntry) {
	ttl := s.cfg.Financial.CacheTTL
	if e.Tier == tierHeuristic {
		// heuristic numbers go stale with every price move; keep them briefly
		ttl = s.cfg.Financial.HeuristicCacheTTL
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	e.Expires = s.now().Add(ttl)

	s.mu.Lock()
	s.cache[code] = e
	s.mu.Unlock()

	if s.Redis != nil {
		if raw, err := json.Marshal(e); err == nil {
			if err := s.Redis.Client().Set(ctx, finCacheKey(code), raw, ttl).Err(); err != nil {
				logging.Warn(ctx, fmt.Sprintf("financial cache redis set %s: %v", code, err))
			}
		}
	}
}

func finCacheKey(code string) string { return "valuetrack:fin:" + code }

func firstNumeric(body []byte, paths []string) (float64, bool) {
	for _, p := range paths {
		if v := gjson.GetBytes(body, p); v.Exists() {
			if f := numeric.ToFloat(v.Value()); f != nil && *f != 0 {
				return *f, true
			}
		}
	}
	return 0, false
}

// step 1: eastmoney per-stock base info.
func (s *FinancialService) fromBaseInfo(ctx context.Context, code string) (float64, float64, bool) {
	body, err := s.em.FetchStockInfo(ctx, code)
	if err != nil {
		logging.Warn(ctx, fmt.Sprintf("financials base-info %s: %v", code, err))
		return 0, 0, false
	}
	roe, okR := firstNumeric(body, baseInfoROEPaths)
	growth, okG := firstNumeric(body, baseInfoGrowthPaths)
	return roe, growth, okR || okG
}

// step 2: sina finance summary page, scraped with goquery. Row labels
// are probed against candidate lists since the page layout drifts.
func (s *FinancialService) fromSinaReport(ctx context.Context, code string) (float64, float64, bool) {
	html, err := s.sina.FetchFinancePage(ctx, code)
	if err != nil {
		logging.Warn(ctx, fmt.Sprintf("financials sina report %s: %v", code, err))
		return 0, 0, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html)))
	if err != nil {
		return 0, 0, false
	}

	lookup := func(labels []string) (float64, bool) {
		var out float64
		found := false
		doc.Find("td").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			text := strings.TrimSpace(sel.Text())
			for _, label := range labels {
				if text != label {
					continue
				}
				next := strings.TrimSpace(sel.Next().Text())
				if f := numeric.ToFloat(next); f != nil && *f != 0 {
					out = *f
					found = true
					return false
				}
			}
			return true
		})
		return out, found
	}

	roe, okR := lookup(sinaROELabels)
	growth, okG := lookup(sinaGrowthLabels)
	return roe, growth, okR || okG
}

// probeJSON fetches one plain JSON probe endpoint, preferring the
// instrumented pool; the rotating session covers boots without the
// http_clients component.
func (s *FinancialService) probeJSON(ctx context.Context, url string) ([]byte, error) {
	if cli := http_client.Default(); cli != nil {
		var body json.RawMessage
		if _, err := cli.Get(ctx, url, nil, nil, &body); err != nil {
			return nil, err
		}
		if len(body) == 0 {
			return nil, source.ErrEmptyPayload
		}
		return body, nil
	}
	raw, err := s.Session.Fetch(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return source.DecodeJSON(raw)
}

// step 3: capability probe over the configured indicator endpoints.
func (s *FinancialService) fromIndicatorProbe(ctx context.Context, code string) (float64, float64, bool) {
	for _, tmpl := range s.cfg.Source.IndicatorProbeURLs {
		body, err := s.probeJSON(ctx, fmt.Sprintf(tmpl, code))
		if err != nil {
			continue
		}
		roe, okR := firstNumeric(body, probeROEPaths)
		growth, okG := firstNumeric(body, probeGrowthPaths)
		if okR || okG {
			return roe, growth, true
		}
	}
	return 0, 0, false
}

// heuristicROEFraction picks the damping per board. Growth boards
// (ChiNext 30x, STAR 688) trade at higher multiples, so the same price
// appreciation implies less underlying return on equity there.
func heuristicROEFraction(code string) float64 {
	if strings.HasPrefix(code, "30") || strings.HasPrefix(code, "688") {
		return 0.6
	}
	return 0.8
}

// step 4: local heuristic from stored bars. growth proxies the
// annualized price return clamped to ±50; ROE proxies a damped
// fraction of |growth| capped to a plausible 0..30 band.
func (s *FinancialService) fromHeuristic(ctx context.Context, code string) (float64, float64, bool) {
	bars, err := s.BarDao.ListRecent(ctx, code, 252)
	if err != nil || len(bars) < 2 {
		return 0, 0, false
	}
	first, last := bars[0].Close, bars[len(bars)-1].Close
	if first <= 0 || last <= 0 {
		return 0, 0, false
	}
	n := float64(len(bars) - 1)
	growth := (math.Pow(last/first, 252/n) - 1) * 100
	growth = math.Max(-50, math.Min(50, growth))
	roe := math.Max(0, math.Min(30, math.Abs(growth)*heuristicROEFraction(code)))
	return roe, growth, true
}
