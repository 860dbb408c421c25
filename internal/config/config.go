package config

import (
	"sync"
	"time"
)

// SourceConfig controls the upstream session behaviour shared by all
// network fetchers. Delays are deliberately long: the upstreams block
// clients that page too quickly.
type SourceConfig struct {
	UserAgent string `yaml:"user_agent"`

	// Session rotation: rebuild the HTTP session after this many
	// requests, sleeping a random cooldown inside [CooldownMin, CooldownMax].
	RotateAfterRequests int           `yaml:"rotate_after_requests"`
	CooldownMin         time.Duration `yaml:"cooldown_min"`
	CooldownMax         time.Duration `yaml:"cooldown_max"`

	// Backoff on connection-level failures.
	BackoffInitial time.Duration `yaml:"backoff_initial"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
	MaxFailures    int           `yaml:"max_consecutive_failures"`

	// Quote list pagination.
	PageSize     int           `yaml:"page_size"`
	PageDelayMin time.Duration `yaml:"page_delay_min"`
	PageDelayMax time.Duration `yaml:"page_delay_max"`

	EastmoneyListURL     string `yaml:"eastmoney_list_url"`
	EastmoneyKlineURL    string `yaml:"eastmoney_kline_url"`
	EastmoneyUTPage      string `yaml:"eastmoney_ut_page"`
	EastmoneyDividendURL string `yaml:"eastmoney_dividend_url"`
	EastmoneyInfoURL     string `yaml:"eastmoney_info_url"`
	TencentQuoteURL      string `yaml:"tencent_quote_url"`
	TencentKlineURL      string `yaml:"tencent_kline_url"`
	SinaQuoteURL         string `yaml:"sina_quote_url"`
	SinaFinanceURL       string `yaml:"sina_finance_url"`

	// IndicatorProbeURLs are tried in order by the financial resolver;
	// each must contain one %s for the bare 6-digit code.
	IndicatorProbeURLs []string `yaml:"indicator_probe_urls"`
}

type FinancialConfig struct {
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	HeuristicCacheTTL time.Duration `yaml:"heuristic_cache_ttl"`
}

type AnalysisConfig struct {
	Concurrency    int           `yaml:"concurrency"`
	MinHistoryBars int           `yaml:"min_history_bars"`
	DividendWindow time.Duration `yaml:"dividend_window"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
}

type SchedulerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
	SnapshotCron string        `yaml:"snapshot_cron"`
	AnalysisCron string        `yaml:"analysis_cron"`
}

type BizConfig struct {
	Source    SourceConfig    `yaml:"source"`
	Financial FinancialConfig `yaml:"financial"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

var (
	bizOnce sync.Once
	bizCfg  *BizConfig
)

// GetBizConfig returns the process-wide biz config pointer. Pass it to
// App.SetBizConfig before Run so the biz_config yaml subtree overrides
// the defaults in place.
func GetBizConfig() *BizConfig {
	bizOnce.Do(func() {
		bizCfg = defaultBizConfig()
	})
	return bizCfg
}

func defaultBizConfig() *BizConfig {
	return &BizConfig{
		Source: SourceConfig{
			UserAgent:            "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RotateAfterRequests:  50,
			CooldownMin:          30 * time.Second,
			CooldownMax:          60 * time.Second,
			BackoffInitial:       2 * time.Second,
			BackoffMax:           2 * time.Minute,
			MaxFailures:          5,
			PageSize:             100,
			PageDelayMin:         10 * time.Second,
			PageDelayMax:         50 * time.Second,
			EastmoneyListURL:     "https://82.push2.eastmoney.com/api/qt/clist/get",
			EastmoneyKlineURL:    "https://push2his.eastmoney.com/api/qt/stock/kline/get",
			EastmoneyUTPage:      "https://quote.eastmoney.com/center/gridlist.html",
			EastmoneyDividendURL: "https://datacenter-web.eastmoney.com/api/data/v1/get",
			EastmoneyInfoURL:     "https://push2.eastmoney.com/api/qt/stock/get",
			TencentQuoteURL:      "https://qt.gtimg.cn/q=",
			TencentKlineURL:      "https://web.ifzq.gtimg.cn/appstock/app/fqkline/get",
			SinaQuoteURL:         "https://hq.sinajs.cn/list=",
			SinaFinanceURL:       "https://money.finance.sina.com.cn/corp/go.php/vFD_FinanceSummary/stockid/%s.phtml",
			IndicatorProbeURLs: []string{
				"https://datacenter-web.eastmoney.com/api/data/v1/get?reportName=RPT_DMSK_FN_MAIN&columns=ALL&filter=(SECURITY_CODE=%%22%s%%22)",
			},
		},
		Financial: FinancialConfig{
			CacheTTL:          6 * time.Hour,
			HeuristicCacheTTL: time.Hour,
		},
		Analysis: AnalysisConfig{
			Concurrency:    4,
			MinHistoryBars: 100,
			DividendWindow: 365 * 24 * time.Hour,
			FetchTimeout:   5 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			PollInterval: time.Second,
			SnapshotCron: "0 30 9 * * 1-5",
			AnalysisCron: "0 0 16 * * 1-5",
		},
	}
}
