package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grand-thief-cash/valuetrack/application/components/logging"
	"github.com/grand-thief-cash/valuetrack/application/consts"
	"github.com/grand-thief-cash/valuetrack/application/core"
	"github.com/grand-thief-cash/valuetrack/internal/config"
	bizConsts "github.com/grand-thief-cash/valuetrack/internal/consts"
	"github.com/grand-thief-cash/valuetrack/internal/service"
)

type jobFunc func(ctx context.Context) error

type cronJob struct {
	name string
	expr string
	run  jobFunc
}

// Engine fires the daily snapshot and batch analysis jobs on their
// cron expressions. Jobs run detached from the poll loop so a slow
// batch never delays the next scan.
type Engine struct {
	*core.BaseComponent
	MarketSync *service.MarketSyncService `infra:"dep:market_sync_service"`
	Analysis   *service.AnalysisService   `infra:"dep:analysis_service"`

	cfg       config.SchedulerConfig
	jobs      []cronJob
	lastFired map[string]time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewEngine(cfg config.SchedulerConfig) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Engine{
		cfg:           cfg,
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_SCHEDULER, consts.COMPONENT_LOGGING),
		lastFired:     make(map[string]time.Time),
	}
}

func (e *Engine) Start(ctx context.Context) error {
	if e.IsActive() {
		return nil
	}
	if err := e.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if !e.cfg.Enabled {
		logging.Info(ctx, "scheduler disabled by config")
		return nil
	}
	if len(e.jobs) == 0 {
		e.jobs = []cronJob{
			{name: "market_snapshot", expr: e.cfg.SnapshotCron, run: e.runSnapshot},
			{name: "batch_analysis", expr: e.cfg.AnalysisCron, run: e.runAnalysis},
		}
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case now := <-ticker.C:
				e.scan(loopCtx, now)
			}
		}
	}()
	return nil
}

func (e *Engine) Stop(ctx context.Context) error {
	if !e.IsActive() {
		return nil
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	return e.BaseComponent.Stop(ctx)
}

func (e *Engine) runSnapshot(ctx context.Context) error {
	res, err := e.MarketSync.FetchMarketSnapshot(ctx, false)
	if err != nil {
		return err
	}
	logging.Info(ctx, fmt.Sprintf("scheduled snapshot: date=%s provider=%s rows=%d skipped=%v",
		res.Date, res.Provider, res.Count, res.Skipped))
	return nil
}

func (e *Engine) runAnalysis(ctx context.Context) error {
	stats, err := e.Analysis.AnalyzeAll(ctx)
	if err != nil {
		return err
	}
	logging.Info(ctx, fmt.Sprintf("scheduled analysis: total=%d success=%d failed=%d",
		stats.Total, stats.Success, stats.Failed))
	return nil
}

// scan fires every job whose expression matches the current second.
// lastFired guards against double-firing when the poll interval is
// shorter than a second.
func (e *Engine) scan(ctx context.Context, now time.Time) {
	sec := now.Truncate(time.Second)
	for _, j := range e.jobs {
		if !shouldFire(sec, j.expr) {
			continue
		}
		if last, ok := e.lastFired[j.name]; ok && last.Equal(sec) {
			continue
		}
		e.lastFired[j.name] = sec
		logging.Info(ctx, fmt.Sprintf("job %s firing at %s", j.name, sec.Format(time.RFC3339)))
		job := j
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := job.run(ctx); err != nil {
				logging.Warn(ctx, fmt.Sprintf("job %s failed: %v", job.name, err))
			}
		}()
	}
}

// Simplified 6-field cron matcher (second minute hour day month weekday)
// supporting:
// - "*" wildcard
// - exact numbers (e.g. 5)
// - comma lists (e.g. 0,15,30,45)
// - step syntax "*/N" (value % N == 0)
// - ranges (e.g. 1-5)
// Note: stepped ranges like 1-10/2 not yet supported.
func shouldFire(t time.Time, expr string) bool {
	fields := splitFields(expr)
	if len(fields) != 6 {
		return false
	}
	vals := []int{t.Second(), t.Minute(), t.Hour(), t.Day(), int(t.Month()), int(t.Weekday())}
	for i, f := range fields {
		if f == "*" {
			continue
		}
		matched := false
		for _, part := range splitComma(f) {
			part = strings.TrimSpace(part)
			if part == "*" {
				matched = true
				break
			}
			if len(part) > 2 && part[:2] == "*/" { // step pattern
				step := toInt(part[2:])
				if step > 0 && vals[i]%step == 0 {
					matched = true
					break
				}
				continue
			}
			if lo, hi, ok := parseRange(part); ok {
				if vals[i] >= lo && vals[i] <= hi {
					matched = true
					break
				}
				continue
			}
			if toInt(part) == vals[i] {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func parseRange(s string) (lo, hi int, ok bool) {
	idx := strings.IndexByte(s, '-')
	if idx <= 0 || idx == len(s)-1 {
		return 0, 0, false
	}
	lo, hi = toInt(s[:idx]), toInt(s[idx+1:])
	if lo < 0 || hi < 0 || lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}

func splitFields(s string) []string {
	var r []string
	cur := ""
	for _, c := range s {
		if c == ' ' {
			if cur != "" {
				r = append(r, cur)
				cur = ""
			}
			continue
		}
		cur += string(c)
	}
	if cur != "" {
		r = append(r, cur)
	}
	return r
}

func splitComma(s string) []string {
	var r []string
	cur := ""
	for _, c := range s {
		if c == ',' {
			if cur != "" {
				r = append(r, cur)
				cur = ""
			}
			continue
		}
		cur += string(c)
	}
	if cur != "" {
		r = append(r, cur)
	}
	return r
}

func toInt(s string) int {
	n := 0
	if s == "" {
		return -1
	}
	for _, c := range s {
		if c >= '0' && c <= '9' {
			n = n*10 + int(c-'0')
		} else {
			return -1
		}
	}
	return n
}
