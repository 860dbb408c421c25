package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/grand-thief-cash/valuetrack/internal/config"
)

func TestShouldFire(t *testing.T) {
	ts := time.Date(2025, 10, 14, 12, 34, 56, 0, time.UTC)
	if !shouldFire(ts, "56 34 12 * * *") {
		t.Fatalf("expected fire")
	}
	if shouldFire(ts, "55 34 12 * * *") {
		t.Fatalf("should not fire")
	}
}

func TestShouldFireWeekdayRange(t *testing.T) {
	// 2026-08-28 is a Friday (weekday 5)
	friday := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)
	if !shouldFire(friday, "0 30 9 * * 1-5") {
		t.Fatalf("friday must match 1-5")
	}
	saturday := friday.AddDate(0, 0, 1)
	if shouldFire(saturday, "0 30 9 * * 1-5") {
		t.Fatalf("saturday must not match 1-5")
	}
}

func TestShouldFireStepAndList(t *testing.T) {
	ts := time.Date(2025, 10, 14, 12, 15, 0, 0, time.UTC)
	if !shouldFire(ts, "0 */15 * * * *") {
		t.Fatalf("minute 15 matches */15")
	}
	if !shouldFire(ts, "0 0,15,30,45 12 * * *") {
		t.Fatalf("minute 15 matches list")
	}
	if shouldFire(ts, "0 15 12 * *") {
		t.Fatalf("five fields is malformed")
	}
}

func TestScanFiresMatchingJobOnce(t *testing.T) {
	e := NewEngine(config.SchedulerConfig{Enabled: true})

	var mu sync.Mutex
	fired := map[string]int{}
	record := func(name string) jobFunc {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			fired[name]++
			return nil
		}
	}
	e.jobs = []cronJob{
		{name: "snapshot", expr: "0 30 9 * * 1-5", run: record("snapshot")},
		{name: "analysis", expr: "0 0 16 * * 1-5", run: record("analysis")},
	}

	at := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)
	e.scan(context.Background(), at)
	// second poll inside the same second must not re-fire
	e.scan(context.Background(), at.Add(300*time.Millisecond))
	e.wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if fired["snapshot"] != 1 {
		t.Fatalf("snapshot fired %d times, want 1", fired["snapshot"])
	}
	if fired["analysis"] != 0 {
		t.Fatalf("analysis fired outside its schedule")
	}
}
