package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grand-thief-cash/valuetrack/internal/config"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func textResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func testSourceConfig() config.SourceConfig {
	return config.SourceConfig{
		UserAgent:           "test-agent",
		RotateAfterRequests: 0,
		CooldownMin:         time.Millisecond,
		CooldownMax:         2 * time.Millisecond,
		BackoffInitial:      time.Millisecond,
		BackoffMax:          2 * time.Millisecond,
		MaxFailures:         3,
		PageDelayMin:        0,
		PageDelayMax:        0,
		EastmoneyUTPage:     "http://fake.test/center",
	}
}

func newTestSession(cfg config.SourceConfig, rt http.RoundTripper) *SessionManager {
	s := NewSessionManager(cfg)
	s.SetTransport(rt)
	return s
}

func TestSessionTransportNoProxy(t *testing.T) {
	s := NewSessionManager(testSourceConfig())
	tr, ok := s.transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport = %T, want *http.Transport", s.transport)
	}
	if tr.Proxy != nil {
		t.Fatalf("session transport must not pick up environment proxies")
	}
}

func TestFetchSuccess(t *testing.T) {
	s := newTestSession(testSourceConfig(), roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if got := r.Header.Get("User-Agent"); got != "test-agent" {
			t.Fatalf("user agent = %q", got)
		}
		return textResponse(200, "hello"), nil
	}))
	body, err := s.Fetch(context.Background(), "http://fake.test/x", nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "hello" {
		t.Fatalf("body = %q", body)
	}
}

func TestFetchRetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	s := newTestSession(testSourceConfig(), roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return textResponse(403, "blocked"), nil
		}
		return textResponse(200, "ok"), nil
	}))
	body, err := s.Fetch(context.Background(), "http://fake.test/x", nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "ok" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("body=%q calls=%d", body, calls)
	}
}

func TestFetchTooManyFailures(t *testing.T) {
	var calls int32
	s := newTestSession(testSourceConfig(), roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("connection reset")
	}))
	_, err := s.Fetch(context.Background(), "http://fake.test/x", nil)
	if !errors.Is(err, ErrTooManyFailures) {
		t.Fatalf("err = %v, want ErrTooManyFailures", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}

func TestFetchPermanentStatusNotRetried(t *testing.T) {
	var calls int32
	s := newTestSession(testSourceConfig(), roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return textResponse(404, "gone"), nil
	}))
	_, err := s.Fetch(context.Background(), "http://fake.test/x", nil)
	if err == nil || errors.Is(err, ErrTooManyFailures) {
		t.Fatalf("err = %v, want permanent non-retry error", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
}

func TestSessionRotationCooldown(t *testing.T) {
	cfg := testSourceConfig()
	cfg.RotateAfterRequests = 2
	s := newTestSession(cfg, roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return textResponse(200, "ok"), nil
	}))

	var cooldowns []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		cooldowns = append(cooldowns, d)
		return nil
	}

	for i := 0; i < 3; i++ {
		if _, err := s.Fetch(context.Background(), "http://fake.test/x", nil); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if len(cooldowns) != 1 {
		t.Fatalf("cooldowns = %d, want 1 rotation after 2 requests", len(cooldowns))
	}
	if cooldowns[0] < cfg.CooldownMin || cooldowns[0] > cfg.CooldownMax {
		t.Fatalf("cooldown %v outside [%v, %v]", cooldowns[0], cfg.CooldownMin, cfg.CooldownMax)
	}
}

func TestFetchCtxCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newTestSession(testSourceConfig(), roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return nil, ctx.Err()
	}))
	_, err := s.Fetch(ctx, "http://fake.test/x", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRefreshUT(t *testing.T) {
	page := `<html><head><script>var quote_config = {ut:"fa5fd1943c7b386f172d6893dbfba10b"};</script></head><body></body></html>`
	s := newTestSession(testSourceConfig(), roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return textResponse(200, page), nil
	}))
	ut, err := s.RefreshUT(context.Background())
	if err != nil {
		t.Fatalf("refresh ut: %v", err)
	}
	if ut != "fa5fd1943c7b386f172d6893dbfba10b" {
		t.Fatalf("ut = %q", ut)
	}
	// cached afterwards
	got, err := s.UT(context.Background())
	if err != nil || got != ut {
		t.Fatalf("cached ut = %q err=%v", got, err)
	}
}
