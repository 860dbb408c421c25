// Package source talks to the upstream quote providers. All of them
// are scraped or semi-public endpoints that throttle and block eager
// clients, so every fetch goes through a SessionManager that rotates
// sessions, backs off on connection failures and refreshes the
// anti-scraping `ut` token on demand.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v5"

	"github.com/grand-thief-cash/valuetrack/application/components/logging"
	"github.com/grand-thief-cash/valuetrack/application/consts"
	"github.com/grand-thief-cash/valuetrack/application/core"
	"github.com/grand-thief-cash/valuetrack/internal/config"
	bizConsts "github.com/grand-thief-cash/valuetrack/internal/consts"
)

var (
	// ErrTooManyFailures aborts the enclosing fetch once the consecutive
	// failure threshold is hit; callers return partial results instead of
	// retrying forever.
	ErrTooManyFailures = errors.New("too many consecutive upstream failures")

	utPattern = regexp.MustCompile(`ut[=:]["']?([0-9a-fA-F]{32})`)
)

// SessionManager owns the HTTP session shared by all providers.
// Session lifecycle: fresh -> active (N requests) -> rotate (cooldown,
// new cookie jar) -> active. Connection-level failures trigger an
// exponential backoff plus a session rebuild.
type SessionManager struct {
	*core.BaseComponent
	cfg config.SourceConfig

	mu        sync.Mutex
	transport http.RoundTripper
	client    *http.Client
	served    int

	utMu sync.RWMutex
	ut   string

	// sleep is a seam so tests run in milliseconds.
	sleep func(ctx context.Context, d time.Duration) error
	rnd   *rand.Rand
}

func NewSessionManager(cfg config.SourceConfig) *SessionManager {
	s := &SessionManager{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_SESSION_MANAGER, consts.COMPONENT_LOGGING),
		cfg:           cfg,
		transport:     newSessionTransport(),
		sleep:         sleepCtx,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.client = s.newClient()
	return s
}

// newSessionTransport builds the transport shared by rotated sessions.
// Proxy stays nil: an environment proxy would funnel every rotated
// session through one upstream identity.
func newSessionTransport() *http.Transport {
	return &http.Transport{
		Proxy:               nil,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// SetTransport swaps the underlying RoundTripper. Used by tests to
// inject fake upstreams; must be called before any fetch.
func (s *SessionManager) SetTransport(rt http.RoundTripper) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport = rt
	s.client = s.newClient()
}

func (s *SessionManager) newClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{Transport: s.transport, Jar: jar, Timeout: 30 * time.Second}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *SessionManager) randomBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	s.mu.Lock()
	n := s.rnd.Int63n(int64(max - min))
	s.mu.Unlock()
	return min + time.Duration(n)
}

// RandomPageDelay picks the inter-page wait. Deliberately tens of
// seconds: shorter intervals reliably trigger blocking upstream.
func (s *SessionManager) RandomPageDelay() time.Duration {
	return s.randomBetween(s.cfg.PageDelayMin, s.cfg.PageDelayMax)
}

// Wait sleeps honoring ctx cancellation.
func (s *SessionManager) Wait(ctx context.Context, d time.Duration) error {
	return s.sleep(ctx, d)
}

// currentClient hands out the client, rotating the session first once
// it has served RotateAfterRequests requests.
func (s *SessionManager) currentClient(ctx context.Context) (*http.Client, error) {
	s.mu.Lock()
	rotate := s.cfg.RotateAfterRequests > 0 && s.served >= s.cfg.RotateAfterRequests
	if !rotate {
		s.served++
		c := s.client
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	cooldown := s.randomBetween(s.cfg.CooldownMin, s.cfg.CooldownMax)
	logging.Info(ctx, fmt.Sprintf("session rotation: %d requests served, cooling down %s", s.cfg.RotateAfterRequests, cooldown))
	if err := s.sleep(ctx, cooldown); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.client.CloseIdleConnections()
	s.client = s.newClient()
	s.served = 1
	c := s.client
	s.mu.Unlock()
	return c, nil
}

// rebuild replaces the session without a cooldown; used after a
// connection-level failure where the backoff already waited.
func (s *SessionManager) rebuild() {
	s.mu.Lock()
	s.client.CloseIdleConnections()
	s.client = s.newClient()
	s.served = 0
	s.mu.Unlock()
}

func retryableStatus(code int) bool {
	return code == http.StatusForbidden ||
		code == http.StatusTooManyRequests ||
		code >= 500
}

// transientError marks a failure as retry-worthy so the retry loop can
// tell "ran out of retries" apart from a permanent upstream refusal.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Fetch GETs url with the standard browser headers, retrying transient
// failures (connection reset/timeout, 403/429/5xx) with exponential
// backoff and a session rebuild between attempts. After MaxFailures
// consecutive failures the error wraps ErrTooManyFailures.
func (s *SessionManager) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	attempt := func() ([]byte, error) {
		client, err := s.currentClient(ctx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", s.cfg.UserAgent)
		req.Header.Set("Accept", "*/*")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			s.rebuild()
			return nil, &transientError{err}
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			err := fmt.Errorf("upstream status %d for %s", resp.StatusCode, url)
			if retryableStatus(resp.StatusCode) {
				s.rebuild()
				return nil, &transientError{err}
			}
			return nil, backoff.Permanent(err)
		}
		return io.ReadAll(resp.Body)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.cfg.BackoffInitial
	exp.MaxInterval = s.cfg.BackoffMax

	maxTries := s.cfg.MaxFailures
	if maxTries <= 0 {
		maxTries = 5
	}

	body, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(uint(maxTries)))
	if err != nil {
		var te *transientError
		if errors.As(err, &te) {
			return nil, fmt.Errorf("%w: %s: %v", ErrTooManyFailures, url, te.Unwrap())
		}
		return nil, err
	}
	return body, nil
}

// UT returns the cached anti-scraping token, refreshing it on first use.
func (s *SessionManager) UT(ctx context.Context) (string, error) {
	s.utMu.RLock()
	ut := s.ut
	s.utMu.RUnlock()
	if ut != "" {
		return ut, nil
	}
	return s.RefreshUT(ctx)
}

// RefreshUT scrapes the quote-center page for the 32-hex `ut` token
// embedded in its inline scripts. Providers call it reactively when a
// request with a stale token comes back empty.
func (s *SessionManager) RefreshUT(ctx context.Context) (string, error) {
	body, err := s.Fetch(ctx, s.cfg.EastmoneyUTPage, nil)
	if err != nil {
		return "", fmt.Errorf("refresh ut: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("refresh ut: parse page: %w", err)
	}

	var token string
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if m := utPattern.FindStringSubmatch(sel.Text()); m != nil {
			token = m[1]
			return false
		}
		return true
	})
	if token == "" {
		// some revisions of the page inline the token outside <script>
		if m := utPattern.FindStringSubmatch(string(body)); m != nil {
			token = m[1]
		}
	}
	if token == "" {
		return "", fmt.Errorf("refresh ut: token not found in page")
	}

	s.utMu.Lock()
	s.ut = token
	s.utMu.Unlock()
	logging.Info(ctx, "refreshed ut token")
	return token, nil
}
