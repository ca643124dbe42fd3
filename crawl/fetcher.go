package crawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/scrapeworks/go-scrape-catalog/config"
	"golang.org/x/time/rate"
)

// Fetcher executes GET requests under the crawl's resilience rules: a
// requests-per-interval ceiling, per-request identity rotation, retirement
// on detected blocks, and bounded retries with exponential backoff on
// transient failures. It satisfies the extract and enrich Fetcher
// interfaces.
type Fetcher struct {
	cfg     *config.Config
	pool    *IdentityPool
	limiter *rate.Limiter
	metrics *Metrics

	// transport overrides the built per-proxy transports when set.
	// Tests install an httpmock transport here.
	transport http.RoundTripper

	mu       sync.Mutex
	clients  map[string]*http.Client
	requests int
	retries  int
}

// NewFetcher builds a fetcher from cfg, drawing identities from pool.
func NewFetcher(cfg *config.Config, pool *IdentityPool, metrics *Metrics) *Fetcher {
	burst := int(cfg.RequestsPerSec)
	if burst < 1 {
		burst = 1
	}
	return &Fetcher{
		cfg:     cfg,
		pool:    pool,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst),
		metrics: metrics,
		clients: make(map[string]*http.Client),
	}
}

// TotalRequests reports how many HTTP attempts the fetcher has issued.
func (f *Fetcher) TotalRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

// TotalRetries reports how many retry attempts the fetcher has spent.
func (f *Fetcher) TotalRetries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retries
}

// Fetch GETs rawURL, retrying transient failures up to the configured
// attempt ceiling and switching identity after a detected block. It
// returns the body and status of the final attempt; the returned error is
// one of the typed crawl errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, int, error) {
	var lastErr error
	lastStatus := 0

	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			f.mu.Lock()
			f.retries++
			f.mu.Unlock()
			f.metrics.IncRetries()

			timer := time.NewTimer(f.backoff(attempt))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, lastStatus, ErrTimeout{Err: ctx.Err()}
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, lastStatus, ErrTimeout{Err: err}
		}

		body, status, err := f.attempt(ctx, rawURL)
		if err == nil {
			return body, status, nil
		}
		lastErr = err
		lastStatus = status
		f.metrics.IncError(errorTypeLabel(err))
		if !isTransient(err) {
			break
		}
		slog.Debug("fetch attempt failed",
			slog.String("url", rawURL),
			slog.Int("attempt", attempt+1),
			slog.String("category", errorTypeLabel(err)),
		)
	}
	return nil, lastStatus, lastErr
}

// attempt performs one request on a freshly acquired identity.
func (f *Fetcher) attempt(ctx context.Context, rawURL string) ([]byte, int, error) {
	f.mu.Lock()
	f.requests++
	f.mu.Unlock()

	identity := f.pool.Acquire()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	for key, value := range identity.Headers() {
		req.Header.Set(key, value)
	}
	if wantsJSON(req.URL) {
		req.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	f.metrics.IncRequest("started")
	resp, err := f.client(identity.Proxy()).Do(req)
	f.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		f.pool.ReportError(identity)
		return nil, 0, classifyError(err, 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.pool.ReportError(identity)
		return nil, resp.StatusCode, ErrConnection{Err: err}
	}

	if resp.StatusCode == http.StatusForbidden || LooksBlocked(body) {
		// Reusing a burned identity only attracts more challenges.
		f.pool.Retire(identity)
		return nil, resp.StatusCode, ErrBlocked{Err: fmt.Errorf("http status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		classified := classifyError(nil, resp.StatusCode)
		if classified == nil {
			classified = fmt.Errorf("http status %d", resp.StatusCode)
		}
		f.pool.ReportError(identity)
		return nil, resp.StatusCode, classified
	}

	return body, resp.StatusCode, nil
}

// wantsJSON reports whether a URL targets a JSON catalog endpoint rather
// than a rendered page.
func wantsJSON(u *url.URL) bool {
	if u.Query().Get("format") == "json" {
		return true
	}
	return strings.Contains(u.Path, "/api/")
}

// client returns the HTTP client bound to a proxy endpoint, building it on
// first use. Identities sharing a proxy share a client, keeping connection
// pools per exit.
func (f *Fetcher) client(proxy *url.URL) *http.Client {
	key := ""
	if proxy != nil {
		key = proxy.String()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.clients[key]; ok {
		return existing
	}

	if f.transport != nil {
		built := &http.Client{Transport: f.transport, Timeout: f.cfg.Timeout}
		f.clients[key] = built
		return built
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   f.cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy)
	}

	built := &http.Client{
		Transport: transport,
		Timeout:   f.cfg.Timeout,
	}
	f.clients[key] = built
	return built
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	delay := base * time.Duration(1<<(attempt-1))
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}
