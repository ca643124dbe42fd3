package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scrapeworks/go-scrape-catalog/config"
	"github.com/scrapeworks/go-scrape-catalog/enrich"
	"github.com/scrapeworks/go-scrape-catalog/extract"
	"github.com/scrapeworks/go-scrape-catalog/models"
	"github.com/scrapeworks/go-scrape-catalog/normalize"
	"github.com/scrapeworks/go-scrape-catalog/pipeline"
)

// Crawler drives the catalog crawl: a worker pool consumes page tasks,
// each task is fetched, extracted, enriched, and committed against the
// shared budget, and every processed page may enqueue at most one
// follow-up page.
type Crawler struct {
	cfg       *config.Config
	pool      *IdentityPool
	fetcher   *Fetcher
	extractor *extract.Extractor
	enricher  *enrich.Enricher
	budget    *Budget
	Metrics   *Metrics

	requestLogEvery int64
	errorCount      int64
	invalidCount    int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int
}

// New builds a crawler from cfg. Configuration errors are fatal and
// reported before any network activity.
func New(cfg *config.Config) (*Crawler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	metrics := NewMetrics()
	pool := NewIdentityPool(cfg.ProxyURLs, cfg.IdentityMaxUses, cfg.IdentityErrorBudget, metrics)
	fetcher := NewFetcher(cfg, pool, metrics)

	c := &Crawler{
		cfg:             cfg,
		pool:            pool,
		fetcher:         fetcher,
		extractor:       extract.New(fetcher, cfg.Currency),
		budget:          NewBudget(cfg.MaxProducts, cfg.MaxPages),
		Metrics:         metrics,
		requestLogEvery: 50,
		errorsByType:    make(map[string]int),
	}
	if cfg.FetchDetails {
		c.enricher = enrich.New(fetcher, cfg.DetailFetchCap)
	}
	return c, nil
}

// Run crawls every configured catalog URL and streams the winning records
// through the pipeline. It returns once all pages have been processed, the
// budget is exhausted, or the context is cancelled.
func (c *Crawler) Run(ctx context.Context, p *pipeline.Pipeline) (*models.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	// Every task ever enqueued holds a page reservation, so the channel
	// never needs more capacity than the page ceiling.
	tasks := make(chan *models.CrawlTask, c.cfg.MaxPages)
	var pending sync.WaitGroup

	seeded := 0
	for _, raw := range c.cfg.StartURLs {
		if !c.budget.ReservePage() {
			break
		}
		pending.Add(1)
		tasks <- &models.CrawlTask{URL: raw, Page: 1}
		seeded++
	}
	if seeded == 0 {
		return nil, fmt.Errorf("page budget admits no start URL")
	}

	go func() {
		pending.Wait()
		close(tasks)
	}()

	workers := c.cfg.ClampedParallelism()
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				c.process(ctx, task, p, tasks, &pending)
			}
		}()
	}
	wg.Wait()

	saved, pages := c.budget.Snapshot()
	result := &models.RunResult{
		StartTime:    start,
		EndTime:      time.Now(),
		SavedCount:   saved,
		PageCount:    pages,
		RequestCount: c.fetcher.TotalRequests(),
		RetryCount:   c.fetcher.TotalRetries(),
		ErrorCount:   int(atomic.LoadInt64(&c.errorCount)),
		InvalidCount: int(atomic.LoadInt64(&c.invalidCount)),
		FailedURLs:   c.snapshotFailedURLs(),
		ErrorsByType: c.snapshotErrors(),
	}
	return result, nil
}

func (c *Crawler) process(ctx context.Context, task *models.CrawlTask, p *pipeline.Pipeline, tasks chan<- *models.CrawlTask, pending *sync.WaitGroup) {
	defer pending.Done()

	if ctx.Err() != nil {
		return
	}

	body, _, err := c.fetcher.Fetch(ctx, task.URL)
	if err != nil {
		c.recordFailure(task.URL, err)
		return
	}

	res, err := c.extractor.Extract(ctx, extract.Page{URL: task.URL, Number: task.Page, Body: body})
	if err != nil {
		c.recordFailure(task.URL, err)
		return
	}
	c.Metrics.IncPages()

	valid := make([]*models.ProductRecord, 0, len(res.Records))
	for _, rec := range res.Records {
		normalize.Record(rec)
		if err := normalize.ValidateRecord(rec); err != nil {
			atomic.AddInt64(&c.invalidCount, 1)
			c.Metrics.IncInvalid(1)
			slog.Debug("dropping invalid record",
				slog.String("url", task.URL),
				slog.Any("error", err),
			)
			continue
		}
		valid = append(valid, rec)
	}

	allowed := c.budget.CommitSaved(len(valid))
	truncated := len(valid) - allowed
	if truncated > 0 {
		c.Metrics.IncTruncated(truncated)
		slog.Debug("truncating page to product budget",
			slog.String("url", task.URL),
			slog.Int("kept", allowed),
			slog.Int("dropped", truncated),
		)
	}
	valid = valid[:allowed]

	if c.enricher != nil {
		for _, rec := range valid {
			if _, spent := c.enricher.Enrich(ctx, rec); spent {
				c.Metrics.IncDetailFetch()
			}
		}
	}

	if len(valid) > 0 {
		c.Metrics.IncItems(len(valid))
		if err := p.Process(valid); err != nil && !errors.Is(err, pipeline.ErrPipelineClosed) {
			slog.Error("pipeline process error", slog.Any("error", err))
		}
	}

	next := NextTask(PageOutcome{
		URL:         task.URL,
		Page:        task.Page,
		Tier:        res.Tier,
		Hint:        res.Hint,
		EndpointURL: res.EndpointURL,
		Body:        body,
		Saved:       len(valid),
	}, c.budget)
	if next == nil || ctx.Err() != nil {
		return
	}
	if !c.budget.ReservePage() {
		return
	}
	pending.Add(1)
	tasks <- next

	if total := int64(c.fetcher.TotalRequests()); total%c.requestLogEvery == 0 {
		_, pages := c.budget.Snapshot()
		slog.Debug("crawl progress",
			slog.Int64("requests", total),
			slog.Int("pages", pages),
			slog.String("url", next.URL),
		)
	}
}

func (c *Crawler) recordFailure(url string, err error) {
	atomic.AddInt64(&c.errorCount, 1)
	category := errorTypeLabel(err)

	c.mu.Lock()
	c.errorsByType[category]++
	c.failedURLs = append(c.failedURLs, url)
	c.mu.Unlock()

	slog.Error("page failed",
		slog.String("url", url),
		slog.String("category", category),
		slog.Any("error", err),
	)
}

func (c *Crawler) snapshotFailedURLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.failedURLs))
	copy(out, c.failedURLs)
	return out
}

func (c *Crawler) snapshotErrors() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.errorsByType))
	for k, v := range c.errorsByType {
		out[k] = v
	}
	return out
}
