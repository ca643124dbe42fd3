package crawl

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the crawl.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	PagesTotal        prometheus.Counter
	ItemsScrapedTotal prometheus.Counter
	ItemsTruncated    prometheus.Counter
	ItemsInvalid      prometheus.Counter
	DetailFetches     prometheus.Counter
	RetriesTotal      prometheus.Counter
	IdentitiesRetired prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the crawler.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for crawl requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_pages_total",
			Help: "Total catalog pages processed.",
		},
	)
	itemsScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_items_scraped_total",
			Help: "Total product records sent to the pipeline.",
		},
	)
	itemsTruncated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_items_truncated_total",
			Help: "Records dropped because the product budget was exhausted.",
		},
	)
	itemsInvalid := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_items_invalid_total",
			Help: "Records dropped by validation before the sink.",
		},
	)
	detailFetches := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_detail_fetches_total",
			Help: "Product detail pages fetched for enrichment.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	identitiesRetired := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_identities_retired_total",
			Help: "Network identities removed from rotation.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of crawl errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, pages, itemsScraped, itemsTruncated, itemsInvalid, detailFetches, retries, identitiesRetired, errorsTotal)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		PagesTotal:        pages,
		ItemsScrapedTotal: itemsScraped,
		ItemsTruncated:    itemsTruncated,
		ItemsInvalid:      itemsInvalid,
		DetailFetches:     detailFetches,
		RetriesTotal:      retries,
		IdentitiesRetired: identitiesRetired,
		ErrorsTotal:       errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPages increments the processed pages counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// IncItems adds to the scraped items counter.
func (m *Metrics) IncItems(n int) {
	if m == nil {
		return
	}
	m.ItemsScrapedTotal.Add(float64(n))
}

// IncTruncated adds to the truncated items counter.
func (m *Metrics) IncTruncated(n int) {
	if m == nil {
		return
	}
	m.ItemsTruncated.Add(float64(n))
}

// IncInvalid adds to the validation-dropped items counter.
func (m *Metrics) IncInvalid(n int) {
	if m == nil {
		return
	}
	m.ItemsInvalid.Add(float64(n))
}

// IncDetailFetch increments the enrichment fetch counter.
func (m *Metrics) IncDetailFetch() {
	if m == nil {
		return
	}
	m.DetailFetches.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncIdentityRetired increments the retired identities counter.
func (m *Metrics) IncIdentityRetired() {
	if m == nil {
		return
	}
	m.IdentitiesRetired.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
