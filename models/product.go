// Package models defines data structures for the catalog scraper.
package models

import "time"

// ProductRecord is one canonical catalog entry after tier merging.
// Nullable fields use pointers so the sink can emit JSON null.
type ProductRecord struct {
	Title         string    `csv:"title" json:"title"`
	Brand         *string   `csv:"brand" json:"brand"`
	CurrentPrice  *float64  `csv:"current_price" json:"currentPrice"`
	OriginalPrice *float64  `csv:"original_price" json:"originalPrice"`
	Discount      *string   `csv:"discount" json:"discount"`
	Rating        *float64  `csv:"rating" json:"rating"`
	ReviewsCount  *int      `csv:"reviews_count" json:"reviewsCount"`
	Image         *string   `csv:"image" json:"image"`
	URL           string    `csv:"url" json:"url"`
	SKU           *string   `csv:"sku" json:"sku"`
	Description   *string   `csv:"description" json:"description"`
	Currency      string    `csv:"currency" json:"currency"`
	ScrapedAt     time.Time `csv:"scraped_at" json:"scrapedAt"`
}

// NeedsDetails reports whether a detail-page fetch could still fill fields.
func (p *ProductRecord) NeedsDetails() bool {
	return p.Description == nil || p.Brand == nil || p.Rating == nil || p.ReviewsCount == nil
}

// String returns a pointer to s, for optional record fields.
func String(s string) *string { return &s }

// Float returns a pointer to f, for optional record fields.
func Float(f float64) *float64 { return &f }

// Int returns a pointer to i, for optional record fields.
func Int(i int) *int { return &i }

// CrawlTask is one catalog-page fetch unit handled by the crawl workers.
type CrawlTask struct {
	URL  string
	Page int
}

// RunResult holds the overall result of a crawl run.
type RunResult struct {
	StartTime    time.Time
	EndTime      time.Time
	SavedCount   int
	PageCount    int
	RequestCount int
	RetryCount   int
	ErrorCount   int
	InvalidCount int
	FailedURLs   []string
	ErrorsByType map[string]int
}
