// Package enrich fills descriptive fields a listing-level record is
// missing by fetching the product's own page. Enrichment is best-effort:
// any network or parse failure leaves the input record unchanged.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/scrapeworks/go-scrape-catalog/models"
	"github.com/scrapeworks/go-scrape-catalog/normalize"
)

// Fetcher issues the product-page GET. The crawl package's resilient
// fetcher satisfies this.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, int, error)
}

// Enricher resolves missing fields via, in order: structured product
// metadata (JSON-LD), embedded script payloads, markup selectors, and
// full-page text patterns. The first non-null result per field wins; a
// present field is never overwritten.
type Enricher struct {
	fetcher Fetcher

	mu   sync.Mutex
	cap  int
	used int
}

// New builds an enricher bounded to cap detail fetches per run; cap <= 0
// disables enrichment entirely.
func New(fetcher Fetcher, cap int) *Enricher {
	return &Enricher{fetcher: fetcher, cap: cap}
}

// Used reports how many detail fetches have been spent.
func (e *Enricher) Used() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.used
}

// reserve claims one detail fetch from the cap.
func (e *Enricher) reserve() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.used >= e.cap {
		return false
	}
	e.used++
	return true
}

// Enrich fetches rec's product page and fills its missing descriptive
// fields. It returns rec in all cases; on any failure the record comes
// back unchanged. The second return reports whether a detail fetch was
// spent from the cap.
func (e *Enricher) Enrich(ctx context.Context, rec *models.ProductRecord) (*models.ProductRecord, bool) {
	if rec == nil || rec.URL == "" || !rec.NeedsDetails() {
		return rec, false
	}
	if !e.reserve() {
		return rec, false
	}

	body, status, err := e.fetcher.Fetch(ctx, rec.URL)
	if err != nil || status >= 400 {
		slog.Debug("enrichment fetch failed",
			slog.String("url", rec.URL),
			slog.Int("status", status),
			slog.Any("error", err),
		)
		return rec, true
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		slog.Debug("enrichment parse failed", slog.String("url", rec.URL), slog.Any("error", err))
		return rec, true
	}

	found := detailsFromJSONLD(doc)
	found.merge(detailsFromScripts(doc))
	found.merge(detailsFromSelectors(doc))
	found.merge(detailsFromPageText(doc))
	found.apply(rec)
	return rec, true
}

// details carries the candidate values one resolution layer produced.
type details struct {
	description  *string
	brand        *string
	rating       *float64
	reviewsCount *int
}

// merge fills d's gaps from a lower-priority layer.
func (d *details) merge(other details) {
	if d.description == nil {
		d.description = other.description
	}
	if d.brand == nil {
		d.brand = other.brand
	}
	if d.rating == nil {
		d.rating = other.rating
	}
	if d.reviewsCount == nil {
		d.reviewsCount = other.reviewsCount
	}
}

// apply writes resolved values onto the record, never overwriting a
// present field.
func (d *details) apply(rec *models.ProductRecord) {
	if rec.Description == nil && d.description != nil {
		rec.Description = d.description
	}
	if rec.Brand == nil && d.brand != nil {
		rec.Brand = d.brand
	}
	if rec.Rating == nil && d.rating != nil {
		rec.Rating = d.rating
	}
	if rec.ReviewsCount == nil && d.reviewsCount != nil {
		rec.ReviewsCount = d.reviewsCount
	}
}

// detailsFromJSONLD reads type-tagged product metadata: description, brand
// name, and aggregate rating.
func detailsFromJSONLD(doc *goquery.Document) details {
	var d details
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var root any
		if err := json.Unmarshal([]byte(s.Text()), &root); err != nil {
			return true
		}
		product := findProductNode(root)
		if product == nil {
			return true
		}

		if desc, ok := product["description"].(string); ok {
			if desc = strings.TrimSpace(desc); desc != "" {
				d.description = &desc
			}
		}
		switch brand := product["brand"].(type) {
		case string:
			if b := normalize.CleanText(brand); b != "" {
				d.brand = &b
			}
		case map[string]any:
			if name, ok := brand["name"].(string); ok {
				if b := normalize.CleanText(name); b != "" {
					d.brand = &b
				}
			}
		}
		if agg, ok := product["aggregateRating"].(map[string]any); ok {
			if v := jsonNumber(agg["ratingValue"]); v != nil && *v >= 1 && *v <= 5 {
				d.rating = v
			}
			count := jsonNumber(agg["reviewCount"])
			if count == nil {
				count = jsonNumber(agg["ratingCount"])
			}
			if count != nil && *count >= 0 {
				n := int(*count)
				d.reviewsCount = &n
			}
		}
		return false
	})
	return d
}

// findProductNode locates a @type Product object at the root, inside a
// @graph array, or as an array element.
func findProductNode(root any) map[string]any {
	switch v := root.(type) {
	case map[string]any:
		if t, ok := v["@type"].(string); ok && strings.EqualFold(t, "Product") {
			return v
		}
		if graph, ok := v["@graph"].([]any); ok {
			return findProductNodeInArray(graph)
		}
	case []any:
		return findProductNodeInArray(v)
	}
	return nil
}

func findProductNodeInArray(arr []any) map[string]any {
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			if t, ok := m["@type"].(string); ok && strings.EqualFold(t, "Product") {
				return m
			}
		}
	}
	return nil
}

func jsonNumber(v any) *float64 {
	switch n := v.(type) {
	case float64:
		f := n
		return &f
	case string:
		return normalize.CleanPrice(n)
	}
	return nil
}
