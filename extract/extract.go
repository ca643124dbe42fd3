// Package extract turns a fetched catalog page into product records by
// trying ranked data sources: backend endpoint, embedded state blob, then
// rendered markup. Fields from a higher tier always win a merge.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/scrapeworks/go-scrape-catalog/locate"
	"github.com/scrapeworks/go-scrape-catalog/models"
	"github.com/scrapeworks/go-scrape-catalog/normalize"
)

// Tier identifies which ranked source produced a page's record set.
type Tier int

const (
	TierNone Tier = iota
	TierEndpoint
	TierEmbedded
	TierMarkup
)

func (t Tier) String() string {
	switch t {
	case TierEndpoint:
		return "endpoint"
	case TierEmbedded:
		return "embedded"
	case TierMarkup:
		return "markup"
	default:
		return "none"
	}
}

// PaginationHint is what the endpoint tier learned about further pages.
// Known is false when the payload carried no usable signal.
type PaginationHint struct {
	Known   bool
	HasMore bool
}

// Page is one fetched catalog page handed to Extract.
type Page struct {
	URL    string
	Number int
	Body   []byte
}

// Result is the outcome of extracting a single catalog page.
type Result struct {
	Records []*models.ProductRecord
	Tier    Tier
	Hint    PaginationHint
	// EndpointURL is the winning endpoint candidate, kept so pagination
	// can increment its page parameter instead of re-deriving candidates.
	EndpointURL string
}

// Fetcher issues the extra GET requests the endpoint tier needs. The crawl
// package's resilient fetcher satisfies this.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, int, error)
}

// Extractor applies the tier chain to catalog pages.
type Extractor struct {
	fetcher  Fetcher
	currency string
	now      func() time.Time
}

// New builds an extractor stamping records with the given currency code.
func New(fetcher Fetcher, currency string) *Extractor {
	return &Extractor{
		fetcher:  fetcher,
		currency: currency,
		now:      time.Now,
	}
}

// Extract runs the tier chain over one catalog page. It returns an error
// only when every tier failed to produce records AND the page body could
// not be parsed; an empty record set from a well-formed page is not an
// error.
func (e *Extractor) Extract(ctx context.Context, page Page) (*Result, error) {
	base, err := url.Parse(page.URL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	endpointRecs, hint, endpointURL := e.endpointTier(ctx, page)

	doc, docErr := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if docErr != nil {
		if len(endpointRecs) > 0 {
			return e.finalize(&Result{Records: endpointRecs, Tier: TierEndpoint, Hint: hint, EndpointURL: endpointURL}, base), nil
		}
		return nil, &MalformedError{Message: fmt.Sprintf("catalog page is not parseable markup: %v", docErr)}
	}

	var embMap map[string]*models.ProductRecord
	var embRecs []*models.ProductRecord
	if len(endpointRecs) == 0 {
		embMap, embRecs = embeddedProducts(doc)
	}

	markupRecs := markupProducts(doc, base)

	res := e.merge(endpointRecs, hint, endpointURL, embMap, embRecs, markupRecs)
	return e.finalize(res, base), nil
}

func (e *Extractor) endpointTier(ctx context.Context, page Page) ([]*models.ProductRecord, PaginationHint, string) {
	for _, cand := range locate.EndpointCandidates(page.URL) {
		body, status, err := e.fetcher.Fetch(ctx, cand.URL)
		if err != nil || status >= 400 {
			slog.Debug("endpoint candidate failed",
				slog.String("kind", cand.Kind),
				slog.Int("status", status),
				slog.Any("error", err),
			)
			continue
		}
		recs, hint := parseEndpointPayload(body)
		if len(recs) > 0 {
			slog.Debug("endpoint tier matched",
				slog.String("kind", cand.Kind),
				slog.Int("products", len(recs)),
			)
			return recs, hint, cand.URL
		}
	}
	return nil, PaginationHint{}, ""
}

// merge combines tier outputs under the fixed precedence
// endpoint > embedded > markup.
func (e *Extractor) merge(endpointRecs []*models.ProductRecord, hint PaginationHint, endpointURL string, embMap map[string]*models.ProductRecord, embRecs, markupRecs []*models.ProductRecord) *Result {
	if len(endpointRecs) > 0 {
		byKey := indexRecords(markupRecs)
		for _, rec := range endpointRecs {
			if m, ok := byKey[recordKey(rec)]; ok {
				fillMissing(rec, m)
			}
		}
		return &Result{Records: endpointRecs, Tier: TierEndpoint, Hint: hint, EndpointURL: endpointURL}
	}

	if len(embMap) == 0 {
		return &Result{Records: markupRecs, Tier: markupTierOrNone(markupRecs)}
	}

	matched := make(map[string]bool, len(embMap))
	out := make([]*models.ProductRecord, 0, len(markupRecs)+len(embRecs))
	for _, rec := range markupRecs {
		key := recordKey(rec)
		if emb, ok := embMap[key]; ok {
			matched[key] = true
			merged := *emb
			fillMissing(&merged, rec)
			out = append(out, &merged)
			continue
		}
		out = append(out, rec)
	}
	for _, rec := range embRecs {
		if !matched[recordKey(rec)] {
			out = append(out, rec)
		}
	}
	return &Result{Records: out, Tier: TierEmbedded}
}

func markupTierOrNone(recs []*models.ProductRecord) Tier {
	if len(recs) == 0 {
		return TierNone
	}
	return TierMarkup
}

// finalize resolves relative URLs, stamps currency and scrape time, and
// drops entries carrying neither title nor url.
func (e *Extractor) finalize(res *Result, base *url.URL) *Result {
	kept := res.Records[:0]
	for _, rec := range res.Records {
		if rec == nil {
			continue
		}
		if rec.Title == "" && rec.URL == "" {
			continue
		}
		rec.URL = resolveURL(base, rec.URL)
		if rec.Image != nil {
			if img := resolveURL(base, *rec.Image); img != "" {
				rec.Image = &img
			} else {
				rec.Image = nil
			}
		}
		if rec.SKU == nil {
			if sku := normalize.SKUFromURL(rec.URL); sku != "" {
				rec.SKU = &sku
			}
		}
		if rec.Currency == "" {
			rec.Currency = e.currency
		}
		if rec.ScrapedAt.IsZero() {
			rec.ScrapedAt = e.now()
		}
		kept = append(kept, rec)
	}
	res.Records = kept
	return res
}

// recordKey correlates one product across tiers: SKU when known, URL path
// otherwise.
func recordKey(rec *models.ProductRecord) string {
	if rec.SKU != nil && *rec.SKU != "" {
		return *rec.SKU
	}
	if u, err := url.Parse(rec.URL); err == nil && u.Path != "" {
		return u.Path
	}
	return rec.URL
}

func indexRecords(recs []*models.ProductRecord) map[string]*models.ProductRecord {
	out := make(map[string]*models.ProductRecord, len(recs))
	for _, rec := range recs {
		key := recordKey(rec)
		if key == "" {
			continue
		}
		if _, ok := out[key]; !ok {
			out[key] = rec
		}
	}
	return out
}

// fillMissing copies fields from src into dst where dst has none. It never
// overwrites a present value.
func fillMissing(dst, src *models.ProductRecord) {
	if src == nil {
		return
	}
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.URL == "" {
		dst.URL = src.URL
	}
	if dst.Brand == nil {
		dst.Brand = src.Brand
	}
	if dst.CurrentPrice == nil {
		dst.CurrentPrice = src.CurrentPrice
	}
	if dst.OriginalPrice == nil {
		dst.OriginalPrice = src.OriginalPrice
	}
	if dst.Discount == nil {
		dst.Discount = src.Discount
	}
	if dst.Rating == nil {
		dst.Rating = src.Rating
	}
	if dst.ReviewsCount == nil {
		dst.ReviewsCount = src.ReviewsCount
	}
	if dst.Image == nil {
		dst.Image = src.Image
	}
	if dst.SKU == nil {
		dst.SKU = src.SKU
	}
	if dst.Description == nil {
		dst.Description = src.Description
	}
}

func resolveURL(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}

// MalformedError marks a payload or page no tier could make sense of.
type MalformedError struct {
	Message string
}

func (e *MalformedError) Error() string {
	return "malformed response: " + e.Message
}
