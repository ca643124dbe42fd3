package enrich

import (
	"context"
	"fmt"
	"testing"

	"github.com/scrapeworks/go-scrape-catalog/models"
)

type stubFetcher struct {
	body   string
	status int
	err    error
	calls  int
}

func (f *stubFetcher) Fetch(context.Context, string) ([]byte, int, error) {
	f.calls++
	if f.err != nil {
		return nil, 0, f.err
	}
	status := f.status
	if status == 0 {
		status = 200
	}
	return []byte(f.body), status, nil
}

func baseRecord() *models.ProductRecord {
	return &models.ProductRecord{
		Title: "Wireless Optical Mouse",
		URL:   "https://shop.example/en-ae/wireless-optical-mouse/p/N12345678A",
	}
}

const jsonLDPage = `<!DOCTYPE html><html><head>
<script type="application/ld+json">{
	"@context": "https://schema.org",
	"@type": "Product",
	"name": "Wireless Optical Mouse",
	"description": "A reliable 2.4GHz wireless mouse with silent clicks.",
	"brand": {"@type": "Brand", "name": "Logik"},
	"aggregateRating": {"ratingValue": "4.4", "reviewCount": "1287"}
}</script>
</head><body></body></html>`

func TestEnrichFromJSONLD(t *testing.T) {
	fetcher := &stubFetcher{body: jsonLDPage}
	e := New(fetcher, 10)

	rec, spent := e.Enrich(context.Background(), baseRecord())

	if !spent {
		t.Fatalf("enrichment should spend a detail fetch")
	}
	if rec.Description == nil || *rec.Description != "A reliable 2.4GHz wireless mouse with silent clicks." {
		t.Fatalf("description = %v", rec.Description)
	}
	if rec.Brand == nil || *rec.Brand != "Logik" {
		t.Fatalf("brand = %v, want Logik", rec.Brand)
	}
	if rec.Rating == nil || *rec.Rating != 4.4 {
		t.Fatalf("rating = %v, want 4.4", rec.Rating)
	}
	if rec.ReviewsCount == nil || *rec.ReviewsCount != 1287 {
		t.Fatalf("reviews = %v, want 1287", rec.ReviewsCount)
	}
}

func TestEnrichNeverOverwrites(t *testing.T) {
	fetcher := &stubFetcher{body: jsonLDPage}
	e := New(fetcher, 10)

	rec := baseRecord()
	rec.Brand = models.String("Original Brand")
	rec.Rating = models.Float(3.1)

	e.Enrich(context.Background(), rec)

	if *rec.Brand != "Original Brand" {
		t.Fatalf("brand overwritten to %q", *rec.Brand)
	}
	if *rec.Rating != 3.1 {
		t.Fatalf("rating overwritten to %v", *rec.Rating)
	}
	// Missing fields are still filled.
	if rec.Description == nil {
		t.Fatalf("description not filled")
	}
}

func TestEnrichFromScriptPayload(t *testing.T) {
	page := `<!DOCTYPE html><html><head>
<script>var state = {"product":{"averageRating":4.2,"ratingCount":310,
"feature_bullets":["Ergonomic shape","Silent click buttons","18-month battery"]}};</script>
</head><body></body></html>`

	e := New(&stubFetcher{body: page}, 10)
	rec, _ := e.Enrich(context.Background(), baseRecord())

	if rec.Rating == nil || *rec.Rating != 4.2 {
		t.Fatalf("rating = %v, want 4.2", rec.Rating)
	}
	if rec.ReviewsCount == nil || *rec.ReviewsCount != 310 {
		t.Fatalf("reviews = %v, want 310", rec.ReviewsCount)
	}
	want := "- Ergonomic shape\n- Silent click buttons\n- 18-month battery"
	if rec.Description == nil || *rec.Description != want {
		t.Fatalf("description = %v, want rendered bullet block", rec.Description)
	}
}

func TestEnrichFromSelectorsAndPageText(t *testing.T) {
	page := `<!DOCTYPE html><html><body>
<div id="productDescription">Reliable everyday wireless mouse for travel and office use.</div>
<a class="brand">Logik</a>
<p>Based on 2,431 ratings</p>
</body></html>`

	e := New(&stubFetcher{body: page}, 10)
	rec, _ := e.Enrich(context.Background(), baseRecord())

	if rec.Description == nil || *rec.Description != "Reliable everyday wireless mouse for travel and office use." {
		t.Fatalf("description = %v", rec.Description)
	}
	if rec.Brand == nil || *rec.Brand != "Logik" {
		t.Fatalf("brand = %v, want Logik", rec.Brand)
	}
	if rec.ReviewsCount == nil || *rec.ReviewsCount != 2431 {
		t.Fatalf("reviews = %v, want 2431 from page text", rec.ReviewsCount)
	}
}

func TestEnrichCapBoundsFetches(t *testing.T) {
	fetcher := &stubFetcher{body: jsonLDPage}
	e := New(fetcher, 1)

	first := baseRecord()
	second := baseRecord()
	second.URL = "https://shop.example/en-ae/other/p/N2"

	if _, spent := e.Enrich(context.Background(), first); !spent {
		t.Fatalf("first enrichment should spend the cap")
	}
	if _, spent := e.Enrich(context.Background(), second); spent {
		t.Fatalf("second enrichment should be refused by the cap")
	}

	if fetcher.calls != 1 {
		t.Fatalf("detail fetches = %d, want 1 (cap)", fetcher.calls)
	}
	if first.Rating == nil {
		t.Fatalf("first record not enriched")
	}
	if second.Rating != nil {
		t.Fatalf("second record enriched past the cap: rating %v", *second.Rating)
	}
	if got := e.Used(); got != 1 {
		t.Fatalf("Used() = %d, want 1", got)
	}
}

func TestEnrichSkipsCompleteRecords(t *testing.T) {
	fetcher := &stubFetcher{body: jsonLDPage}
	e := New(fetcher, 10)

	rec := baseRecord()
	rec.Description = models.String("done")
	rec.Brand = models.String("done")
	rec.Rating = models.Float(4)
	rec.ReviewsCount = models.Int(5)

	if _, spent := e.Enrich(context.Background(), rec); spent {
		t.Fatalf("complete record should not spend a fetch")
	}

	if fetcher.calls != 0 {
		t.Fatalf("fetches = %d, want 0 for complete record", fetcher.calls)
	}
}

func TestEnrichFailureLeavesRecordUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *stubFetcher
	}{
		{name: "network error", fetcher: &stubFetcher{err: fmt.Errorf("connection reset")}},
		{name: "server error", fetcher: &stubFetcher{body: "oops", status: 500}},
		{name: "not html", fetcher: &stubFetcher{body: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.fetcher, 10)
			rec, spent := e.Enrich(context.Background(), baseRecord())
			if !spent {
				t.Fatalf("failed fetch still spends the cap")
			}
			if rec == nil {
				t.Fatalf("Enrich returned nil")
			}
			if rec.Description != nil || rec.Brand != nil || rec.Rating != nil || rec.ReviewsCount != nil {
				t.Fatalf("record mutated on failure: %+v", rec)
			}
		})
	}
}
