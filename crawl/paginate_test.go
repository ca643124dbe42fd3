package crawl

import (
	"strings"
	"testing"

	"github.com/scrapeworks/go-scrape-catalog/extract"
)

func TestNextTaskStopsWhenProductsExhausted(t *testing.T) {
	budget := NewBudget(5, 100)
	budget.CommitSaved(5)

	outcome := PageOutcome{
		URL:   "https://shop.example.com/en-ae/electronics",
		Page:  1,
		Tier:  extract.TierMarkup,
		Hint:  extract.PaginationHint{Known: true, HasMore: true},
		Saved: 5,
	}
	if next := NextTask(outcome, budget); next != nil {
		t.Fatalf("exhausted product budget should stop pagination, got %+v", next)
	}
}

func TestNextTaskStopsOnEmptyPage(t *testing.T) {
	budget := NewBudget(0, 100)

	outcome := PageOutcome{
		URL:   "https://shop.example.com/en-ae/electronics",
		Page:  3,
		Tier:  extract.TierMarkup,
		Hint:  extract.PaginationHint{Known: true, HasMore: true},
		Saved: 0,
	}
	if next := NextTask(outcome, budget); next != nil {
		t.Fatalf("a page yielding no records should stop pagination")
	}
}

func TestNextTaskHonoursEndpointHint(t *testing.T) {
	budget := NewBudget(0, 100)

	outcome := PageOutcome{
		URL:         "https://shop.example.com/en-ae/electronics",
		Page:        2,
		Tier:        extract.TierEndpoint,
		Hint:        extract.PaginationHint{Known: true, HasMore: true},
		EndpointURL: "https://shop.example.com/en-ae/electronics?format=json&page=2",
		Saved:       20,
	}
	next := NextTask(outcome, budget)
	if next == nil {
		t.Fatalf("endpoint with more pages should continue")
	}
	if next.Page != 3 {
		t.Fatalf("page = %d, want 3", next.Page)
	}
	if !strings.Contains(next.URL, "page=3") {
		t.Fatalf("next URL should target page 3, got %s", next.URL)
	}
}

func TestNextTaskStopsWhenEndpointReportsLastPage(t *testing.T) {
	budget := NewBudget(0, 100)

	outcome := PageOutcome{
		URL:         "https://shop.example.com/en-ae/electronics",
		Page:        4,
		Tier:        extract.TierEndpoint,
		Hint:        extract.PaginationHint{Known: true, HasMore: false},
		EndpointURL: "https://shop.example.com/en-ae/electronics?format=json&page=4",
		Saved:       12,
	}
	if next := NextTask(outcome, budget); next != nil {
		t.Fatalf("endpoint reporting the last page should stop pagination")
	}
}

func TestNextTaskFollowsMarkupNextLink(t *testing.T) {
	budget := NewBudget(0, 100)

	body := `<html><body>
		<div class="productContainer"><a href="/en-ae/p/mouse-ABC12345">Mouse</a></div>
		<ul class="pagination"><li class="next"><a href="/en-ae/electronics?page=2">Next</a></li></ul>
	</body></html>`

	outcome := PageOutcome{
		URL:   "https://shop.example.com/en-ae/electronics",
		Page:  1,
		Tier:  extract.TierMarkup,
		Body:  []byte(body),
		Saved: 10,
	}
	next := NextTask(outcome, budget)
	if next == nil {
		t.Fatalf("markup next link should continue pagination")
	}
	if next.URL != "https://shop.example.com/en-ae/electronics?page=2" {
		t.Fatalf("next URL = %s", next.URL)
	}
	if next.Page != 2 {
		t.Fatalf("page = %d, want 2", next.Page)
	}
}

func TestNextTaskIgnoresProductLinks(t *testing.T) {
	budget := NewBudget(0, 100)

	// The only anchor resembling a next link points at a product page.
	// Pagination must fall through to a synthesized page URL instead.
	body := `<html><body>
		<ul class="pagination"><li class="next"><a href="/en-ae/p/keyboard-XYZ98765">Keyboard</a></li></ul>
	</body></html>`

	outcome := PageOutcome{
		URL:   "https://shop.example.com/en-ae/electronics",
		Page:  1,
		Tier:  extract.TierMarkup,
		Body:  []byte(body),
		Saved: 10,
	}
	next := NextTask(outcome, budget)
	if next == nil {
		t.Fatalf("page with products should continue")
	}
	if strings.Contains(next.URL, "/p/") {
		t.Fatalf("product detail links must not drive pagination, got %s", next.URL)
	}
	if !strings.Contains(next.URL, "page=2") {
		t.Fatalf("next URL should be the synthesized page 2, got %s", next.URL)
	}
}

func TestNextTaskSynthesizesPageWithoutNextLink(t *testing.T) {
	budget := NewBudget(0, 100)

	// Markup pages carry no pagination hint; products but no next link
	// must still advance via the page parameter.
	outcome := PageOutcome{
		URL:   "https://shop.example.com/en-ae/electronics",
		Page:  1,
		Tier:  extract.TierMarkup,
		Body:  []byte("<html><body>no pagination markup</body></html>"),
		Saved: 10,
	}
	next := NextTask(outcome, budget)
	if next == nil {
		t.Fatalf("page with products and no next link should synthesize one")
	}
	if next.Page != 2 {
		t.Fatalf("page = %d, want 2", next.Page)
	}
	if !strings.Contains(next.URL, "page=2") || !strings.Contains(next.URL, "limit=50") {
		t.Fatalf("synthesized URL should set page and size params, got %s", next.URL)
	}
}

func TestNextTaskSynthesizesForEmbeddedTier(t *testing.T) {
	budget := NewBudget(0, 100)

	outcome := PageOutcome{
		URL:   "https://shop.example.com/en-ae/electronics?limit=24",
		Page:  3,
		Tier:  extract.TierEmbedded,
		Body:  []byte("<html><body>no pagination markup</body></html>"),
		Saved: 24,
	}
	next := NextTask(outcome, budget)
	if next == nil {
		t.Fatalf("embedded tier should also synthesize a next page")
	}
	if !strings.Contains(next.URL, "page=4") {
		t.Fatalf("synthesized URL should target page 4, got %s", next.URL)
	}
}
