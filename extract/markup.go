package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/scrapeworks/go-scrape-catalog/models"
	"github.com/scrapeworks/go-scrape-catalog/normalize"
)

// fieldSelector is one targeted strategy for a field: a CSS selector plus
// the attribute to read, or the element text when Attr is empty.
type fieldSelector struct {
	Selector string
	Attr     string
}

// containerSelectors locate product containers on a catalog page, tried in
// order; the first selector matching at least one element wins for the
// whole page.
var containerSelectors = []string{
	`[data-qa="product-block"]`,
	`div.productContainer`,
	`li.product-item`,
	`div[data-sku]`,
	`div.product-card`,
	`article.product`,
}

// Per-field strategies, most specific first. The fuzzier full-text pattern
// fallback for rating and reviews lives in markupProduct.
var (
	titleSelectors = []fieldSelector{
		{Selector: `[data-qa="product-name"]`},
		{Selector: `h2.product-title`},
		{Selector: `.product-name`},
		{Selector: `h3 a`, Attr: "title"},
		{Selector: `h3 a`},
	}
	imageSelectors = []fieldSelector{
		{Selector: `img`, Attr: "data-src"},
		{Selector: `img`, Attr: "src"},
	}
	priceSelectors = []fieldSelector{
		{Selector: `[data-qa="product-price"]`},
		{Selector: `.price .now`},
		{Selector: `.product-price`},
		{Selector: `span.price`},
	}
	originalPriceSelectors = []fieldSelector{
		{Selector: `[data-qa="product-was-price"]`},
		{Selector: `.price .was`},
		{Selector: `del`},
		{Selector: `.old-price`},
	}
	ratingSelectors = []fieldSelector{
		{Selector: `[data-qa="product-rating"]`},
		{Selector: `.rating .value`},
		{Selector: `.stars`, Attr: "aria-label"},
		{Selector: `.stars`, Attr: "data-rating"},
	}
	reviewsSelectors = []fieldSelector{
		{Selector: `[data-qa="product-reviews"]`},
		{Selector: `.rating .count`},
		{Selector: `.reviews-count`},
	}
	brandSelectors = []fieldSelector{
		{Selector: `[data-qa="product-brand"]`},
		{Selector: `.product-brand`},
		{Selector: `.brand`},
	}
	discountSelectors = []fieldSelector{
		{Selector: `[data-qa="product-discount"]`},
		{Selector: `.discount-tag`},
		{Selector: `.sale-badge`},
	}
)

// markupProducts extracts candidate records from the rendered page markup.
func markupProducts(doc *goquery.Document, base *url.URL) []*models.ProductRecord {
	var containers *goquery.Selection
	for _, sel := range containerSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			containers = found
			break
		}
	}
	if containers == nil {
		return nil
	}

	recs := make([]*models.ProductRecord, 0, containers.Length())
	containers.Each(func(_ int, s *goquery.Selection) {
		if rec := markupProduct(s, base); rec != nil {
			recs = append(recs, rec)
		}
	})
	return recs
}

func markupProduct(s *goquery.Selection, base *url.URL) *models.ProductRecord {
	rec := &models.ProductRecord{
		Title: normalize.CleanText(selectString(s, titleSelectors)),
	}

	if href, ok := s.Find("a[href]").First().Attr("href"); ok {
		rec.URL = resolveURL(base, href)
	}
	if rec.Title == "" && rec.URL == "" {
		return nil
	}

	if img := selectString(s, imageSelectors); img != "" {
		rec.Image = &img
	}
	if brand := normalize.CleanText(selectString(s, brandSelectors)); brand != "" {
		rec.Brand = &brand
	}
	if discount := normalize.CleanText(selectString(s, discountSelectors)); discount != "" {
		rec.Discount = &discount
	}

	rec.CurrentPrice = normalize.CleanPrice(selectString(s, priceSelectors))
	rec.OriginalPrice = normalize.CleanPrice(selectString(s, originalPriceSelectors))

	if raw := selectString(s, ratingSelectors); raw != "" {
		rec.Rating = normalize.ParseRating(raw)
	}
	if rec.Rating == nil {
		rec.Rating = normalize.RatingFromText(s.Text())
	}

	if raw := selectString(s, reviewsSelectors); raw != "" {
		rec.ReviewsCount = normalize.ParseReviewCount(raw)
	}
	if rec.ReviewsCount == nil {
		rec.ReviewsCount = normalize.ParseReviewCount(s.Text())
	}

	if sku, ok := s.Attr("data-sku"); ok && sku != "" {
		rec.SKU = &sku
	} else if sku := normalize.SKUFromURL(rec.URL); sku != "" {
		rec.SKU = &sku
	}

	return rec
}

// selectString tries each strategy in order and returns the first
// non-empty value.
func selectString(s *goquery.Selection, strategies []fieldSelector) string {
	for _, strat := range strategies {
		found := s.Find(strat.Selector).First()
		if found.Length() == 0 {
			continue
		}
		var v string
		if strat.Attr == "" {
			v = found.Text()
		} else {
			v, _ = found.Attr(strat.Attr)
		}
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// nextLinkSelectors locate an explicit next-page link, tried in order.
var nextLinkSelectors = []string{
	`a[rel="next"]`,
	`li.next a`,
	`.pagination .next a`,
	`[data-qa="next-page"] a`,
	`a[data-qa="next-page"]`,
}

// productPathFragments mark hrefs that point at a single product page
// rather than the next catalog page.
var productPathFragments = []string{"/p/", "/dp/", "/product/"}

// NextPageLink finds an explicit next-page link in catalog markup and
// resolves it against the page URL. It returns "" when no acceptable link
// exists.
func NextPageLink(doc *goquery.Document, base *url.URL) string {
	for _, sel := range nextLinkSelectors {
		link := doc.Find(sel).First()
		if link.Length() == 0 {
			continue
		}
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			continue
		}
		if isProductPath(href) {
			continue
		}
		if abs := resolveURL(base, href); abs != "" {
			return abs
		}
	}
	return ""
}

func isProductPath(href string) bool {
	for _, fragment := range productPathFragments {
		if strings.Contains(href, fragment) {
			return true
		}
	}
	return false
}
