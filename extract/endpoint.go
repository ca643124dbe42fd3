package extract

import (
	"encoding/json"
	"sort"

	"github.com/scrapeworks/go-scrape-catalog/models"
	"github.com/scrapeworks/go-scrape-catalog/normalize"
)

// containerKeys is the family of wrapper keys under which storefront
// payloads nest their product list, tried in this order at each level.
var containerKeys = []string{
	"products", "items", "results", "hits",
	"data", "payload", "catalog", "search",
}

// containerSearchDepth bounds the recursive wrapper search so a hostile or
// degenerate payload cannot make the walk quadratic.
const containerSearchDepth = 4

// parseEndpointPayload extracts product records and a pagination hint from
// a structured endpoint response. A payload with no recognizable product
// container yields an empty slice.
func parseEndpointPayload(body []byte) ([]*models.ProductRecord, PaginationHint) {
	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, PaginationHint{}
	}

	entries := findProductArray(root, containerSearchDepth)
	if entries == nil {
		return nil, PaginationHint{}
	}

	recs := make([]*models.ProductRecord, 0, len(entries))
	for _, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if rec := recordFromEntry(m); rec != nil {
			recs = append(recs, rec)
		}
	}

	return recs, paginationHint(root)
}

// findProductArray walks the payload depth-first until it finds an array
// whose elements look like products. Container keys are tried first at
// each level; other map-valued keys are descended afterwards in stable
// order, since framework state blobs wrap everything in arbitrary keys
// (props, pageProps) before the container family appears.
func findProductArray(node any, depth int) []any {
	if depth < 0 {
		return nil
	}
	switch v := node.(type) {
	case []any:
		if looksLikeProducts(v) {
			return v
		}
	case map[string]any:
		for _, key := range containerKeys {
			child, ok := v[key]
			if !ok {
				continue
			}
			if found := findProductArray(child, depth-1); found != nil {
				return found
			}
		}
		rest := make([]string, 0, len(v))
		for key := range v {
			if !isContainerKey(key) {
				rest = append(rest, key)
			}
		}
		sort.Strings(rest)
		for _, key := range rest {
			child, ok := v[key].(map[string]any)
			if !ok {
				continue
			}
			if found := findProductArray(child, depth-1); found != nil {
				return found
			}
		}
	}
	return nil
}

func isContainerKey(key string) bool {
	for _, k := range containerKeys {
		if k == key {
			return true
		}
	}
	return false
}

// looksLikeProducts accepts an array whose first object carries both a
// name-ish and an identity-ish field.
func looksLikeProducts(arr []any) bool {
	if len(arr) == 0 {
		return false
	}
	m, ok := arr[0].(map[string]any)
	if !ok {
		return false
	}
	hasName := hasAnyKey(m, "title", "name", "productTitle", "product_title")
	hasIdentity := hasAnyKey(m, "url", "link", "productUrl", "product_url", "href", "sku", "id", "productId", "product_id", "code", "asin")
	return hasName && hasIdentity
}

func hasAnyKey(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// recordFromEntry maps one payload object onto a ProductRecord. Unknown or
// unparseable fields stay nil; entries with neither title nor identity are
// rejected.
func recordFromEntry(m map[string]any) *models.ProductRecord {
	rec := &models.ProductRecord{
		Title: normalize.CleanText(stringField(m, "title", "name", "productTitle", "product_title")),
		URL:   stringField(m, "url", "link", "productUrl", "product_url", "href"),
	}
	if rec.Title == "" && rec.URL == "" {
		return nil
	}

	if s := stringField(m, "image", "imageUrl", "image_url", "thumbnail"); s != "" {
		rec.Image = &s
	}
	if s := normalize.CleanText(stringField(m, "brand", "brandName", "brand_name")); s != "" {
		rec.Brand = &s
	}
	if s := stringField(m, "sku", "id", "productId", "product_id", "code", "asin"); s != "" {
		rec.SKU = &s
	}
	if s := stringField(m, "description", "shortDescription", "short_description"); s != "" {
		rec.Description = &s
	}
	if s := normalize.CleanText(stringField(m, "discount", "discountLabel", "discount_label")); s != "" {
		rec.Discount = &s
	}
	if s := stringField(m, "currency", "currencyCode", "currency_code"); s != "" {
		rec.Currency = s
	}

	rec.CurrentPrice = priceField(m, "price", "currentPrice", "current_price", "salePrice", "sale_price", "offerPrice", "offer_price")
	rec.OriginalPrice = priceField(m, "originalPrice", "original_price", "listPrice", "list_price", "wasPrice", "was_price", "oldPrice", "old_price")

	if v := numberField(m, "rating", "averageRating", "average_rating", "avgRating", "avg_rating"); v != nil && *v >= 1 && *v <= 5 {
		rec.Rating = v
	}
	if v := numberField(m, "reviewsCount", "reviews_count", "ratingCount", "rating_count", "reviewCount", "review_count", "numReviews", "num_reviews"); v != nil && *v >= 0 {
		n := int(*v)
		rec.ReviewsCount = &n
	}

	return rec
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// numberField reads a numeric value that may arrive as a JSON number or a
// numeric string.
func numberField(m map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			f := v
			return &f
		case string:
			if f := normalize.CleanPrice(v); f != nil {
				return f
			}
		}
	}
	return nil
}

// priceField is numberField with tolerance for {"value": N} wrappers.
func priceField(m map[string]any, keys ...string) *float64 {
	if v := numberField(m, keys...); v != nil {
		if *v < 0 {
			return nil
		}
		return v
	}
	for _, k := range keys {
		if wrapped, ok := m[k].(map[string]any); ok {
			if v := numberField(wrapped, "value", "amount"); v != nil && *v >= 0 {
				return v
			}
		}
	}
	return nil
}

// paginationHint reads an explicit has-more flag or a page/total-pages pair
// from the payload root or its pagination/meta wrappers.
func paginationHint(root any) PaginationHint {
	m, ok := root.(map[string]any)
	if !ok {
		return PaginationHint{}
	}
	scopes := []map[string]any{m}
	for _, key := range []string{"pagination", "meta", "pageInfo", "page_info"} {
		if nested, ok := m[key].(map[string]any); ok {
			scopes = append(scopes, nested)
		}
	}
	for _, scope := range scopes {
		for _, key := range []string{"hasMore", "has_more", "hasNext", "has_next", "hasNextPage"} {
			if b, ok := scope[key].(bool); ok {
				return PaginationHint{Known: true, HasMore: b}
			}
		}
		page := numberField(scope, "page", "currentPage", "current_page", "pageNumber", "page_number")
		total := numberField(scope, "totalPages", "total_pages", "pageCount", "page_count", "pages")
		if page != nil && total != nil {
			return PaginationHint{Known: true, HasMore: *page < *total}
		}
	}
	return PaginationHint{}
}
