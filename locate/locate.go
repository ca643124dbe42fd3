// Package locate derives backend endpoint candidates and follow-up page
// URLs from a catalog page URL. It only builds URLs; fetching and retry
// live in the crawl package.
package locate

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Endpoint is one candidate backend URL following a known storefront
// request-shape convention. Candidates are returned in priority order.
type Endpoint struct {
	URL  string
	Kind string
}

const (
	// KindFormatJSON is the catalog URL echoed with format=json, the
	// convention where the page route doubles as a data route.
	KindFormatJSON = "format_json"
	// KindCatalogAPI is the /{locale}/api/catalog/v2/search convention.
	KindCatalogAPI = "catalog_api"

	defaultPageSize = 50
)

var localeSegmentRe = regexp.MustCompile(`^[a-z]{2}(?:-[a-z]{2})?$`)

// EndpointCandidates derives backend endpoint URLs for a catalog page.
// An unparseable or unexpected URL shape yields fewer candidates, possibly
// none; callers must handle an empty list.
func EndpointCandidates(catalogURL string) []Endpoint {
	parsed, err := url.Parse(catalogURL)
	if err != nil || parsed.Host == "" {
		return nil
	}

	var out []Endpoint

	jsonURL := *parsed
	q := jsonURL.Query()
	q.Set("format", "json")
	jsonURL.RawQuery = q.Encode()
	out = append(out, Endpoint{URL: jsonURL.String(), Kind: KindFormatJSON})

	locale, category := pathParts(parsed.Path)
	if locale != "" && category != "" {
		api := url.URL{
			Scheme: parsed.Scheme,
			Host:   parsed.Host,
			Path:   fmt.Sprintf("/%s/api/catalog/v2/search", locale),
		}
		aq := url.Values{}
		aq.Set("category", category)
		aq.Set("page", strconv.Itoa(pageParam(parsed)))
		aq.Set("limit", strconv.Itoa(defaultPageSize))
		for key, vals := range parsed.Query() {
			if key == "page" || key == "limit" || len(vals) == 0 {
				continue
			}
			aq.Set(key, vals[0])
		}
		api.RawQuery = aq.Encode()
		out = append(out, Endpoint{URL: api.String(), Kind: KindCatalogAPI})
	}

	return out
}

// pathParts splits a catalog path into its locale and category segments.
// Either may come back empty when the path has a different shape.
func pathParts(path string) (locale, category string) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "", ""
	}
	if localeSegmentRe.MatchString(segments[0]) {
		locale = segments[0]
		segments = segments[1:]
	}
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			category = segments[i]
			break
		}
	}
	return locale, category
}

func pageParam(u *url.URL) int {
	if raw := u.Query().Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

// PageURL rewrites a catalog or endpoint URL to point at the given page,
// setting a default page size when none is present. Used to synthesize
// next-page requests when no explicit link is available.
func PageURL(rawURL string, page int) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("page url must include a host")
	}
	q := parsed.Query()
	q.Set("page", strconv.Itoa(page))
	if q.Get("limit") == "" {
		q.Set("limit", strconv.Itoa(defaultPageSize))
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}
