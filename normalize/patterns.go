package normalize

import "regexp"

// TextPattern pairs a named regular expression with the field it feeds.
// Patterns are tried in declaration order; the first match wins, so the
// precedence of the fuzzier pattern search is auditable here as data.
type TextPattern struct {
	Name string
	Re   *regexp.Regexp
}

// priceTokenRe matches the first numeric token of a price string, with
// optional comma thousands separators.
var priceTokenRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ratingPatterns locate a 1-5 rating inside free-form text. Submatch 1 is
// the rating value.
var ratingPatterns = []TextPattern{
	{Name: "out_of_five", Re: regexp.MustCompile(`(\d(?:\.\d+)?)\s*(?:out of|/)\s*5`)},
	{Name: "stars", Re: regexp.MustCompile(`(\d(?:\.\d+)?)\s*star`)},
	{Name: "bare_decimal", Re: regexp.MustCompile(`(?:^|[^\d.])([1-5](?:\.\d+)?)(?:[^\d.]|$)`)},
}

// reviewPatterns locate a review or rating count inside free-form text.
// Submatch 1 is the count, possibly comma-grouped or K-suffixed.
var reviewPatterns = []TextPattern{
	{Name: "based_on", Re: regexp.MustCompile(`(?i)based on\s+([\d,]+(?:\.\d+)?[kK]?)\s+rating`)},
	{Name: "labelled", Re: regexp.MustCompile(`(?i)([\d,]+(?:\.\d+)?[kK]?)\s+(?:rating|review)s?`)},
	{Name: "parenthesized", Re: regexp.MustCompile(`\(([\d,]+(?:\.\d+)?[kK]?)\)`)},
	{Name: "bare_count", Re: regexp.MustCompile(`^\s*([\d,]+(?:\.\d+)?[kK]?)\s*$`)},
}

// fullTextRatingPatterns are the stricter subset used when scanning a whole
// element or page text, where a bare single digit is too noisy to trust.
var fullTextRatingPatterns = []TextPattern{
	{Name: "out_of_five", Re: regexp.MustCompile(`(\d(?:\.\d+)?)\s*(?:out of|/)\s*5`)},
	{Name: "stars", Re: regexp.MustCompile(`(\d(?:\.\d+)?)\s*star`)},
	{Name: "pointed_decimal", Re: regexp.MustCompile(`(?:^|[^\d.])([1-5]\.\d)(?:[^\d.]|$)`)},
}

// skuPatterns recover a product code from a product URL. Submatch 1 is the
// SKU. Ordered from most to least specific.
var skuPatterns = []TextPattern{
	{Name: "path_p_segment", Re: regexp.MustCompile(`/p/([A-Za-z0-9\-]+)`)},
	{Name: "path_dp_segment", Re: regexp.MustCompile(`/dp/([A-Za-z0-9]+)`)},
	{Name: "query_sku", Re: regexp.MustCompile(`[?&]sku=([\w\-]+)`)},
	{Name: "trailing_code", Re: regexp.MustCompile(`/([A-Z0-9]{8,})(?:[/?.]|$)`)},
}

// SKUFromURL recovers a product code from a product URL, or "" if none of
// the known URL shapes match.
func SKUFromURL(rawURL string) string {
	for _, p := range skuPatterns {
		if m := p.Re.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}
