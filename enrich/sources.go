package enrich

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/scrapeworks/go-scrape-catalog/normalize"
)

// Script-payload key patterns, tried against every inline script. Submatch
// 1 is the value. Ordered so the most specific key shape wins.
var (
	scriptRatingRes = []*regexp.Regexp{
		regexp.MustCompile(`"ratingValue"\s*:\s*"?([0-9.]+)"?`),
		regexp.MustCompile(`"averageRating"\s*:\s*"?([0-9.]+)"?`),
	}
	scriptReviewsRes = []*regexp.Regexp{
		regexp.MustCompile(`"reviewCount"\s*:\s*"?([0-9,]+)"?`),
		regexp.MustCompile(`"ratingCount"\s*:\s*"?([0-9,]+)"?`),
	}
	scriptDescriptionRes = []*regexp.Regexp{
		regexp.MustCompile(`"productDescription"\s*:\s*"((?:[^"\\]|\\.){40,})"`),
		regexp.MustCompile(`"longDescription"\s*:\s*"((?:[^"\\]|\\.){40,})"`),
	}
	scriptBulletsRe = regexp.MustCompile(`"(?:feature_bullets|featureBullets|bullets)"\s*:\s*(\[[^\]]*\])`)
	scriptSpecsRe   = regexp.MustCompile(`"(?:specifications|specs)"\s*:\s*(\{[^{}]*\})`)
)

// detailsFromScripts scans embedded script payloads for known key
// patterns. Bullet and specification lists are rendered into a simple
// marked-up block standing in for a prose description.
func detailsFromScripts(doc *goquery.Document) details {
	var d details
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if text == "" {
			return
		}
		if d.rating == nil {
			for _, re := range scriptRatingRes {
				if m := re.FindStringSubmatch(text); m != nil {
					if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 1 && v <= 5 {
						d.rating = &v
						break
					}
				}
			}
		}
		if d.reviewsCount == nil {
			for _, re := range scriptReviewsRes {
				if m := re.FindStringSubmatch(text); m != nil {
					if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil && n >= 0 {
						d.reviewsCount = &n
						break
					}
				}
			}
		}
		if d.description == nil {
			for _, re := range scriptDescriptionRes {
				if m := re.FindStringSubmatch(text); m != nil {
					var unquoted string
					if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &unquoted); err == nil {
						unquoted = strings.TrimSpace(unquoted)
						if unquoted != "" {
							d.description = &unquoted
							break
						}
					}
				}
			}
		}
		if d.description == nil {
			if m := scriptBulletsRe.FindStringSubmatch(text); m != nil {
				if block := renderBullets(m[1]); block != "" {
					d.description = &block
				}
			}
		}
		if d.description == nil {
			if m := scriptSpecsRe.FindStringSubmatch(text); m != nil {
				if block := renderSpecs(m[1]); block != "" {
					d.description = &block
				}
			}
		}
	})
	return d
}

// renderBullets turns a JSON string array into a bullet block.
func renderBullets(rawArray string) string {
	var items []string
	if err := json.Unmarshal([]byte(rawArray), &items); err != nil {
		return ""
	}
	var b strings.Builder
	for _, item := range items {
		item = normalize.CleanText(item)
		if item == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// renderSpecs turns a flat JSON object of name/value specs into a block.
func renderSpecs(rawObject string) string {
	var specs map[string]string
	if err := json.Unmarshal([]byte(rawObject), &specs); err != nil {
		return ""
	}
	keys := make([]string, 0, len(specs))
	for k := range specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		v := normalize.CleanText(specs[k])
		if v == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(normalize.CleanText(k))
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Markup selector strategies for detail pages, most specific first.
var (
	descriptionSelectors = []string{
		`[data-qa="pdp-description"]`,
		`#productDescription`,
		`.product-description`,
		`#description .content`,
	}
	bulletSelectors = []string{
		`#feature-bullets li`,
		`.product-features li`,
	}
	detailBrandSelectors = []string{
		`[data-qa="pdp-brand"]`,
		`#bylineInfo`,
		`a.brand`,
		`.brand-name`,
	}
	detailRatingSelectors = []string{
		`[data-qa="pdp-rating"]`,
		`.rating .value`,
		`span.a-icon-alt`,
	}
	detailReviewsSelectors = []string{
		`[data-qa="pdp-reviews"]`,
		`#acrCustomerReviewText`,
		`.rating .count`,
	}
)

// detailsFromSelectors pulls fields out of known detail-page containers.
func detailsFromSelectors(doc *goquery.Document) details {
	var d details
	for _, sel := range descriptionSelectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			text = normalize.CleanText(text)
			d.description = &text
			break
		}
	}
	if d.description == nil {
		var bullets []string
		for _, sel := range bulletSelectors {
			doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
				if item := normalize.CleanText(s.Text()); item != "" {
					bullets = append(bullets, "- "+item)
				}
			})
			if len(bullets) > 0 {
				break
			}
		}
		if len(bullets) > 0 {
			block := strings.Join(bullets, "\n")
			d.description = &block
		}
	}
	for _, sel := range detailBrandSelectors {
		if text := normalize.CleanText(doc.Find(sel).First().Text()); text != "" {
			text = strings.TrimPrefix(text, "Brand: ")
			d.brand = &text
			break
		}
	}
	for _, sel := range detailRatingSelectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			if v := normalize.ParseRating(text); v != nil {
				d.rating = v
				break
			}
		}
	}
	for _, sel := range detailReviewsSelectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			if n := normalize.ParseReviewCount(text); n != nil {
				d.reviewsCount = n
				break
			}
		}
	}
	return d
}

// detailsFromPageText is the last resort: pattern search over the whole
// page text, e.g. "Based on 2,431 ratings".
func detailsFromPageText(doc *goquery.Document) details {
	var d details
	text := doc.Find("body").Text()
	if text == "" {
		return d
	}
	d.rating = normalize.RatingFromText(text)
	d.reviewsCount = normalize.ParseReviewCount(text)
	return d
}
