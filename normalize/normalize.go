// Package normalize converts raw scraped text into canonical field values.
// All functions are pure and total: unparseable input yields the zero value
// or nil, never an error.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/scrapeworks/go-scrape-catalog/models"
)

const (
	// TitleMinLen and TitleMaxLen bound the accepted title length.
	TitleMinLen = 5
	TitleMaxLen = 500
)

// CleanText collapses runs of whitespace and trims the result.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CleanPrice extracts the first numeric token from a raw price string,
// tolerating comma thousands separators. "1,234.50 AED" yields 1234.5.
func CleanPrice(s string) *float64 {
	m := priceTokenRe.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

// ParseRating extracts a rating in the printed 1-5 range from raw text.
// Out-of-range or unparseable values yield nil.
func ParseRating(s string) *float64 {
	for _, p := range ratingPatterns {
		m := p.Re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if v < 1 || v > 5 {
			continue
		}
		return &v
	}
	return nil
}

// RatingFromText scans free-form element or page text for a rating,
// accepting only unambiguous shapes ("4.3 out of 5", "4.5 stars", a pointed
// decimal). Used as the last-resort pattern fallback.
func RatingFromText(s string) *float64 {
	for _, p := range fullTextRatingPatterns {
		m := p.Re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v < 1 || v > 5 {
			continue
		}
		return &v
	}
	return nil
}

// ParseReviewCount extracts a non-negative review count from raw text.
// A trailing K suffix multiplies the preceding decimal by 1000, rounded
// to the nearest integer: "1.2K" yields 1200.
func ParseReviewCount(s string) *int {
	for _, p := range reviewPatterns {
		m := p.Re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		raw := strings.ReplaceAll(m[1], ",", "")
		kilo := strings.HasSuffix(strings.ToUpper(raw), "K")
		raw = strings.TrimSuffix(strings.TrimSuffix(raw, "k"), "K")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			continue
		}
		if kilo {
			v = math.Round(v * 1000)
		}
		n := int(v)
		return &n
	}
	return nil
}

// ValidateRecord ensures a record carries the fields required for emission.
func ValidateRecord(p *models.ProductRecord) error {
	if p == nil {
		return fmt.Errorf("record is nil")
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return fmt.Errorf("record missing title")
	}
	if len(title) < TitleMinLen || len(title) > TitleMaxLen {
		return fmt.Errorf("title length %d out of bounds for %s", len(title), p.URL)
	}
	if strings.TrimSpace(p.URL) == "" {
		return fmt.Errorf("record missing url for %q", p.Title)
	}
	return nil
}

// Record normalizes the text fields of a record in place and returns it.
// Applying Record twice is a no-op.
func Record(p *models.ProductRecord) *models.ProductRecord {
	if p == nil {
		return nil
	}
	p.Title = CleanText(p.Title)
	if p.Brand != nil {
		if b := CleanText(*p.Brand); b != "" {
			p.Brand = &b
		} else {
			p.Brand = nil
		}
	}
	if p.Description != nil {
		if d := strings.TrimSpace(*p.Description); d != "" {
			p.Description = &d
		} else {
			p.Description = nil
		}
	}
	if p.Discount != nil {
		if d := CleanText(*p.Discount); d != "" {
			p.Discount = &d
		} else {
			p.Discount = nil
		}
	}
	if p.Rating != nil && (*p.Rating < 1 || *p.Rating > 5) {
		p.Rating = nil
	}
	if p.ReviewsCount != nil && *p.ReviewsCount < 0 {
		p.ReviewsCount = nil
	}
	if p.CurrentPrice != nil && *p.CurrentPrice < 0 {
		p.CurrentPrice = nil
	}
	if p.OriginalPrice != nil && *p.OriginalPrice < 0 {
		p.OriginalPrice = nil
	}
	synthesizeDiscount(p)
	return p
}

// synthesizeDiscount fills the discount field from the two prices when the
// page did not supply one.
func synthesizeDiscount(p *models.ProductRecord) {
	if p.Discount != nil || p.CurrentPrice == nil || p.OriginalPrice == nil {
		return
	}
	if *p.OriginalPrice <= *p.CurrentPrice || *p.OriginalPrice == 0 {
		return
	}
	pct := int(math.Round((1 - *p.CurrentPrice / *p.OriginalPrice) * 100))
	if pct <= 0 {
		return
	}
	d := fmt.Sprintf("%d%% off", pct)
	p.Discount = &d
}
