package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/scrapeworks/go-scrape-catalog/models"
)

// embeddedStateDepth is deeper than the endpoint search because framework
// state blobs bury page props several wrappers down.
const embeddedStateDepth = 8

var stateAssignRe = regexp.MustCompile(`(?:window\.)?__(?:INITIAL|PRELOADED)_STATE__\s*=`)

// embeddedProducts locates the page's embedded state blob and pulls a
// product list out of it. It returns the records indexed by correlation
// key for the markup tier to consult, plus the records themselves.
func embeddedProducts(doc *goquery.Document) (map[string]*models.ProductRecord, []*models.ProductRecord) {
	blob := embeddedStateBlob(doc)
	if blob == "" {
		return nil, nil
	}

	var root any
	if err := json.Unmarshal([]byte(blob), &root); err != nil {
		return nil, nil
	}

	entries := findProductArray(root, embeddedStateDepth)
	if entries == nil {
		return nil, nil
	}

	recs := make([]*models.ProductRecord, 0, len(entries))
	byKey := make(map[string]*models.ProductRecord, len(entries))
	for _, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		rec := recordFromEntry(m)
		if rec == nil {
			continue
		}
		recs = append(recs, rec)
		if key := recordKey(rec); key != "" {
			if _, seen := byKey[key]; !seen {
				byKey[key] = rec
			}
		}
	}
	return byKey, recs
}

// embeddedStateBlob returns the raw JSON of the page's single top-level
// state blob: a __NEXT_DATA__ script when present, otherwise the object
// assigned to window.__INITIAL_STATE__ / __PRELOADED_STATE__.
func embeddedStateBlob(doc *goquery.Document) string {
	if next := doc.Find(`script#__NEXT_DATA__`).First(); next.Length() > 0 {
		if text := strings.TrimSpace(next.Text()); text != "" {
			return text
		}
	}

	var blob string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		loc := stateAssignRe.FindStringIndex(text)
		if loc == nil {
			return true
		}
		blob = balancedObject(text[loc[1]:])
		return blob == ""
	})
	return blob
}

// balancedObject returns the first brace-balanced JSON object in s,
// respecting string literals and escapes, or "" if the braces never close.
func balancedObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
