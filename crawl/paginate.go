package crawl

import (
	"bytes"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/scrapeworks/go-scrape-catalog/extract"
	"github.com/scrapeworks/go-scrape-catalog/locate"
	"github.com/scrapeworks/go-scrape-catalog/models"
)

// PageOutcome summarizes one processed catalog page for the pagination
// decision.
type PageOutcome struct {
	URL         string
	Page        int
	Tier        extract.Tier
	Hint        extract.PaginationHint
	EndpointURL string
	Body        []byte
	Saved       int
}

// NextTask decides whether the crawl continues past outcome and with what
// task. A nil return terminates this catalog's pagination. The decision is
// pure: it consumes only the outcome and the budget snapshot, so it can be
// exercised without any network.
//
// Termination wins over continuation: an exhausted budget or an empty page
// stops the crawl even when the page advertises more results.
func NextTask(outcome PageOutcome, budget *Budget) *models.CrawlTask {
	if budget.ProductsExhausted() {
		return nil
	}
	if outcome.Saved == 0 {
		return nil
	}
	if outcome.Hint.Known && !outcome.Hint.HasMore {
		return nil
	}

	if outcome.Tier == extract.TierEndpoint && outcome.EndpointURL != "" {
		next, err := locate.PageURL(outcome.EndpointURL, outcome.Page+1)
		if err != nil {
			return nil
		}
		return &models.CrawlTask{URL: next, Page: outcome.Page + 1}
	}

	if link := nextMarkupLink(outcome); link != "" {
		return &models.CrawlTask{URL: link, Page: outcome.Page + 1}
	}

	// No explicit next link. The page still yielded products, so continue
	// by incrementing the page parameter; the page ceiling and the
	// empty-page rule above bound the walk.
	next, err := locate.PageURL(outcome.URL, outcome.Page+1)
	if err != nil {
		return nil
	}
	return &models.CrawlTask{URL: next, Page: outcome.Page + 1}
}

func nextMarkupLink(outcome PageOutcome) string {
	if len(outcome.Body) == 0 {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(outcome.Body))
	if err != nil {
		return ""
	}
	base, err := url.Parse(outcome.URL)
	if err != nil {
		base = nil
	}
	return extract.NextPageLink(doc, base)
}
