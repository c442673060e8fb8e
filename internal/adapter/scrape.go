package adapter

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/gridwire/gridwire/internal/database"
	"github.com/gridwire/gridwire/internal/httpx"
)

// defaultLinkSelector matches article links on list pages when a source has
// no configured selector.
const defaultLinkSelector = "article a[href], h2 a[href], h3 a[href]"

// scrapeAdapter lists candidates by scraping list pages with a CSS selector,
// walking ?page=N pagination up to the page budget.
type scrapeAdapter struct {
	detailFetcher
	src database.Source
}

func newScrapeAdapter(src database.Source, client *httpx.Client, log *zap.SugaredLogger) *scrapeAdapter {
	return &scrapeAdapter{
		detailFetcher: detailFetcher{client: client, log: log},
		src:           src,
	}
}

func (a *scrapeAdapter) Name() string { return KindScrape }

func (a *scrapeAdapter) ListIndex(ctx context.Context, pageBudget int) ([]Candidate, error) {
	if pageBudget <= 0 {
		pageBudget = 1
	}
	selector := deref(a.src.ScrapeSelector)
	if selector == "" {
		selector = defaultLinkSelector
	}

	base, err := url.Parse(deref(a.src.HomepageURL))
	if err != nil {
		return nil, fmt.Errorf("source %q: bad homepage url: %w", a.src.Name, err)
	}

	var candidates []Candidate
	seen := make(map[string]struct{})

	for page := 1; page <= pageBudget; page++ {
		pageURL := buildPageURL(base, page)

		body, err := a.client.Get(ctx, pageURL)
		if err != nil {
			// First page failing means the source is down; later pages
			// failing still leaves usable results.
			if page == 1 {
				return nil, err
			}
			a.log.Warnw("scrape page fetch failed", "source", a.src.Name, "page", page, "error", err)
			break
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", pageURL, err)
		}

		found := 0
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			c, ok := candidateFromSelection(sel, base)
			if !ok {
				return
			}
			if _, dup := seen[c.URL]; dup {
				return
			}
			seen[c.URL] = struct{}{}
			candidates = append(candidates, c)
			found++
		})

		// An empty page means pagination ran out.
		if found == 0 {
			break
		}
	}

	a.log.Debugw("scrape listed", "source", a.src.Name, "candidates", len(candidates))
	return candidates, nil
}

// candidateFromSelection extracts a link candidate from a selected node,
// which is either an anchor itself or an element containing one.
func candidateFromSelection(sel *goquery.Selection, base *url.URL) (Candidate, bool) {
	anchor := sel
	if !sel.Is("a") {
		anchor = sel.Find("a[href]").First()
	}

	href, ok := anchor.Attr("href")
	if !ok {
		return Candidate{}, false
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return Candidate{}, false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return Candidate{}, false
	}

	title := strings.TrimSpace(anchor.Text())
	if title == "" {
		title = strings.TrimSpace(anchor.AttrOr("title", ""))
	}
	if title == "" {
		return Candidate{}, false
	}

	return Candidate{URL: abs.String(), Title: title}, true
}

func buildPageURL(base *url.URL, page int) string {
	if page <= 1 {
		return base.String()
	}
	u := *base
	q := u.Query()
	q.Set("page", fmt.Sprint(page))
	u.RawQuery = q.Encode()
	return u.String()
}
