package adapter

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gridwire/gridwire/internal/database"
	"github.com/gridwire/gridwire/internal/httpx"
)

// sitemapAdapter lists candidates from a news sitemap. It understands both
// plain url sets (Google News extensions included) and one level of sitemap
// index indirection, where the page budget caps how many nested sitemaps are
// fetched.
type sitemapAdapter struct {
	detailFetcher
	src database.Source
}

func newSitemapAdapter(src database.Source, client *httpx.Client, log *zap.SugaredLogger) *sitemapAdapter {
	return &sitemapAdapter{
		detailFetcher: detailFetcher{client: client, log: log},
		src:           src,
	}
}

func (a *sitemapAdapter) Name() string { return KindSitemap }

func (a *sitemapAdapter) ListIndex(ctx context.Context, pageBudget int) ([]Candidate, error) {
	if pageBudget <= 0 {
		pageBudget = 1
	}

	root := deref(a.src.SitemapURL)
	data, err := a.client.Get(ctx, root)
	if err != nil {
		return nil, err
	}

	urls, err := parseNewsSitemap(data)
	if err != nil {
		return nil, fmt.Errorf("parsing sitemap %s: %w", root, err)
	}

	// An empty url set may mean the document is a sitemap index instead.
	if len(urls) == 0 {
		nested, err := parseSitemapIndex(data)
		if err != nil {
			return nil, fmt.Errorf("parsing sitemap index %s: %w", root, err)
		}
		if len(nested) > pageBudget {
			nested = nested[:pageBudget]
		}
		for _, nestedURL := range nested {
			nestedData, err := a.client.Get(ctx, nestedURL)
			if err != nil {
				a.log.Warnw("nested sitemap fetch failed", "source", a.src.Name, "url", nestedURL, "error", err)
				continue
			}
			nestedURLs, err := parseNewsSitemap(nestedData)
			if err != nil {
				a.log.Warnw("nested sitemap parse failed", "source", a.src.Name, "url", nestedURL, "error", err)
				continue
			}
			urls = append(urls, nestedURLs...)
		}
	}

	cutoff := lookbackCutoff(a.src)
	var candidates []Candidate
	for _, u := range urls {
		loc := strings.TrimSpace(u.Loc)
		if loc == "" {
			continue
		}
		c := Candidate{
			URL:       loc,
			Title:     strings.TrimSpace(u.News.Title),
			Published: parsePublished(u.News.PublicationDate),
		}
		if len(u.Images) > 0 {
			c.ImageURL = strings.TrimSpace(u.Images[0].Loc)
		}
		if withinLookback(c.Published, cutoff) {
			candidates = append(candidates, c)
		}
	}

	a.log.Debugw("sitemap parsed", "source", a.src.Name, "urls", len(urls), "candidates", len(candidates))
	return candidates, nil
}

type newsSitemap struct {
	URLs []newsSitemapURL `xml:"url"`
}

type newsSitemapURL struct {
	Loc    string             `xml:"loc"`
	News   newsSitemapDetail  `xml:"news"`
	Images []newsSitemapImage `xml:"image"`
}

type newsSitemapDetail struct {
	PublicationDate string `xml:"publication_date"`
	Keywords        string `xml:"keywords"`
	Title           string `xml:"title"`
}

type newsSitemapImage struct {
	Loc string `xml:"loc"`
}

type sitemapIndex struct {
	Sitemaps []sitemapIndexEntry `xml:"sitemap"`
}

type sitemapIndexEntry struct {
	Loc string `xml:"loc"`
}

func parseNewsSitemap(data []byte) ([]newsSitemapURL, error) {
	var sm newsSitemap
	if err := xml.Unmarshal(data, &sm); err != nil {
		return nil, err
	}
	return sm.URLs, nil
}

func parseSitemapIndex(data []byte) ([]string, error) {
	var index sitemapIndex
	if err := xml.Unmarshal(data, &index); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(index.Sitemaps))
	for _, entry := range index.Sitemaps {
		if loc := strings.TrimSpace(entry.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}
