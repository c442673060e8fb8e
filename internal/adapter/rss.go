package adapter

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/gridwire/gridwire/internal/database"
	"github.com/gridwire/gridwire/internal/httpx"
)

// rssAdapter lists candidates from an RSS or Atom feed.
type rssAdapter struct {
	detailFetcher
	src    database.Source
	parser *gofeed.Parser
}

func newRSSAdapter(src database.Source, client *httpx.Client, log *zap.SugaredLogger) *rssAdapter {
	return &rssAdapter{
		detailFetcher: detailFetcher{client: client, log: log},
		src:           src,
		parser:        gofeed.NewParser(),
	}
}

func (a *rssAdapter) Name() string { return KindRSS }

// ListIndex fetches and parses the feed. A feed is a single index document,
// so the page budget does not apply here.
func (a *rssAdapter) ListIndex(ctx context.Context, _ int) ([]Candidate, error) {
	feedURL := deref(a.src.RSSURL)

	body, err := a.client.Get(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	feed, err := a.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", feedURL, err)
	}

	cutoff := lookbackCutoff(a.src)
	var candidates []Candidate
	for _, item := range feed.Items {
		c, ok := candidateFromItem(item)
		if !ok {
			continue
		}
		if withinLookback(c.Published, cutoff) {
			candidates = append(candidates, c)
		}
	}

	a.log.Debugw("feed parsed", "source", a.src.Name, "items", len(feed.Items), "candidates", len(candidates))
	return candidates, nil
}

func candidateFromItem(item *gofeed.Item) (Candidate, bool) {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		return Candidate{}, false
	}

	c := Candidate{
		URL:         link,
		Title:       title,
		Description: strings.TrimSpace(item.Description),
	}
	if item.PublishedParsed != nil {
		utc := item.PublishedParsed.UTC()
		c.Published = &utc
	} else if item.UpdatedParsed != nil {
		utc := item.UpdatedParsed.UTC()
		c.Published = &utc
	}
	if len(item.Authors) > 0 {
		c.Author = item.Authors[0].Name
	}
	if item.Image != nil {
		c.ImageURL = item.Image.URL
	}
	return c, true
}
