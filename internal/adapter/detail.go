package adapter

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/gridwire/gridwire/internal/httpx"
)

const maxHTMLBodyBytes = 1 << 20 // 1 MiB

// detailFetcher implements the FetchDetail half of the adapter contract. All
// adapter kinds share it: page metadata extraction does not depend on how the
// index was listed.
type detailFetcher struct {
	client *httpx.Client
	log    *zap.SugaredLogger
}

// FetchDetail fetches an article page and extracts metadata from Open Graph
// tags, falling back to readability extraction for the description.
func (d *detailFetcher) FetchDetail(ctx context.Context, pageURL string) (Candidate, error) {
	c := Candidate{URL: pageURL}

	body, err := d.client.Get(ctx, pageURL)
	if err != nil {
		return c, err
	}
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return c, fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	c.Title = metaContent(doc, `meta[property="og:title"]`)
	if c.Title == "" {
		c.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	c.Description = metaContent(doc, `meta[property="og:description"]`)
	if c.Description == "" {
		c.Description = metaContent(doc, `meta[name="description"]`)
	}
	c.ImageURL = metaContent(doc, `meta[property="og:image"]`)
	c.Author = metaContent(doc, `meta[name="author"]`)

	if raw := metaContent(doc, `meta[property="article:published_time"]`); raw != "" {
		if ts, err := dateparse.ParseAny(raw); err == nil {
			utc := ts.UTC()
			c.Published = &utc
		}
	}

	// Readability pass fills the description when the page has no usable
	// meta tags. Failures here are not worth surfacing.
	if c.Description == "" {
		if parsed, err := url.Parse(pageURL); err == nil {
			if art, err := readability.FromReader(bytes.NewReader(body), parsed); err == nil {
				c.Description = excerpt(art.TextContent, 300)
			}
		}
	}

	return c, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func excerpt(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}

// parsePublished parses a feed or sitemap timestamp, returning nil when the
// value is absent or unparseable.
func parsePublished(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	ts, err := dateparse.ParseAny(raw)
	if err != nil {
		return nil
	}
	utc := ts.UTC()
	return &utc
}
