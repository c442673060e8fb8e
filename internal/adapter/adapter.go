// Package adapter implements the per-source fetch strategies. Each adapter
// knows how to list candidate article URLs from one kind of upstream (RSS
// feed, news sitemap, selector-based scrape, or a site-specific variant) and
// how to enrich a single URL with page metadata.
package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gridwire/gridwire/internal/database"
	"github.com/gridwire/gridwire/internal/httpx"
)

// Candidate is a transient article candidate produced by an adapter. It has
// no identity beyond its URL until the dedup engine processes it.
type Candidate struct {
	URL         string
	Title       string
	Description string
	Author      string
	ImageURL    string
	Published   *time.Time
}

// Adapter lists candidate articles for one source and enriches single URLs.
type Adapter interface {
	// Name identifies the adapter kind inside the registry.
	Name() string
	// ListIndex fetches up to pageBudget index pages and returns candidates.
	ListIndex(ctx context.Context, pageBudget int) ([]Candidate, error)
	// FetchDetail enriches a single candidate URL with page metadata.
	// Best-effort: callers treat errors as a missing enrichment, not a
	// failed candidate.
	FetchDetail(ctx context.Context, url string) (Candidate, error)
}

// Known adapter keys.
const (
	KindRSS         = "rss"
	KindSitemap     = "sitemap"
	KindScrape      = "scrape"
	KindFantasyPros = "fantasypros"
)

// Select picks the adapter for a source. An explicitly configured adapter key
// wins; otherwise the fetch mode decides; otherwise auto-detect falls back to
// RSS when a feed URL is present, else to the generic scrape.
func Select(src database.Source, client *httpx.Client, log *zap.SugaredLogger) (Adapter, error) {
	key := strings.ToLower(deref(src.Adapter))
	if key == "" {
		key = strings.ToLower(deref(src.FetchMode))
	}
	if key == "" {
		if deref(src.RSSURL) != "" {
			key = KindRSS
		} else {
			key = KindScrape
		}
	}

	switch key {
	case KindRSS:
		if deref(src.RSSURL) == "" {
			return nil, fmt.Errorf("source %q: rss adapter requires rss_url", src.Name)
		}
		return newRSSAdapter(src, client, log), nil
	case KindSitemap:
		if deref(src.SitemapURL) == "" {
			return nil, fmt.Errorf("source %q: sitemap adapter requires sitemap_url", src.Name)
		}
		return newSitemapAdapter(src, client, log), nil
	case KindScrape:
		if deref(src.HomepageURL) == "" {
			return nil, fmt.Errorf("source %q: scrape adapter requires homepage_url", src.Name)
		}
		return newScrapeAdapter(src, client, log), nil
	case KindFantasyPros:
		if deref(src.RSSURL) == "" {
			return nil, fmt.Errorf("source %q: fantasypros adapter requires rss_url", src.Name)
		}
		return newFantasyProsAdapter(src, client, log), nil
	default:
		return nil, fmt.Errorf("source %q: unknown adapter %q", src.Name, key)
	}
}

// lookbackCutoff returns the earliest publish time a candidate may carry.
func lookbackCutoff(src database.Source) time.Time {
	days := src.LookbackDays
	if days <= 0 {
		days = 3
	}
	return time.Now().AddDate(0, 0, -days)
}

// withinLookback gives candidates without a publish time the benefit of the
// doubt; a too-old publish time excludes them.
func withinLookback(published *time.Time, cutoff time.Time) bool {
	if published == nil {
		return true
	}
	return !published.Before(cutoff)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
