package adapter

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/gridwire/gridwire/internal/database"
	"github.com/gridwire/gridwire/internal/httpx"
)

// fantasyProsAdapter is a site-specific variant of the RSS adapter.
// FantasyPros feed titles carry a "(Fantasy Football)" suffix and an expert
// attribution tail that pollute dedup title keys and classification, so they
// are stripped at the adapter boundary.
type fantasyProsAdapter struct {
	*rssAdapter
}

var fantasyProsTitleNoise = regexp.MustCompile(`\s*(\((Fantasy Football|Fantasy Impact)\)|\|\s*FantasyPros.*)$`)

func newFantasyProsAdapter(src database.Source, client *httpx.Client, log *zap.SugaredLogger) *fantasyProsAdapter {
	return &fantasyProsAdapter{rssAdapter: newRSSAdapter(src, client, log)}
}

func (a *fantasyProsAdapter) Name() string { return KindFantasyPros }

func (a *fantasyProsAdapter) ListIndex(ctx context.Context, pageBudget int) ([]Candidate, error) {
	candidates, err := a.rssAdapter.ListIndex(ctx, pageBudget)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		candidates[i].Title = cleanFantasyProsTitle(candidates[i].Title)
	}
	return candidates, nil
}

func (a *fantasyProsAdapter) FetchDetail(ctx context.Context, url string) (Candidate, error) {
	c, err := a.rssAdapter.FetchDetail(ctx, url)
	if err != nil {
		return c, err
	}
	c.Title = cleanFantasyProsTitle(c.Title)
	return c, nil
}

func cleanFantasyProsTitle(title string) string {
	return strings.TrimSpace(fantasyProsTitleNoise.ReplaceAllString(title, ""))
}
