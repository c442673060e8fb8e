// Package retrieval serves ranked, provider-interleaved article pages for a
// section. Ranking is recency within each provider, capped per provider so a
// single high-volume provider cannot dominate the top of a page.
package retrieval

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gridwire/gridwire/internal/cache"
	"github.com/gridwire/gridwire/internal/classify"
	"github.com/gridwire/gridwire/internal/database"
)

// SectionOrder is the fixed priority ordering that resolves an article
// carrying multiple section tags to exactly one section.
var SectionOrder = []string{
	classify.TopicStartSit,
	classify.TopicWaiverWire,
	classify.TopicInjury,
	classify.TopicDFS,
	classify.TopicRankings,
	classify.TopicAdvice,
	classify.TopicNews,
}

const (
	defaultWindow = 72 * time.Hour
	maxCap        = 10
	// candidateFactor oversamples the window query so per-provider capping
	// and offsetting still leave a full page.
	candidateFactor = 5
	minCandidates   = 100
	maxCandidates   = 1000
)

// Query describes one section retrieval.
type Query struct {
	Section  string
	Window   time.Duration
	Week     int
	Provider string
	Cap      int
	Limit    int
	Offset   int
}

// Page is the result of a section retrieval. Degraded flags an empty result
// returned because the store was unavailable; Stale flags a cached page
// served past its TTL for the same reason.
type Page struct {
	Section  string             `json:"section"`
	Articles []database.Article `json:"articles"`
	Degraded bool               `json:"degraded,omitempty"`
	Stale    bool               `json:"stale,omitempty"`
}

// Service executes diversity retrieval queries against the article store,
// fronted by an injected TTL cache with stale fallback.
type Service struct {
	db           *database.DB
	cache        *cache.Cache
	log          *zap.SugaredLogger
	defaultLimit int
}

// New creates a retrieval service.
func New(db *database.DB, c *cache.Cache, log *zap.SugaredLogger, defaultLimit int) *Service {
	if defaultLimit <= 0 {
		defaultLimit = 30
	}
	return &Service{db: db, cache: c, log: log, defaultLimit: defaultLimit}
}

// GetSection returns the ranked, provider-interleaved page for a section.
// Storage unavailability yields a stale or degraded page, never an error;
// only an invalid section key is rejected.
func (s *Service) GetSection(q Query) (*Page, error) {
	q = s.normalize(q)
	if !validSection(q.Section) {
		return nil, fmt.Errorf("unknown section %q", q.Section)
	}

	key := q.cacheKey()
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*Page), nil
	}

	articles, err := s.db.GetRecentArticles(database.ArticleFilter{
		Since:    time.Now().UTC().Add(-q.Window).Format(time.RFC3339),
		Provider: q.Provider,
		Week:     q.Week,
		Limit:    candidateBudget(q),
	})
	if err != nil {
		s.log.Errorw("section query failed", "section", q.Section, "error", err)
		if stale, ok := s.cache.GetStale(key); ok {
			page := *stale.(*Page)
			page.Stale = true
			return &page, nil
		}
		return &Page{Section: q.Section, Articles: []database.Article{}, Degraded: true}, nil
	}

	page := &Page{
		Section:  q.Section,
		Articles: interleave(selectSection(articles, q.Section), q.Cap, q.Limit, q.Offset),
	}
	s.cache.Set(key, page)
	return page, nil
}

func (s *Service) normalize(q Query) Query {
	q.Section = strings.ToLower(strings.TrimSpace(q.Section))
	if q.Section == "" {
		q.Section = classify.TopicNews
	}
	if q.Limit <= 0 {
		q.Limit = s.defaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Window <= 0 {
		q.Window = defaultWindow
	}
	if q.Cap <= 0 {
		q.Cap = q.Limit / 3
	}
	if q.Cap < 1 {
		q.Cap = 1
	}
	if q.Cap > maxCap {
		q.Cap = maxCap
	}
	return q
}

func validSection(section string) bool {
	for _, s := range SectionOrder {
		if s == section {
			return true
		}
	}
	return false
}

// ResolveSection maps an article's topic set to exactly one section: the
// earliest-matching tag in the fixed ordering, or news when no section tag
// applies.
func ResolveSection(topics []string) string {
	for _, section := range SectionOrder {
		for _, tag := range topics {
			if tag == section {
				return section
			}
		}
	}
	return classify.TopicNews
}

// selectSection filters candidates to the requested section. Order is
// preserved, so the slice stays sorted by recency.
func selectSection(articles []database.Article, section string) []database.Article {
	var out []database.Article
	for _, a := range articles {
		if ResolveSection(a.Topics) == section {
			out = append(out, a)
		}
	}
	return out
}

// interleave partitions recency-ordered articles by provider, drops each
// provider's entries beyond the cap, and orders the rest primarily by
// per-provider rank. The stable sort keeps recency as the tiebreak within a
// rank, which is what interleaves providers at the top of the page.
func interleave(articles []database.Article, perProviderCap, limit, offset int) []database.Article {
	type ranked struct {
		article database.Article
		rank    int
	}

	providerRank := make(map[string]int)
	var kept []ranked
	for _, a := range articles {
		rank := providerRank[a.Provider]
		providerRank[a.Provider] = rank + 1
		if rank >= perProviderCap {
			continue
		}
		kept = append(kept, ranked{article: a, rank: rank})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].rank < kept[j].rank
	})

	if offset >= len(kept) {
		return []database.Article{}
	}
	kept = kept[offset:]
	if len(kept) > limit {
		kept = kept[:limit]
	}

	out := make([]database.Article, len(kept))
	for i, r := range kept {
		out[i] = r.article
	}
	return out
}

func candidateBudget(q Query) uint64 {
	budget := (q.Offset + q.Limit) * candidateFactor
	if budget < minCandidates {
		budget = minCandidates
	}
	if budget > maxCandidates {
		budget = maxCandidates
	}
	return uint64(budget)
}

func (q Query) cacheKey() string {
	return fmt.Sprintf("section:%s|w:%s|wk:%d|p:%s|c:%d|l:%d|o:%d",
		q.Section, q.Window, q.Week, q.Provider, q.Cap, q.Limit, q.Offset)
}
