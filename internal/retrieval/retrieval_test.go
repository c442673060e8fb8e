package retrieval

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gridwire/gridwire/internal/cache"
	"github.com/gridwire/gridwire/internal/database"
	"github.com/gridwire/gridwire/internal/fingerprint"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestService(t *testing.T, db *database.DB, ttl time.Duration) *Service {
	t.Helper()
	return New(db, cache.New(ttl), zap.NewNop().Sugar(), 30)
}

func seedSource(t *testing.T, db *database.DB, name, provider string) int64 {
	t.Helper()
	id, err := db.UpsertSource(database.Source{Name: name, Provider: provider, Allowed: true})
	if err != nil {
		t.Fatalf("seeding source %s: %v", name, err)
	}
	return id
}

// seedArticle inserts one article published minutesAgo minutes in the past.
func seedArticle(t *testing.T, db *database.DB, sourceID int64, provider, title string, topics []string, minutesAgo int) int64 {
	t.Helper()
	url := fmt.Sprintf("https://%s.example.com/%s", provider, fingerprint.Slug(title))
	published := time.Now().UTC().Add(-time.Duration(minutesAgo) * time.Minute).Format(time.RFC3339)
	id, err := db.InsertArticle(database.Article{
		SourceID:    sourceID,
		Provider:    provider,
		Fingerprint: fingerprint.Compute(url, title),
		URL:         url,
		Domain:      provider + ".example.com",
		Title:       title,
		CleanTitle:  title,
		Topics:      topics,
		PublishedAt: &published,
	})
	if err != nil {
		t.Fatalf("seeding article %q: %v", title, err)
	}
	return id
}

func TestResolveSection(t *testing.T) {
	tests := []struct {
		topics []string
		want   string
	}{
		{nil, "news"},
		{[]string{"news"}, "news"},
		{[]string{"rankings"}, "rankings"},
		{[]string{"rankings", "injury"}, "injury"},
		{[]string{"advice", "start-sit", "dfs"}, "start-sit"},
		{[]string{"dfs", "waiver-wire"}, "waiver-wire"},
	}
	for _, tt := range tests {
		if got := ResolveSection(tt.topics); got != tt.want {
			t.Errorf("ResolveSection(%v) = %q, want %q", tt.topics, got, tt.want)
		}
	}
}

func TestSectionExclusivity(t *testing.T) {
	db := openTestDB(t)
	src := seedSource(t, db, "Test Source", "testprov")

	// Articles with overlapping tag sets. Each must land in exactly one
	// section across the full set of section pages.
	seedArticle(t, db, src, "testprov", "Week 10 Rankings and Injury Notes", []string{"rankings", "injury"}, 10)
	seedArticle(t, db, src, "testprov", "Start or Sit This Week", []string{"start-sit", "advice"}, 20)
	seedArticle(t, db, src, "testprov", "Waiver Wire DFS Crossover", []string{"waiver-wire", "dfs"}, 30)
	seedArticle(t, db, src, "testprov", "Untagged Roster Move", nil, 40)
	seedArticle(t, db, src, "testprov", "Pure Advice Column", []string{"advice"}, 50)

	svc := newTestService(t, db, time.Minute)

	placements := make(map[int64][]string)
	total := 0
	for _, section := range SectionOrder {
		page, err := svc.GetSection(Query{Section: section, Limit: 50, Cap: 10})
		if err != nil {
			t.Fatalf("GetSection(%s): %v", section, err)
		}
		for _, a := range page.Articles {
			placements[a.ID] = append(placements[a.ID], section)
			total++
		}
	}

	if total != 5 {
		t.Errorf("expected 5 placements across all sections, got %d", total)
	}
	for id, sections := range placements {
		if len(sections) != 1 {
			t.Errorf("article %d appears in %d sections (%v), want exactly one", id, len(sections), sections)
		}
	}

	// Spot-check the priority ordering resolves the overlaps.
	injury, err := svc.GetSection(Query{Section: "injury", Limit: 50, Cap: 10})
	if err != nil {
		t.Fatalf("GetSection(injury): %v", err)
	}
	if len(injury.Articles) != 1 || injury.Articles[0].Title != "Week 10 Rankings and Injury Notes" {
		t.Errorf("injury section = %v, want the rankings+injury article", titles(injury.Articles))
	}
	news, err := svc.GetSection(Query{Section: "news", Limit: 50, Cap: 10})
	if err != nil {
		t.Fatalf("GetSection(news): %v", err)
	}
	if len(news.Articles) != 1 || news.Articles[0].Title != "Untagged Roster Move" {
		t.Errorf("news section = %v, want only the untagged article", titles(news.Articles))
	}
}

func TestProviderDiversity(t *testing.T) {
	db := openTestDB(t)

	providers := []string{"alpha", "beta", "gamma"}
	for i, p := range providers {
		src := seedSource(t, db, "Source "+p, p)
		// alpha gets the most recent block so without capping it would
		// fill the entire top of the page.
		for n := 0; n < 10; n++ {
			title := fmt.Sprintf("%s Rankings Update %d", p, n)
			seedArticle(t, db, src, p, title, []string{"rankings"}, i*100+n)
		}
	}

	svc := newTestService(t, db, time.Minute)

	const perProvider = 2
	page, err := svc.GetSection(Query{Section: "rankings", Cap: perProvider, Limit: perProvider * len(providers)})
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}
	if len(page.Articles) != perProvider*len(providers) {
		t.Fatalf("expected %d articles, got %d", perProvider*len(providers), len(page.Articles))
	}

	counts := make(map[string]int)
	for _, a := range page.Articles {
		counts[a.Provider]++
	}
	for p, n := range counts {
		if n > perProvider {
			t.Errorf("provider %s contributed %d articles, cap is %d", p, n, perProvider)
		}
	}
	if len(counts) != len(providers) {
		t.Errorf("expected all %d providers represented, got %d", len(providers), len(counts))
	}

	// Rank-zero entries from every provider come before any rank-one entry,
	// and within a rank recency decides.
	first := page.Articles[:len(providers)]
	seen := make(map[string]bool)
	for _, a := range first {
		if seen[a.Provider] {
			t.Errorf("provider %s appears twice in the first %d slots", a.Provider, len(providers))
		}
		seen[a.Provider] = true
	}
	if first[0].Provider != "alpha" {
		t.Errorf("most recent provider should lead the page, got %s", first[0].Provider)
	}
}

func TestGetSectionProviderFilter(t *testing.T) {
	db := openTestDB(t)
	a := seedSource(t, db, "Source A", "alpha")
	b := seedSource(t, db, "Source B", "beta")
	seedArticle(t, db, a, "alpha", "Alpha Injury Report", []string{"injury"}, 5)
	seedArticle(t, db, b, "beta", "Beta Injury Report", []string{"injury"}, 10)

	svc := newTestService(t, db, time.Minute)
	page, err := svc.GetSection(Query{Section: "injury", Provider: "beta"})
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}
	if len(page.Articles) != 1 || page.Articles[0].Provider != "beta" {
		t.Errorf("provider filter returned %v, want only beta", titles(page.Articles))
	}
}

func TestGetSectionUnknownKey(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db, time.Minute)

	if _, err := svc.GetSection(Query{Section: "touchdown-dances"}); err == nil {
		t.Error("expected error for unknown section key")
	}
	// Blank defaults to news rather than erroring.
	if _, err := svc.GetSection(Query{}); err != nil {
		t.Errorf("blank section should default to news, got error: %v", err)
	}
}

func TestGetSectionDegradedOnStoreFailure(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db, time.Minute)

	db.Close()

	page, err := svc.GetSection(Query{Section: "news"})
	if err != nil {
		t.Fatalf("store failure must not surface as an error, got %v", err)
	}
	if !page.Degraded {
		t.Error("expected a degraded page when the store is unavailable")
	}
	if len(page.Articles) != 0 {
		t.Errorf("degraded page should be empty, got %d articles", len(page.Articles))
	}
}

func TestGetSectionStaleFallback(t *testing.T) {
	db := openTestDB(t)
	src := seedSource(t, db, "Test Source", "testprov")
	seedArticle(t, db, src, "testprov", "Fresh Injury News", []string{"injury"}, 5)

	svc := newTestService(t, db, 20*time.Millisecond)

	q := Query{Section: "injury"}
	warm, err := svc.GetSection(q)
	if err != nil {
		t.Fatalf("warming cache: %v", err)
	}
	if len(warm.Articles) != 1 {
		t.Fatalf("expected 1 article in warm page, got %d", len(warm.Articles))
	}

	time.Sleep(50 * time.Millisecond)
	db.Close()

	page, err := svc.GetSection(q)
	if err != nil {
		t.Fatalf("stale fallback must not error: %v", err)
	}
	if !page.Stale {
		t.Error("expected the expired cached page flagged stale")
	}
	if page.Degraded {
		t.Error("stale page should not also be degraded")
	}
	if len(page.Articles) != 1 {
		t.Errorf("stale page lost its articles: got %d", len(page.Articles))
	}
}

func TestGetSectionExcludesDuplicates(t *testing.T) {
	db := openTestDB(t)
	a := seedSource(t, db, "Source A", "alpha")
	b := seedSource(t, db, "Source B", "beta")

	canonical := seedArticle(t, db, a, "alpha", "Syndicated Injury Scoop", []string{"injury"}, 10)
	dup := seedArticle(t, db, b, "beta", "Syndicated Injury Scoop", []string{"injury"}, 5)
	if err := db.MarkDuplicateOf(dup, canonical); err != nil {
		t.Fatalf("marking duplicate: %v", err)
	}

	svc := newTestService(t, db, time.Minute)
	page, err := svc.GetSection(Query{Section: "injury"})
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}
	if len(page.Articles) != 1 || page.Articles[0].ID != canonical {
		t.Errorf("expected only the canonical row, got %v", titles(page.Articles))
	}
}

func TestInterleaveOffsetAndLimit(t *testing.T) {
	articles := []database.Article{
		{ID: 1, Provider: "a"},
		{ID: 2, Provider: "b"},
		{ID: 3, Provider: "a"},
		{ID: 4, Provider: "b"},
		{ID: 5, Provider: "a"},
	}

	got := interleave(articles, 2, 10, 0)
	wantIDs := []int64{1, 2, 3, 4}
	if len(got) != len(wantIDs) {
		t.Fatalf("expected %d articles after capping, got %d", len(wantIDs), len(got))
	}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Errorf("position %d: got ID %d, want %d", i, got[i].ID, want)
		}
	}

	page := interleave(articles, 2, 2, 2)
	if len(page) != 2 || page[0].ID != 3 || page[1].ID != 4 {
		t.Errorf("offset page = %v, want IDs [3 4]", page)
	}

	if out := interleave(articles, 2, 10, 100); len(out) != 0 {
		t.Errorf("offset past the end should yield an empty page, got %d", len(out))
	}
}

func titles(articles []database.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.Title
	}
	return out
}
