package database

import (
	"testing"
	"time"
)

func seedTestSource(t *testing.T, db *DB, name, provider string) int64 {
	t.Helper()
	id, err := db.UpsertSource(Source{Name: name, Provider: provider, Allowed: true})
	if err != nil {
		t.Fatalf("seeding source: %v", err)
	}
	return id
}

func TestInsertArticleUpsert(t *testing.T) {
	db := openTestDB(t)
	src := seedTestSource(t, db, "ESPN Fantasy", "espn")

	a := Article{
		SourceID:    src,
		Provider:    "espn",
		Fingerprint: "fp-1",
		URL:         "https://espn.com/article-1",
		Domain:      "espn.com",
		Title:       "Week 3 Waiver Wire",
		CleanTitle:  "week 3 waiver wire",
		Topics:      []string{"waiver-wire"},
	}
	id1, err := db.InsertArticle(a)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}

	// Same (source, fingerprint) refreshes in place instead of duplicating.
	a.Title = "Week 3 Waiver Wire (Updated)"
	id2, err := db.InsertArticle(a)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if id1 != id2 {
		t.Errorf("upsert created a new row: %d then %d", id1, id2)
	}

	got, _ := db.GetArticleByID(id1)
	if got.Title != "Week 3 Waiver Wire (Updated)" {
		t.Errorf("title not refreshed: %q", got.Title)
	}

	n, _ := db.CountArticlesForSource(src)
	if n != 1 {
		t.Errorf("expected 1 article for source, got %d", n)
	}
}

func TestInsertArticleKeepsTagsOnEmptyRefresh(t *testing.T) {
	db := openTestDB(t)
	src := seedTestSource(t, db, "ESPN Fantasy", "espn")

	a := Article{
		SourceID:    src,
		Provider:    "espn",
		Fingerprint: "fp-1",
		URL:         "https://espn.com/article-1",
		Domain:      "espn.com",
		Title:       "Justin Jefferson Injury Update",
		CleanTitle:  "justin jefferson injury update",
		Topics:      []string{"injury"},
		Players:     []string{"justin-jefferson"},
	}
	id, err := db.InsertArticle(a)
	if err != nil {
		t.Fatal(err)
	}

	// A later pass with no classification output must not wipe earlier tags.
	a.Topics = nil
	a.Players = nil
	if _, err := db.InsertArticle(a); err != nil {
		t.Fatal(err)
	}

	got, _ := db.GetArticleByID(id)
	if len(got.Topics) != 1 || got.Topics[0] != "injury" {
		t.Errorf("topics regressed to %v", got.Topics)
	}
	if len(got.Players) != 1 || got.Players[0] != "justin-jefferson" {
		t.Errorf("players regressed to %v", got.Players)
	}
}

func TestSameFingerprintDifferentSources(t *testing.T) {
	db := openTestDB(t)
	a := seedTestSource(t, db, "Source A", "alpha")
	b := seedTestSource(t, db, "Source B", "beta")

	art := Article{
		Provider:    "alpha",
		Fingerprint: "shared-fp",
		URL:         "https://alpha.example.com/story",
		Domain:      "alpha.example.com",
		Title:       "Shared Story",
		CleanTitle:  "shared story",
	}
	art.SourceID = a
	id1, err := db.InsertArticle(art)
	if err != nil {
		t.Fatal(err)
	}
	art.SourceID = b
	art.Provider = "beta"
	id2, err := db.InsertArticle(art)
	if err != nil {
		t.Fatal(err)
	}
	if id1 == id2 {
		t.Error("different sources must get distinct rows for the same fingerprint")
	}

	canonical, err := db.GetCanonicalByFingerprint("shared-fp")
	if err != nil {
		t.Fatal(err)
	}
	if canonical == nil || canonical.ID != id1 {
		t.Errorf("canonical should be the earliest-discovered row %d, got %+v", id1, canonical)
	}

	if err := db.MarkDuplicateOf(id2, id1); err != nil {
		t.Fatal(err)
	}
	got, _ := db.GetArticleByID(id2)
	if got.CanonicalOf == nil || *got.CanonicalOf != id1 {
		t.Errorf("duplicate not linked to canonical: %+v", got.CanonicalOf)
	}
}

func TestUnionArticleTags(t *testing.T) {
	db := openTestDB(t)
	src := seedTestSource(t, db, "Source A", "alpha")

	id, err := db.InsertArticle(Article{
		SourceID:    src,
		Provider:    "alpha",
		Fingerprint: "fp-1",
		URL:         "https://alpha.example.com/story",
		Domain:      "alpha.example.com",
		Title:       "Story",
		CleanTitle:  "story",
		Topics:      []string{"injury"},
		Players:     []string{"jacob-browning"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := db.UnionArticleTags(id, []string{"injury", "rankings"}, []string{"justin-jefferson"}); err != nil {
		t.Fatal(err)
	}

	got, _ := db.GetArticleByID(id)
	if len(got.Topics) != 2 {
		t.Errorf("topics = %v, want union of 2", got.Topics)
	}
	if len(got.Players) != 2 {
		t.Errorf("players = %v, want union of 2", got.Players)
	}
}

func TestGetRecentArticlesFilters(t *testing.T) {
	db := openTestDB(t)
	a := seedTestSource(t, db, "Source A", "alpha")
	b := seedTestSource(t, db, "Source B", "beta")

	recent := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	old := time.Now().UTC().Add(-200 * time.Hour).Format(time.RFC3339)

	insert := func(sourceID int64, provider, title, fp string, published string, static bool) int64 {
		t.Helper()
		id, err := db.InsertArticle(Article{
			SourceID:    sourceID,
			Provider:    provider,
			Fingerprint: fp,
			URL:         "https://" + provider + ".example.com/" + fp,
			Domain:      provider + ".example.com",
			Title:       title,
			CleanTitle:  title,
			PublishedAt: &published,
			IsStatic:    static,
		})
		if err != nil {
			t.Fatal(err)
		}
		return id
	}

	insert(a, "alpha", "week 3 rankings", "fp-recent", recent, false)
	insert(a, "alpha", "ancient takes", "fp-old", old, false)
	insert(a, "alpha", "rest of season rankings hub", "fp-static", recent, true)
	insert(b, "beta", "week 4 sleepers", "fp-beta", recent, false)

	since := time.Now().UTC().Add(-72 * time.Hour).Format(time.RFC3339)

	got, err := db.GetRecentArticles(ArticleFilter{Since: since})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("window filter returned %d articles, want 2 (old and static excluded)", len(got))
	}

	got, err = db.GetRecentArticles(ArticleFilter{Since: since, Provider: "beta"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Provider != "beta" {
		t.Errorf("provider filter returned %v", got)
	}

	got, err = db.GetRecentArticles(ArticleFilter{Since: since, Week: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].CleanTitle != "week 3 rankings" {
		t.Errorf("week filter returned %v", got)
	}
}

func TestGetRecentArticlesWeekBoundary(t *testing.T) {
	db := openTestDB(t)
	src := seedTestSource(t, db, "Source A", "alpha")

	published := time.Now().UTC().Format(time.RFC3339)
	insert := func(title, fp string) {
		t.Helper()
		if _, err := db.InsertArticle(Article{
			SourceID: src, Provider: "alpha", Fingerprint: fp,
			URL: "https://alpha.example.com/" + fp, Domain: "alpha.example.com",
			Title: title, CleanTitle: title, PublishedAt: &published,
		}); err != nil {
			t.Fatal(err)
		}
	}
	insert("week 1 rankings update", "fp-w1")
	insert("week 10 rankings update", "fp-w10")
	insert("start em sit em week 1", "fp-w1-tail")

	got, err := db.GetRecentArticles(ArticleFilter{Week: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("week 1 filter returned %d articles, want 2", len(got))
	}
	for _, a := range got {
		if a.CleanTitle == "week 10 rankings update" {
			t.Errorf("week 1 filter matched %q", a.CleanTitle)
		}
	}

	got, err = db.GetRecentArticles(ArticleFilter{Week: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].CleanTitle != "week 10 rankings update" {
		t.Errorf("week 10 filter returned %v", got)
	}
}

func TestGetRecentArticlesExcludesDuplicates(t *testing.T) {
	db := openTestDB(t)
	a := seedTestSource(t, db, "Source A", "alpha")
	b := seedTestSource(t, db, "Source B", "beta")

	published := time.Now().UTC().Format(time.RFC3339)
	id1, err := db.InsertArticle(Article{
		SourceID: a, Provider: "alpha", Fingerprint: "fp", URL: "https://alpha.example.com/s",
		Domain: "alpha.example.com", Title: "s", CleanTitle: "s", PublishedAt: &published,
	})
	if err != nil {
		t.Fatal(err)
	}
	id2, err := db.InsertArticle(Article{
		SourceID: b, Provider: "beta", Fingerprint: "fp", URL: "https://beta.example.com/s",
		Domain: "beta.example.com", Title: "s", CleanTitle: "s", PublishedAt: &published,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.MarkDuplicateOf(id2, id1); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetRecentArticles(ArticleFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != id1 {
		t.Errorf("expected only the canonical row, got %v", got)
	}
}

func TestSourceLifecycle(t *testing.T) {
	db := openTestDB(t)

	rss := "https://example.com/feed.xml"
	id, err := db.UpsertSource(Source{Name: "Example", Provider: "example", RSSURL: &rss, Allowed: true, Priority: 5})
	if err != nil {
		t.Fatal(err)
	}

	// Upserting by name reconfigures rather than duplicating.
	id2, err := db.UpsertSource(Source{Name: "Example", Provider: "example", RSSURL: &rss, Allowed: true, Priority: 9})
	if err != nil {
		t.Fatal(err)
	}
	if id != id2 {
		t.Errorf("upsert by name created a new source: %d then %d", id, id2)
	}

	got, _ := db.GetSource(id)
	if got.Priority != 9 {
		t.Errorf("priority not updated: %d", got.Priority)
	}
	if got.PageBudget != 1 || got.LookbackDays != 3 {
		t.Errorf("defaults not applied: budget=%d lookback=%d", got.PageBudget, got.LookbackDays)
	}

	if err := db.SetSourceAllowed(id, false); err != nil {
		t.Fatal(err)
	}
	allowed, _ := db.GetSources(true)
	if len(allowed) != 0 {
		t.Errorf("disallowed source still listed: %v", allowed)
	}

	if err := db.MarkSourceFailed(id, "fetch timed out"); err != nil {
		t.Fatal(err)
	}
	got, _ = db.GetSource(id)
	if got.LastError == nil || *got.LastError != "fetch timed out" {
		t.Errorf("last error not recorded: %v", got.LastError)
	}
	if err := db.MarkSourceFetched(id); err != nil {
		t.Fatal(err)
	}
	got, _ = db.GetSource(id)
	if got.LastError != nil {
		t.Error("successful fetch should clear the last error")
	}
	if got.LastFetchedAt == nil {
		t.Error("successful fetch should record last_fetched_at")
	}
}

func TestPlayerRoster(t *testing.T) {
	db := openTestDB(t)

	pos := "QB"
	id, err := db.UpsertPlayer(Player{Key: "jacob-browning", Name: "Jacob Browning", Position: &pos, Aliases: []string{"Jake Browning"}, Active: true})
	if err != nil {
		t.Fatal(err)
	}
	id2, err := db.UpsertPlayer(Player{Key: "jacob-browning", Name: "Jacob Browning", Position: &pos, Aliases: []string{"Jake Browning"}, Active: true})
	if err != nil {
		t.Fatal(err)
	}
	if id != id2 {
		t.Errorf("upsert by key created a new player: %d then %d", id, id2)
	}

	if _, err := db.UpsertPlayer(Player{Key: "retired-guy", Name: "Retired Guy", Active: false}); err != nil {
		t.Fatal(err)
	}

	players, err := db.GetActivePlayers()
	if err != nil {
		t.Fatal(err)
	}
	if len(players) != 1 {
		t.Fatalf("expected 1 active player, got %d", len(players))
	}
	if players[0].Aliases[0] != "Jake Browning" {
		t.Errorf("aliases did not round-trip: %v", players[0].Aliases)
	}

	n, _ := db.CountPlayers()
	if n != 2 {
		t.Errorf("roster count = %d, want 2", n)
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	src := seedTestSource(t, db, "Source A", "alpha")
	if _, err := db.InsertArticle(Article{
		SourceID: src, Provider: "alpha", Fingerprint: "fp", URL: "https://alpha.example.com/s",
		Domain: "alpha.example.com", Title: "s", CleanTitle: "s", Topics: []string{"injury"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateJob("ingest", nil); err != nil {
		t.Fatal(err)
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalSources != 1 || stats.AllowedSources != 1 {
		t.Errorf("source counts = %d/%d", stats.TotalSources, stats.AllowedSources)
	}
	if stats.TotalArticles != 1 || stats.TaggedArticles != 1 {
		t.Errorf("article counts = %d/%d", stats.TotalArticles, stats.TaggedArticles)
	}
	if stats.JobsByStatus[JobPending] != 1 {
		t.Errorf("job counts = %v", stats.JobsByStatus)
	}
}
