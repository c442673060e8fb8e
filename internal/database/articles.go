package database

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// InsertArticle inserts an article keyed by (source_id, fingerprint). The
// uniqueness constraint is the dedup authority: if a concurrent writer already
// inserted the same fingerprint for this source, the row is refreshed instead.
// A refresh never regresses a non-empty topic set to empty.
func (db *DB) InsertArticle(a Article) (int64, error) {
	var id int64
	err := db.conn.QueryRow(
		`INSERT INTO articles (source_id, provider, fingerprint, url, domain, title, clean_title,
			slug, description, image_url, sport, topics, players, published_at, discovered_at, is_static)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, fingerprint) DO UPDATE SET
			title = excluded.title,
			clean_title = excluded.clean_title,
			description = COALESCE(excluded.description, articles.description),
			image_url = COALESCE(excluded.image_url, articles.image_url),
			published_at = COALESCE(excluded.published_at, articles.published_at),
			topics = CASE WHEN excluded.topics = '[]' THEN articles.topics ELSE excluded.topics END,
			players = CASE WHEN excluded.players = '[]' THEN articles.players ELSE excluded.players END
		RETURNING id`,
		a.SourceID, a.Provider, a.Fingerprint, a.URL, a.Domain, a.Title, a.CleanTitle,
		a.Slug, a.Description, a.ImageURL, sport(a.Sport), encodeStrings(a.Topics),
		encodeStrings(a.Players), a.PublishedAt, Now(), boolInt(a.IsStatic),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting article %q: %w", a.URL, err)
	}
	return id, nil
}

// RefreshArticle applies a re-ingestion update to an existing article:
// title and image may change upstream, published time may be backfilled, and
// classification is replaced unless the new sets are empty.
func (db *DB) RefreshArticle(id int64, title, cleanTitle string, imageURL, publishedAt *string, topics, players []string) error {
	_, err := db.conn.Exec(
		`UPDATE articles SET
			title = ?,
			clean_title = ?,
			image_url = COALESCE(?, image_url),
			published_at = COALESCE(?, published_at),
			topics = CASE WHEN ? = '[]' THEN topics ELSE ? END,
			players = CASE WHEN ? = '[]' THEN players ELSE ? END
		WHERE id = ?`,
		title, cleanTitle, imageURL, publishedAt,
		encodeStrings(topics), encodeStrings(topics),
		encodeStrings(players), encodeStrings(players), id,
	)
	return err
}

// MarkDuplicateOf points an article at its canonical (earliest-discovered) row.
func (db *DB) MarkDuplicateOf(id, canonicalID int64) error {
	_, err := db.conn.Exec("UPDATE articles SET canonical_of = ? WHERE id = ?", canonicalID, id)
	return err
}

// UnionArticleTags merges additional topic and player tags into an article.
// Used when a syndicated copy from another source carries tags the canonical
// row is missing.
func (db *DB) UnionArticleTags(id int64, topics, players []string) error {
	a, err := db.GetArticleByID(id)
	if err != nil {
		return err
	}
	if a == nil {
		return fmt.Errorf("article %d not found", id)
	}

	merged := func(have, add []string) []string {
		seen := make(map[string]struct{}, len(have))
		out := append([]string(nil), have...)
		for _, s := range have {
			seen[s] = struct{}{}
		}
		for _, s := range add {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				out = append(out, s)
			}
		}
		return out
	}

	_, err = db.conn.Exec(
		"UPDATE articles SET topics = ?, players = ? WHERE id = ?",
		encodeStrings(merged(a.Topics, topics)), encodeStrings(merged(a.Players, players)), id,
	)
	return err
}

// GetArticleByID returns a single article by ID, or nil if not found.
func (db *DB) GetArticleByID(id int64) (*Article, error) {
	row := db.conn.QueryRow(selectArticles+" WHERE id = ?", id)
	a, err := scanArticleFields(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetArticleBySourceFingerprint returns the article for a (source, fingerprint)
// pair, or nil if none exists.
func (db *DB) GetArticleBySourceFingerprint(sourceID int64, fingerprint string) (*Article, error) {
	row := db.conn.QueryRow(selectArticles+" WHERE source_id = ? AND fingerprint = ?", sourceID, fingerprint)
	a, err := scanArticleFields(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetCanonicalByFingerprint returns the earliest-discovered article carrying
// the fingerprint across all sources, or nil if none exists. Rows already
// marked as duplicates are ignored.
func (db *DB) GetCanonicalByFingerprint(fingerprint string) (*Article, error) {
	row := db.conn.QueryRow(
		selectArticles+` WHERE fingerprint = ? AND canonical_of IS NULL
		ORDER BY discovered_at ASC, id ASC LIMIT 1`, fingerprint,
	)
	a, err := scanArticleFields(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ArticleFilter narrows the candidate set for a retrieval query.
type ArticleFilter struct {
	Since    string // inclusive lower bound on COALESCE(published_at, discovered_at)
	Provider string // restrict to one provider if set
	Week     int    // restrict to titles mentioning "week N" if > 0
	Limit    uint64
}

// GetRecentArticles returns non-duplicate articles in the filter window,
// newest first. The retrieval layer applies section resolution and provider
// interleaving on top of this candidate set.
func (db *DB) GetRecentArticles(f ArticleFilter) ([]Article, error) {
	builder := sq.Select(articleColumns...).
		From("articles").
		Where("canonical_of IS NULL").
		Where(sq.Eq{"is_static": 0}).
		OrderBy("COALESCE(published_at, discovered_at) DESC", "id DESC")

	if f.Since != "" {
		builder = builder.Where(sq.GtOrEq{"COALESCE(published_at, discovered_at)": f.Since})
	}
	if f.Provider != "" {
		builder = builder.Where(sq.Eq{"provider": f.Provider})
	}
	if f.Week > 0 {
		// clean_title is space-separated words, so "week N" is always followed
		// by a space or the end of the title. A bare substring match would let
		// week 1 swallow week 10 through week 19.
		token := fmt.Sprintf("week %d", f.Week)
		builder = builder.Where(sq.Or{
			sq.Like{"clean_title": "%" + token + " %"},
			sq.Like{"clean_title": "%" + token},
		})
	}
	if f.Limit > 0 {
		builder = builder.Limit(f.Limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building article query: %w", err)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// CountArticlesForSource returns the number of persisted articles for a source.
func (db *DB) CountArticlesForSource(sourceID int64) (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM articles WHERE source_id = ?", sourceID).Scan(&n)
	return n, err
}

// GetStats returns aggregate counts for the status command.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{JobsByStatus: make(map[string]int)}

	row := db.conn.QueryRow(`SELECT
		(SELECT COUNT(*) FROM sources),
		(SELECT COUNT(*) FROM sources WHERE allowed = 1),
		(SELECT COUNT(*) FROM articles),
		(SELECT COUNT(*) FROM articles WHERE topics != '[]'),
		(SELECT COUNT(*) FROM players)`)
	if err := row.Scan(&s.TotalSources, &s.AllowedSources, &s.TotalArticles,
		&s.TaggedArticles, &s.TotalPlayers); err != nil {
		return nil, err
	}

	rows, err := db.conn.Query("SELECT status, COUNT(*) FROM jobs GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		s.JobsByStatus[status] = count
	}
	return s, rows.Err()
}

var articleColumns = []string{
	"id", "source_id", "provider", "fingerprint", "url", "domain", "title", "clean_title",
	"slug", "description", "image_url", "sport", "topics", "players",
	"published_at", "discovered_at", "is_static", "canonical_of",
}

const selectArticles = `SELECT id, source_id, provider, fingerprint, url, domain, title, clean_title,
	slug, description, image_url, sport, topics, players,
	published_at, discovered_at, is_static, canonical_of FROM articles`

func scanArticleFields(r rowScanner) (*Article, error) {
	var a Article
	var isStatic int
	var topics, players *string
	if err := r.Scan(&a.ID, &a.SourceID, &a.Provider, &a.Fingerprint, &a.URL, &a.Domain,
		&a.Title, &a.CleanTitle, &a.Slug, &a.Description, &a.ImageURL, &a.Sport,
		&topics, &players, &a.PublishedAt, &a.DiscoveredAt, &isStatic, &a.CanonicalOf); err != nil {
		return nil, err
	}
	a.Topics = decodeStrings(topics)
	a.Players = decodeStrings(players)
	a.IsStatic = isStatic != 0
	return &a, nil
}

func scanArticles(rows *sql.Rows) ([]Article, error) {
	var articles []Article
	for rows.Next() {
		a, err := scanArticleFields(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

func sport(s string) string {
	if s == "" {
		return "nfl"
	}
	return s
}
