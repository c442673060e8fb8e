package database

import (
	"database/sql"
	"fmt"
)

// UpsertSource inserts a source by name or updates its configuration if it
// already exists. Returns the source ID.
func (db *DB) UpsertSource(s Source) (int64, error) {
	var id int64
	err := db.conn.QueryRow(
		`INSERT INTO sources (name, provider, homepage_url, rss_url, sitemap_url, adapter,
			fetch_mode, allowed, priority, category, scrape_selector, page_budget, lookback_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			provider = excluded.provider,
			homepage_url = excluded.homepage_url,
			rss_url = excluded.rss_url,
			sitemap_url = excluded.sitemap_url,
			adapter = excluded.adapter,
			fetch_mode = excluded.fetch_mode,
			allowed = excluded.allowed,
			priority = excluded.priority,
			category = excluded.category,
			scrape_selector = excluded.scrape_selector,
			page_budget = excluded.page_budget,
			lookback_days = excluded.lookback_days
		RETURNING id`,
		s.Name, s.Provider, s.HomepageURL, s.RSSURL, s.SitemapURL, s.Adapter,
		s.FetchMode, boolInt(s.Allowed), s.Priority, s.Category, s.ScrapeSelector,
		defaultInt(s.PageBudget, 1), defaultInt(s.LookbackDays, 3),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting source %q: %w", s.Name, err)
	}
	return id, nil
}

// GetSource returns a source by ID, or nil if not found.
func (db *DB) GetSource(id int64) (*Source, error) {
	row := db.conn.QueryRow(selectSources+" WHERE id = ?", id)
	s, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetSources returns all sources ordered by priority descending. If
// allowedOnly is set, only ingestion-eligible sources are returned.
func (db *DB) GetSources(allowedOnly bool) ([]Source, error) {
	query := selectSources
	if allowedOnly {
		query += " WHERE allowed = 1"
	}
	query += " ORDER BY priority DESC, name"

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		s, err := scanSourceRows(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *s)
	}
	return sources, rows.Err()
}

// SetSourceAllowed toggles ingestion eligibility for a source.
func (db *DB) SetSourceAllowed(id int64, allowed bool) error {
	_, err := db.conn.Exec("UPDATE sources SET allowed = ? WHERE id = ?", boolInt(allowed), id)
	return err
}

// MarkSourceFetched records a successful fetch and clears any prior error.
func (db *DB) MarkSourceFetched(id int64) error {
	_, err := db.conn.Exec(
		"UPDATE sources SET last_fetched_at = ?, last_error = NULL WHERE id = ?", Now(), id,
	)
	return err
}

// MarkSourceFailed records the last fetch error for a source.
func (db *DB) MarkSourceFailed(id int64, message string) error {
	_, err := db.conn.Exec(
		"UPDATE sources SET last_fetched_at = ?, last_error = ? WHERE id = ?", Now(), message, id,
	)
	return err
}

const selectSources = `SELECT id, name, provider, homepage_url, rss_url, sitemap_url, adapter,
	fetch_mode, allowed, priority, category, scrape_selector, page_budget, lookback_days,
	last_fetched_at, last_error, created_at FROM sources`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSourceFields(r rowScanner) (*Source, error) {
	var s Source
	var allowed int
	if err := r.Scan(&s.ID, &s.Name, &s.Provider, &s.HomepageURL, &s.RSSURL, &s.SitemapURL,
		&s.Adapter, &s.FetchMode, &allowed, &s.Priority, &s.Category, &s.ScrapeSelector,
		&s.PageBudget, &s.LookbackDays, &s.LastFetchedAt, &s.LastError, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Allowed = allowed != 0
	return &s, nil
}

func scanSource(row *sql.Row) (*Source, error)       { return scanSourceFields(row) }
func scanSourceRows(rows *sql.Rows) (*Source, error) { return scanSourceFields(rows) }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func defaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
