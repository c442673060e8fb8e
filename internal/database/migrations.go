package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    provider TEXT NOT NULL,
    homepage_url TEXT,
    rss_url TEXT,
    sitemap_url TEXT,
    adapter TEXT,
    fetch_mode TEXT,
    allowed INTEGER DEFAULT 1,
    priority INTEGER DEFAULT 0,
    category TEXT,
    scrape_selector TEXT,
    page_budget INTEGER DEFAULT 1,
    lookback_days INTEGER DEFAULT 3,
    last_fetched_at TEXT,
    last_error TEXT,
    created_at TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
);

CREATE TABLE IF NOT EXISTS articles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id INTEGER NOT NULL REFERENCES sources(id),
    provider TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    url TEXT NOT NULL,
    domain TEXT,
    title TEXT NOT NULL,
    clean_title TEXT NOT NULL,
    slug TEXT,
    description TEXT,
    image_url TEXT,
    sport TEXT DEFAULT 'nfl',
    topics TEXT DEFAULT '[]',
    players TEXT DEFAULT '[]',
    published_at TEXT,
    discovered_at TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
    is_static INTEGER DEFAULT 0,
    canonical_of INTEGER REFERENCES articles(id),
    UNIQUE(source_id, fingerprint)
);

CREATE TABLE IF NOT EXISTS players (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    key TEXT UNIQUE NOT NULL,
    name TEXT NOT NULL,
    position TEXT,
    team TEXT,
    aliases TEXT DEFAULT '[]',
    active INTEGER DEFAULT 1
);

CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('pending', 'running', 'succeeded', 'failed')),
    params TEXT,
    message TEXT,
    error TEXT,
    progress INTEGER DEFAULT 0,
    created_at TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
    started_at TEXT,
    finished_at TEXT
);

CREATE TABLE IF NOT EXISTS job_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id TEXT NOT NULL REFERENCES jobs(id),
    seq INTEGER NOT NULL,
    level TEXT NOT NULL DEFAULT 'info',
    message TEXT NOT NULL,
    meta TEXT,
    created_at TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
    UNIQUE(job_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_articles_fingerprint ON articles(fingerprint);
CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at);
CREATE INDEX IF NOT EXISTS idx_articles_provider ON articles(provider);
CREATE INDEX IF NOT EXISTS idx_job_events_job ON job_events(job_id, seq);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
