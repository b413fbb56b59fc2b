package catalog

import "database/sql"

// Schema holds the two provenance relations plus the fetch log. Both page
// tables are keyed by task id with upsert semantics: re-scraping an id
// replaces the prior row, no history is kept.
const Schema = `
-- Raw page provenance: written whenever any bytes were retrieved.
CREATE TABLE IF NOT EXISTS raw_pages (
    id           TEXT PRIMARY KEY,
    url          TEXT NOT NULL,
    fetched_at   INTEGER NOT NULL,
    content_type TEXT NOT NULL DEFAULT '',
    path         TEXT NOT NULL,
    http_status  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_raw_pages_url ON raw_pages(url);

-- Cleaned page provenance: written only when extracted text exists.
CREATE TABLE IF NOT EXISTS cleaned_pages (
    id          TEXT PRIMARY KEY,
    url         TEXT NOT NULL,
    title       TEXT NOT NULL DEFAULT '',
    text_path   TEXT NOT NULL,
    summary     TEXT NOT NULL DEFAULT '',
    lang        TEXT NOT NULL DEFAULT '',
    fingerprint TEXT NOT NULL,
    word_count  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_cleaned_pages_fingerprint ON cleaned_pages(fingerprint);

-- Fetch log (observability, best-effort)
CREATE TABLE IF NOT EXISTS fetch_log (
    id            TEXT PRIMARY KEY,
    task_id       TEXT NOT NULL,
    url           TEXT NOT NULL,
    status        TEXT NOT NULL,
    status_code   INTEGER NOT NULL DEFAULT 0,
    error_message TEXT NOT NULL DEFAULT '',
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    fetched_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_log_task ON fetch_log(task_id, fetched_at DESC);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
