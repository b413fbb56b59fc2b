// Package catalog is the durable record of raw-page and cleaned-page
// provenance, keyed by task id.
//
// The pipeline writes two independent relations: raw_pages (whenever bytes
// were retrieved, extraction outcome notwithstanding) and cleaned_pages
// (whenever non-empty text was extracted, paywall classification
// notwithstanding). Writes are upserts and are serialised through a single
// mutex; reads serve downstream consumers and may run concurrently.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// RawPage is one row of the raw_pages relation.
type RawPage struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	FetchedAt   int64  `json:"fetched_at"` // epoch seconds
	ContentType string `json:"content_type"`
	Path        string `json:"path"`
	HTTPStatus  int    `json:"http_status"`
}

// CleanedPage is one row of the cleaned_pages relation.
type CleanedPage struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	TextPath    string `json:"text_path"`
	Summary     string `json:"summary"`
	Lang        string `json:"lang"`
	Fingerprint string `json:"fingerprint"`
	WordCount   int    `json:"word_count"`
}

// FetchLogEntry records one fetch attempt outcome (observability).
type FetchLogEntry struct {
	ID         string `json:"id"`
	TaskID     string `json:"task_id"`
	URL        string `json:"url"`
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	Error      string `json:"error_message"`
	DurationMs int64  `json:"duration_ms"`
	FetchedAt  int64  `json:"fetched_at"` // epoch milliseconds
}

// ErrNotFound is returned by point reads when no row matches.
var ErrNotFound = errors.New("catalog: not found")

// Store wraps the catalog database. Writes are serialised by mu.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore creates a Store from an already-opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// PutRaw upserts a raw page row. Called once per task that produced any
// bytes, including zero-length size-capped aborts.
func (s *Store) PutRaw(ctx context.Context, p RawPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO raw_pages (id, url, fetched_at, content_type, path, http_status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.URL, p.FetchedAt, p.ContentType, p.Path, p.HTTPStatus,
	)
	if err != nil {
		return fmt.Errorf("catalog: put raw %s: %w", p.ID, err)
	}
	return nil
}

// PutCleaned upserts a cleaned page row. Called once per task that produced
// non-empty extracted text, paywall-flagged or not.
func (s *Store) PutCleaned(ctx context.Context, p CleanedPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cleaned_pages (id, url, title, text_path, summary, lang, fingerprint, word_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.URL, p.Title, p.TextPath, p.Summary, p.Lang, p.Fingerprint, p.WordCount,
	)
	if err != nil {
		return fmt.Errorf("catalog: put cleaned %s: %w", p.ID, err)
	}
	return nil
}

// InsertFetchLog records a fetch attempt. Best-effort observability.
func (s *Store) InsertFetchLog(ctx context.Context, e FetchLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fetch_log (id, task_id, url, status, status_code, error_message, duration_ms, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TaskID, e.URL, e.Status, e.StatusCode, e.Error, e.DurationMs, e.FetchedAt,
	)
	return err
}

// GetRawPage returns the raw page row for id, or ErrNotFound.
func (s *Store) GetRawPage(ctx context.Context, id string) (*RawPage, error) {
	var p RawPage
	err := s.db.QueryRowContext(ctx,
		`SELECT id, url, fetched_at, content_type, path, http_status
		FROM raw_pages WHERE id = ?`, id,
	).Scan(&p.ID, &p.URL, &p.FetchedAt, &p.ContentType, &p.Path, &p.HTTPStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get raw %s: %w", id, err)
	}
	return &p, nil
}

// GetCleanedPage returns the cleaned page row for id, or ErrNotFound.
func (s *Store) GetCleanedPage(ctx context.Context, id string) (*CleanedPage, error) {
	var p CleanedPage
	err := s.db.QueryRowContext(ctx,
		`SELECT id, url, title, text_path, summary, lang, fingerprint, word_count
		FROM cleaned_pages WHERE id = ?`, id,
	).Scan(&p.ID, &p.URL, &p.Title, &p.TextPath, &p.Summary, &p.Lang, &p.Fingerprint, &p.WordCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get cleaned %s: %w", id, err)
	}
	return &p, nil
}

// ListRawPages returns raw page rows, newest first.
func (s *Store) ListRawPages(ctx context.Context, limit int) ([]*RawPage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, fetched_at, content_type, path, http_status
		FROM raw_pages ORDER BY fetched_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: list raw: %w", err)
	}
	defer rows.Close()

	var result []*RawPage
	for rows.Next() {
		var p RawPage
		if err := rows.Scan(&p.ID, &p.URL, &p.FetchedAt, &p.ContentType, &p.Path, &p.HTTPStatus); err != nil {
			return nil, fmt.Errorf("catalog: scan raw: %w", err)
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}

// ListCleanedPages returns cleaned page rows ordered by id.
func (s *Store) ListCleanedPages(ctx context.Context, limit int) ([]*CleanedPage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, title, text_path, summary, lang, fingerprint, word_count
		FROM cleaned_pages ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: list cleaned: %w", err)
	}
	defer rows.Close()

	var result []*CleanedPage
	for rows.Next() {
		var p CleanedPage
		if err := rows.Scan(&p.ID, &p.URL, &p.Title, &p.TextPath, &p.Summary, &p.Lang, &p.Fingerprint, &p.WordCount); err != nil {
			return nil, fmt.Errorf("catalog: scan cleaned: %w", err)
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}

// FindByFingerprint returns all cleaned pages sharing a fingerprint, the
// exact-duplicate set for downstream dedup.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) ([]*CleanedPage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, title, text_path, summary, lang, fingerprint, word_count
		FROM cleaned_pages WHERE fingerprint = ? ORDER BY id`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("catalog: find fingerprint: %w", err)
	}
	defer rows.Close()

	var result []*CleanedPage
	for rows.Next() {
		var p CleanedPage
		if err := rows.Scan(&p.ID, &p.URL, &p.Title, &p.TextPath, &p.Summary, &p.Lang, &p.Fingerprint, &p.WordCount); err != nil {
			return nil, fmt.Errorf("catalog: scan cleaned: %w", err)
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}
