// Package runner orchestrates a batch of scrape tasks: fetch, persist raw
// bytes, extract text, classify paywalls, persist cleaned text, one outcome
// per task.
//
// At most Concurrency tasks hold a fetch permit at once. Per-task faults are
// caught at the task boundary and become error outcomes; no task can abort
// the batch.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/hazyhaar/moisson/catalog"
	"github.com/hazyhaar/moisson/extractor"
	"github.com/hazyhaar/moisson/fetch"
	"github.com/hazyhaar/moisson/identity"
)

// Fetcher retrieves one URL with retries.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Extractor turns raw bytes into cleaned text plus metadata.
type Extractor interface {
	Extract(raw []byte, contentType, pageURL string) extractor.Content
}

// Detector classifies extracted text as paywalled or not.
type Detector interface {
	Detect(text string) bool
}

// Catalog persists provenance rows.
type Catalog interface {
	PutRaw(ctx context.Context, p catalog.RawPage) error
	PutCleaned(ctx context.Context, p catalog.CleanedPage) error
	InsertFetchLog(ctx context.Context, e catalog.FetchLogEntry) error
}

// BlobStore persists raw and cleaned artifacts.
type BlobStore interface {
	SaveRaw(name, ext string, data []byte) (string, error)
	SaveCleaned(name, text string) (string, error)
}

// Runner executes batches.
type Runner struct {
	cfg       Config
	fetcher   Fetcher
	extractor Extractor
	detector  Detector
	catalog   Catalog
	blobs     BlobStore
	logger    *slog.Logger
}

// New creates a Runner. All collaborators are required.
func New(cfg Config, f Fetcher, e Extractor, d Detector, c Catalog, b BlobStore, logger *slog.Logger) *Runner {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:       cfg,
		fetcher:   f,
		extractor: e,
		detector:  d,
		catalog:   c,
		blobs:     b,
		logger:    logger,
	}
}

// Run executes every task and returns one outcome per task in completion
// order. Ctx cancellation stops tasks that have not yet acquired a permit;
// they surface as error outcomes.
func (r *Runner) Run(ctx context.Context, tasks []Task) []Outcome {
	runID := uuid.NewString()
	log := r.logger.With("run_id", runID, "tasks", len(tasks))
	log.Info("batch started")

	sem := semaphore.NewWeighted(int64(r.cfg.Concurrency))
	results := make(chan Outcome, len(tasks))
	var wg sync.WaitGroup

	for _, t := range tasks {
		// Callers may omit ids; derive them here so the batch contract
		// holds even when the intake adapter was bypassed.
		if t.ID == "" {
			t.ID = identity.DeriveID(t.URL)
		}
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results <- Outcome{TaskID: t.ID, URL: t.URL, Status: StatusError, Notes: []string{"canceled before start: " + err.Error()}, Meta: t.Meta}
				return
			}
			out := r.runTask(ctx, t)
			sem.Release(1)
			r.recordFetchLog(ctx, t, out)
			results <- out

			// Pacing after the permit is back in the pool; polite to
			// origins without reducing the concurrency ceiling.
			select {
			case <-time.After(r.cfg.PacingDelay):
			case <-ctx.Done():
			}
		}(t)
	}

	wg.Wait()
	close(results)

	outcomes := make([]Outcome, 0, len(tasks))
	for o := range results {
		outcomes = append(outcomes, o)
	}
	log.Info("batch finished", "counts", CountByStatus(outcomes))
	return outcomes
}

// runTask drives one task through the state machine. Panics become error
// outcomes; nothing escapes the task boundary.
func (r *Runner) runTask(ctx context.Context, t Task) (out Outcome) {
	started := time.Now()
	out = Outcome{TaskID: t.ID, URL: t.URL, Meta: t.Meta}
	log := r.logger.With("task_id", t.ID, "url", t.URL)

	defer func() {
		if p := recover(); p != nil {
			out.Status = StatusError
			fault := fmt.Sprintf("internal fault: %v", p)
			out.note(fault)
			log.Error("task panicked", "fault", fault)
		}
		out.DurationMs = time.Since(started).Milliseconds()
	}()

	res, err := r.fetcher.Fetch(ctx, t.URL)
	if err != nil {
		var fe *fetch.Error
		if errors.As(err, &fe) {
			out.HTTPStatus = fe.StatusCode
		}
		out.Status = StatusFetchFailed
		out.note(fmt.Sprintf("fetch_failed_status:%d", out.HTTPStatus))
		out.note(err.Error())
		log.Warn("fetch failed", "error", err)
		return out
	}
	out.HTTPStatus = res.StatusCode

	if res.TooLarge {
		// Record the aborted fetch with an empty raw artifact so the
		// catalog still carries provenance for the URL.
		if err := r.persistRaw(ctx, t, res, &out); err != nil {
			return r.internalFault(&out, log, err)
		}
		out.Status = StatusFetchFailed
		out.note("body_too_large")
		return out
	}
	if len(res.Body) == 0 {
		out.Status = StatusFetchFailed
		out.note("empty_body")
		return out
	}

	if err := r.persistRaw(ctx, t, res, &out); err != nil {
		return r.internalFault(&out, log, err)
	}

	content := r.extractor.Extract(res.Body, res.ContentType, t.URL)
	text := content.Text
	trimmed := strings.TrimSpace(text)

	if r.detector.Detect(text) {
		// Best-effort persistence: keep whatever text we got for
		// post-hoc inspection, but never fail the classification.
		if trimmed != "" {
			if err := r.persistCleaned(ctx, t, content, &out); err != nil {
				log.Warn("cleaned persistence failed on paywalled page", "error", err)
			}
		}
		out.Status = StatusPaywallDetected
		out.note("paywall heuristics")
		return out
	}

	if len(trimmed) < r.cfg.MinTextLen {
		out.Status = StatusExtractionFailed
		out.note(fmt.Sprintf("text_too_short:%d", len(trimmed)))
		return out
	}

	if err := r.persistCleaned(ctx, t, content, &out); err != nil {
		return r.internalFault(&out, log, err)
	}
	out.Status = StatusOK
	if out.HTTPStatus < 200 || out.HTTPStatus > 299 {
		out.note(fmt.Sprintf("non_2xx_status:%d", out.HTTPStatus))
	}
	return out
}

func (r *Runner) internalFault(out *Outcome, log *slog.Logger, err error) Outcome {
	out.Status = StatusError
	out.note(err.Error())
	log.Error("task failed", "error", err)
	return *out
}

// persistRaw writes the raw artifact and its catalog row.
func (r *Runner) persistRaw(ctx context.Context, t Task, res *fetch.Result, out *Outcome) error {
	name := identity.ArtifactName(t.URL)
	rawPath, err := r.blobs.SaveRaw(name, artifactExt(t.URL, res.ContentType), res.Body)
	if err != nil {
		return fmt.Errorf("save raw: %w", err)
	}
	out.RawPath = rawPath
	err = r.catalog.PutRaw(ctx, catalog.RawPage{
		ID:          t.ID,
		URL:         t.URL,
		FetchedAt:   time.Now().Unix(),
		ContentType: res.ContentType,
		Path:        rawPath,
		HTTPStatus:  res.StatusCode,
	})
	if err != nil {
		return fmt.Errorf("catalog raw: %w", err)
	}
	return nil
}

// persistCleaned writes the cleaned text artifact and its catalog row, and
// fills the outcome's content fields.
func (r *Runner) persistCleaned(ctx context.Context, t Task, content extractor.Content, out *Outcome) error {
	textPath, err := r.blobs.SaveCleaned(identity.ArtifactName(t.URL), content.Text)
	if err != nil {
		return fmt.Errorf("save cleaned: %w", err)
	}
	summary := summarize(content.Text)
	fp := identity.Fingerprint(content.Text)
	wc := len(strings.Fields(content.Text))

	err = r.catalog.PutCleaned(ctx, catalog.CleanedPage{
		ID:          t.ID,
		URL:         t.URL,
		Title:       content.Title,
		TextPath:    textPath,
		Summary:     summary,
		Lang:        content.Lang,
		Fingerprint: fp,
		WordCount:   wc,
	})
	if err != nil {
		return fmt.Errorf("catalog cleaned: %w", err)
	}

	out.TextPath = textPath
	out.Title = content.Title
	out.Lang = content.Lang
	out.Summary = summary
	out.Fingerprint = fp
	out.WordCount = wc
	return nil
}

// recordFetchLog appends an observability row. Failures are logged, never
// surfaced.
func (r *Runner) recordFetchLog(ctx context.Context, t Task, out Outcome) {
	err := r.catalog.InsertFetchLog(ctx, catalog.FetchLogEntry{
		ID:         uuid.NewString(),
		TaskID:     t.ID,
		URL:        t.URL,
		Status:     out.Status,
		StatusCode: out.HTTPStatus,
		Error:      strings.Join(out.Notes, "; "),
		DurationMs: out.DurationMs,
		FetchedAt:  time.Now().UnixMilli(),
	})
	if err != nil {
		r.logger.Debug("fetch log insert failed", "task_id", t.ID, "error", err)
	}
}

// artifactExt picks the raw artifact extension from the content type, with
// the URL path extension as fallback.
func artifactExt(pageURL, contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "pdf"):
		return ".pdf"
	case strings.Contains(ct, "text/html"), strings.Contains(ct, "application/xhtml"):
		return ".html"
	}
	if ext := strings.ToLower(path.Ext(stripQuery(pageURL))); ext == ".pdf" || ext == ".html" {
		return ext
	}
	return ".html"
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}

// summarize builds the catalog summary: the first summaryLong runes with
// newlines collapsed and an ellipsis when the text was truncated, or the
// first summaryShort runes untouched when the text is already short.
const (
	summaryLong  = 400
	summaryShort = 200
)

func summarize(text string) string {
	runes := []rune(text)
	if len(runes) > summaryLong {
		head := strings.TrimSpace(strings.ReplaceAll(string(runes[:summaryLong]), "\n", " "))
		return head + "..."
	}
	if len(runes) > summaryShort {
		runes = runes[:summaryShort]
	}
	return string(runes)
}
