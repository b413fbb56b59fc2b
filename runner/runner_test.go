package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/moisson/catalog"
	"github.com/hazyhaar/moisson/extractor"
	"github.com/hazyhaar/moisson/fetch"
	"github.com/hazyhaar/moisson/identity"
)

// --- fakes ---

type fakeFetcher struct {
	fn func(ctx context.Context, url string) (*fetch.Result, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*fetch.Result, error) {
	return f.fn(ctx, url)
}

type fakeExtractor struct {
	fn func(raw []byte, contentType, pageURL string) extractor.Content
}

func (f *fakeExtractor) Extract(raw []byte, contentType, pageURL string) extractor.Content {
	return f.fn(raw, contentType, pageURL)
}

type fakeDetector struct {
	paywalled bool
}

func (f *fakeDetector) Detect(string) bool { return f.paywalled }

type memCatalog struct {
	mu      sync.Mutex
	raws    map[string]catalog.RawPage
	cleaned map[string]catalog.CleanedPage
	logs    []catalog.FetchLogEntry
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		raws:    make(map[string]catalog.RawPage),
		cleaned: make(map[string]catalog.CleanedPage),
	}
}

func (m *memCatalog) PutRaw(_ context.Context, p catalog.RawPage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raws[p.ID] = p
	return nil
}

func (m *memCatalog) PutCleaned(_ context.Context, p catalog.CleanedPage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleaned[p.ID] = p
	return nil
}

func (m *memCatalog) InsertFetchLog(_ context.Context, e catalog.FetchLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, e)
	return nil
}

type memBlobs struct {
	mu    sync.Mutex
	texts map[string]string
}

func newMemBlobs() *memBlobs { return &memBlobs{texts: make(map[string]string)} }

func (m *memBlobs) SaveRaw(name, ext string, _ []byte) (string, error) {
	return "/data/raw/" + name + ext, nil
}

func (m *memBlobs) SaveCleaned(name, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path := "/data/clean/" + name + ".txt"
	m.texts[path] = text
	return path, nil
}

const longText = `The committee published its annual assessment of grid reliability this
week, covering generation capacity, interconnect utilisation and the growing
share of storage-backed renewables across the three regional markets. The
report runs to two hundred pages and includes scenario modelling out to 2035.`

func testConfig() Config {
	return Config{
		Concurrency: 5,
		PacingDelay: time.Millisecond,
		MinTextLen:  100,
	}
}

func htmlResult(body string) *fetch.Result {
	return &fetch.Result{Body: []byte(body), ContentType: "text/html", StatusCode: 200}
}

func newTestRunner(f Fetcher, e Extractor, d Detector, c Catalog, b BlobStore) *Runner {
	return New(testConfig(), f, e, d, c, b, nil)
}

func hasNote(o Outcome, want string) bool {
	for _, n := range o.Notes {
		if n == want {
			return true
		}
	}
	return false
}

// --- tests ---

func TestRun_OKPath(t *testing.T) {
	// WHAT: A successful task persists raw and cleaned artifacts, and the
	// outcome fingerprint equals the content hash of the persisted text.
	cat := newMemCatalog()
	blobs := newMemBlobs()
	r := newTestRunner(
		&fakeFetcher{fn: func(_ context.Context, _ string) (*fetch.Result, error) { return htmlResult("<html>x</html>"), nil }},
		&fakeExtractor{fn: func(_ []byte, _, _ string) extractor.Content {
			return extractor.Content{Text: longText, Title: "Grid report", Lang: "en"}
		}},
		&fakeDetector{},
		cat, blobs,
	)

	outs := r.Run(context.Background(), []Task{{ID: "task00000001", URL: "https://example.org/grid"}})
	if len(outs) != 1 {
		t.Fatalf("outcomes: got %d", len(outs))
	}
	o := outs[0]
	if o.Status != StatusOK {
		t.Fatalf("status: got %s (%v)", o.Status, o.Notes)
	}
	if o.Title != "Grid report" || o.Lang != "en" {
		t.Errorf("metadata: %q / %q", o.Title, o.Lang)
	}
	if o.RawPath == "" || o.TextPath == "" {
		t.Errorf("paths not set: raw=%q text=%q", o.RawPath, o.TextPath)
	}

	persisted, ok := blobs.texts[o.TextPath]
	if !ok {
		t.Fatalf("cleaned text not persisted at %s", o.TextPath)
	}
	if o.Fingerprint != identity.Fingerprint(persisted) {
		t.Errorf("fingerprint does not match persisted text")
	}

	cp, ok := cat.cleaned["task00000001"]
	if !ok {
		t.Fatal("cleaned row missing")
	}
	if cp.Fingerprint != o.Fingerprint || cp.WordCount != o.WordCount {
		t.Errorf("catalog row mismatch: %+v", cp)
	}
	if _, ok := cat.raws["task00000001"]; !ok {
		t.Error("raw row missing")
	}
}

func TestRun_FetchFailedNoWrites(t *testing.T) {
	// WHAT: A failed fetch produces fetch_failed with the last status code
	// and writes nothing to the catalog.
	cat := newMemCatalog()
	r := newTestRunner(
		&fakeFetcher{fn: func(_ context.Context, url string) (*fetch.Result, error) {
			return nil, &fetch.Error{URL: url, StatusCode: 503, Attempts: 3, Err: errors.New("service unavailable")}
		}},
		&fakeExtractor{fn: func(_ []byte, _, _ string) extractor.Content { return extractor.Content{} }},
		&fakeDetector{},
		cat, newMemBlobs(),
	)

	outs := r.Run(context.Background(), []Task{{ID: "t1", URL: "https://down.example/"}})
	o := outs[0]
	if o.Status != StatusFetchFailed {
		t.Fatalf("status: got %s", o.Status)
	}
	if o.HTTPStatus != 503 {
		t.Errorf("http status: got %d", o.HTTPStatus)
	}
	if len(cat.raws) != 0 || len(cat.cleaned) != 0 {
		t.Error("catalog written on fetch failure")
	}
}

func TestRun_TooLargeRecordsEmptyRaw(t *testing.T) {
	// WHAT: A size-capped abort still writes a raw row with the observed
	// status, never reaches extraction, and carries the body_too_large note.
	cat := newMemCatalog()
	extracted := false
	r := newTestRunner(
		&fakeFetcher{fn: func(_ context.Context, _ string) (*fetch.Result, error) {
			return &fetch.Result{ContentType: "text/html", StatusCode: 200, TooLarge: true}, nil
		}},
		&fakeExtractor{fn: func(_ []byte, _, _ string) extractor.Content {
			extracted = true
			return extractor.Content{}
		}},
		&fakeDetector{},
		cat, newMemBlobs(),
	)

	o := r.Run(context.Background(), []Task{{ID: "t1", URL: "https://big.example/dump"}})[0]
	if o.Status != StatusFetchFailed || !hasNote(o, "body_too_large") {
		t.Fatalf("got %s / %v", o.Status, o.Notes)
	}
	if extracted {
		t.Error("extraction ran on a capped fetch")
	}
	raw, ok := cat.raws["t1"]
	if !ok {
		t.Fatal("raw row missing for capped fetch")
	}
	if raw.HTTPStatus != 200 {
		t.Errorf("raw status: got %d", raw.HTTPStatus)
	}
	if len(cat.cleaned) != 0 {
		t.Error("cleaned row written for capped fetch")
	}
}

func TestRun_ShortTextIsExtractionFailed(t *testing.T) {
	// WHAT: Text under the viability threshold yields extraction_failed and
	// no cleaned record, with the observed length in the note.
	cat := newMemCatalog()
	r := newTestRunner(
		&fakeFetcher{fn: func(_ context.Context, _ string) (*fetch.Result, error) { return htmlResult("<p>hi</p>"), nil }},
		&fakeExtractor{fn: func(_ []byte, _, _ string) extractor.Content { return extractor.Content{Text: "hi"} }},
		&fakeDetector{},
		cat, newMemBlobs(),
	)

	o := r.Run(context.Background(), []Task{{ID: "t1", URL: "https://x.example/"}})[0]
	if o.Status != StatusExtractionFailed {
		t.Fatalf("status: got %s", o.Status)
	}
	if !hasNote(o, "text_too_short:2") {
		t.Errorf("notes: got %v", o.Notes)
	}
	if len(cat.cleaned) != 0 {
		t.Error("cleaned row written despite short text")
	}
	if _, ok := cat.raws["t1"]; !ok {
		t.Error("raw row should exist: bytes were retrieved")
	}
}

func TestRun_PaywallPersistsBestEffort(t *testing.T) {
	// WHAT: A paywalled page is classified paywall_detected and its partial
	// text is still persisted for inspection.
	cat := newMemCatalog()
	r := newTestRunner(
		&fakeFetcher{fn: func(_ context.Context, _ string) (*fetch.Result, error) { return htmlResult("<p>stub</p>"), nil }},
		&fakeExtractor{fn: func(_ []byte, _, _ string) extractor.Content {
			return extractor.Content{Text: "Please subscribe to read. Create an account to continue."}
		}},
		&fakeDetector{paywalled: true},
		cat, newMemBlobs(),
	)

	o := r.Run(context.Background(), []Task{{ID: "t1", URL: "https://paid.example/story"}})[0]
	if o.Status != StatusPaywallDetected {
		t.Fatalf("status: got %s", o.Status)
	}
	if !hasNote(o, "paywall heuristics") {
		t.Errorf("notes: got %v", o.Notes)
	}
	if _, ok := cat.cleaned["t1"]; !ok {
		t.Error("paywalled text not persisted")
	}
}

func TestRun_DerivesMissingTaskIDs(t *testing.T) {
	// WHAT: Tasks submitted without ids get url-derived ids, so two distinct
	// URLs never share a catalog key.
	// WHY: Callers that bypass the intake adapter (MCP, hand-built batches)
	// may submit bare URLs; an empty id would collapse them onto one row.
	cat := newMemCatalog()
	r := newTestRunner(
		&fakeFetcher{fn: func(_ context.Context, _ string) (*fetch.Result, error) { return htmlResult("<p>x</p>"), nil }},
		&fakeExtractor{fn: func(_ []byte, _, _ string) extractor.Content { return extractor.Content{Text: longText} }},
		&fakeDetector{},
		cat, newMemBlobs(),
	)

	outs := r.Run(context.Background(), []Task{
		{URL: "https://a.example/one"},
		{URL: "https://b.example/two"},
	})
	if len(outs) != 2 {
		t.Fatalf("outcomes: got %d", len(outs))
	}
	byURL := make(map[string]string, 2)
	for _, o := range outs {
		if o.TaskID == "" {
			t.Fatalf("empty task id for %s", o.URL)
		}
		if o.TaskID != identity.DeriveID(o.URL) {
			t.Errorf("task id for %s: got %q, want url-derived", o.URL, o.TaskID)
		}
		byURL[o.URL] = o.TaskID
	}
	if byURL["https://a.example/one"] == byURL["https://b.example/two"] {
		t.Error("distinct URLs share a task id")
	}
	if len(cat.raws) != 2 {
		t.Errorf("raw rows: got %d, want 2", len(cat.raws))
	}
}

func TestRun_PanicBecomesErrorOutcome(t *testing.T) {
	// WHAT: A batch where one task panics still returns all N outcomes, with
	// exactly one error outcome carrying the fault in its note.
	r := newTestRunner(
		&fakeFetcher{fn: func(_ context.Context, _ string) (*fetch.Result, error) { return htmlResult("<p>x</p>"), nil }},
		&fakeExtractor{fn: func(_ []byte, _, pageURL string) extractor.Content {
			if strings.Contains(pageURL, "boom") {
				panic("extractor exploded")
			}
			return extractor.Content{Text: longText}
		}},
		&fakeDetector{},
		newMemCatalog(), newMemBlobs(),
	)

	tasks := []Task{
		{ID: "t1", URL: "https://a.example/"},
		{ID: "t2", URL: "https://b.example/boom"},
		{ID: "t3", URL: "https://c.example/"},
	}
	outs := r.Run(context.Background(), tasks)
	if len(outs) != 3 {
		t.Fatalf("outcomes: got %d, want 3", len(outs))
	}

	counts := CountByStatus(outs)
	if counts[StatusError] != 1 {
		t.Fatalf("error outcomes: got %d, want 1", counts[StatusError])
	}
	for _, o := range outs {
		if o.Status == StatusError && !strings.Contains(strings.Join(o.Notes, " "), "extractor exploded") {
			t.Errorf("fault message missing from notes: %v", o.Notes)
		}
	}
}

func TestRun_ConcurrencyCeiling(t *testing.T) {
	// WHAT: With a permit pool of 3 and 12 tasks, peak simultaneous fetch
	// calls never exceed 3.
	var inFlight, peak atomic.Int32
	cfg := testConfig()
	cfg.Concurrency = 3

	r := New(cfg,
		&fakeFetcher{fn: func(_ context.Context, _ string) (*fetch.Result, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			return htmlResult("<p>x</p>"), nil
		}},
		&fakeExtractor{fn: func(_ []byte, _, _ string) extractor.Content { return extractor.Content{Text: longText} }},
		&fakeDetector{},
		newMemCatalog(), newMemBlobs(), nil,
	)

	var tasks []Task
	for i := 0; i < 12; i++ {
		tasks = append(tasks, Task{ID: identity.DeriveID(string(rune('a' + i))), URL: "https://x.example/"})
	}
	outs := r.Run(context.Background(), tasks)
	if len(outs) != 12 {
		t.Fatalf("outcomes: got %d", len(outs))
	}
	if p := peak.Load(); p > 3 {
		t.Errorf("peak concurrent fetches: got %d, want <= 3", p)
	}
}

func TestRun_FetchLogRecorded(t *testing.T) {
	// WHAT: Every task leaves a fetch log row with its terminal status.
	cat := newMemCatalog()
	r := newTestRunner(
		&fakeFetcher{fn: func(_ context.Context, _ string) (*fetch.Result, error) { return htmlResult("<p>x</p>"), nil }},
		&fakeExtractor{fn: func(_ []byte, _, _ string) extractor.Content { return extractor.Content{Text: longText} }},
		&fakeDetector{},
		cat, newMemBlobs(),
	)

	r.Run(context.Background(), []Task{{ID: "t1", URL: "https://x.example/"}})
	if len(cat.logs) != 1 {
		t.Fatalf("log rows: got %d", len(cat.logs))
	}
	if cat.logs[0].Status != StatusOK || cat.logs[0].TaskID != "t1" {
		t.Errorf("log row: %+v", cat.logs[0])
	}
}

func TestSummarize(t *testing.T) {
	// WHAT: Long text is truncated at 400 runes, newline-collapsed, with an
	// ellipsis; shorter text is cut at 200 runes with no ellipsis.
	long := strings.Repeat("word\n", 120) // 600 chars
	s := summarize(long)
	if !strings.HasSuffix(s, "...") {
		t.Errorf("long summary missing ellipsis: %q", s)
	}
	if strings.Contains(s, "\n") {
		t.Error("long summary contains newlines")
	}

	mid := strings.Repeat("a", 300)
	if got := summarize(mid); got != strings.Repeat("a", 200) {
		t.Errorf("mid summary: got %d chars", len(got))
	}

	short := "brief text"
	if got := summarize(short); got != short {
		t.Errorf("short summary: got %q", got)
	}
}

func TestArtifactExt(t *testing.T) {
	cases := []struct {
		url, ct, want string
	}{
		{"https://x.example/a", "text/html; charset=utf-8", ".html"},
		{"https://x.example/a.pdf", "", ".pdf"},
		{"https://x.example/a", "application/pdf", ".pdf"},
		{"https://x.example/a", "application/x-pdf", ".pdf"},
		{"https://x.example/a", "text/pdf", ".pdf"},
		{"https://x.example/a.pdf?download=1", "application/octet-stream", ".pdf"},
		{"https://x.example/a", "application/octet-stream", ".html"},
	}
	for _, tc := range cases {
		if got := artifactExt(tc.url, tc.ct); got != tc.want {
			t.Errorf("artifactExt(%q, %q): got %q, want %q", tc.url, tc.ct, got, tc.want)
		}
	}
}
