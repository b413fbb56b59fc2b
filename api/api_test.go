package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/moisson/catalog"
)

func testServer(t *testing.T) (*httptest.Server, *catalog.Store) {
	t.Helper()
	db, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := catalog.NewStore(db)
	srv := httptest.NewServer(Router(store))
	t.Cleanup(srv.Close)
	return srv, store
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	var body map[string]string
	if code := getJSON(t, srv.URL+"/health", &body); code != 200 {
		t.Fatalf("status: got %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("body: %v", body)
	}
}

func TestGetCleanedPage(t *testing.T) {
	// WHAT: A stored cleaned row is retrievable by id; unknown ids are 404.
	srv, store := testServer(t)

	in := catalog.CleanedPage{
		ID:          "a1b2c3d4e5f6",
		URL:         "https://example.org/x",
		Title:       "X",
		TextPath:    "/clean/x.txt",
		Fingerprint: "feedfeed",
		WordCount:   42,
	}
	if err := store.PutCleaned(context.Background(), in); err != nil {
		t.Fatalf("put: %v", err)
	}

	var out catalog.CleanedPage
	if code := getJSON(t, srv.URL+"/api/cleaned/a1b2c3d4e5f6", &out); code != 200 {
		t.Fatalf("status: got %d", code)
	}
	if out != in {
		t.Errorf("roundtrip mismatch: %+v", out)
	}

	if code := getJSON(t, srv.URL+"/api/cleaned/nope", nil); code != 404 {
		t.Errorf("unknown id: got %d, want 404", code)
	}
}

func TestListRawPages(t *testing.T) {
	srv, store := testServer(t)
	ctx := context.Background()

	for i, id := range []string{"000000000001", "000000000002"} {
		err := store.PutRaw(ctx, catalog.RawPage{ID: id, URL: "https://x.example/", FetchedAt: int64(i), Path: "/raw/p"})
		if err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	var pages []catalog.RawPage
	if code := getJSON(t, srv.URL+"/api/raw?limit=10", &pages); code != 200 {
		t.Fatalf("status: got %d", code)
	}
	if len(pages) != 2 {
		t.Errorf("pages: got %d", len(pages))
	}
}

func TestFingerprintLookup(t *testing.T) {
	srv, store := testServer(t)
	ctx := context.Background()

	fp := "abcd0123abcd0123"
	for _, id := range []string{"000000000001", "000000000002"} {
		err := store.PutCleaned(ctx, catalog.CleanedPage{ID: id, URL: "https://" + id + ".example/", TextPath: "/c", Fingerprint: fp})
		if err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	var out struct {
		Count int                   `json:"count"`
		Pages []catalog.CleanedPage `json:"pages"`
	}
	if code := getJSON(t, srv.URL+"/api/fingerprint/"+fp, &out); code != 200 {
		t.Fatalf("status: got %d", code)
	}
	if out.Count != 2 || len(out.Pages) != 2 {
		t.Errorf("duplicates: count=%d pages=%d", out.Count, len(out.Pages))
	}
}
