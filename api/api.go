// Package api exposes a read-only HTTP surface over the catalog for
// downstream consumers: raw and cleaned provenance rows plus duplicate
// lookup by fingerprint.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/moisson/catalog"
)

// Router builds the catalog API router.
func Router(store *catalog.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Get("/api/raw", func(w http.ResponseWriter, req *http.Request) {
		pages, err := store.ListRawPages(req.Context(), queryInt(req, "limit", 100))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, pages)
	})

	r.Get("/api/raw/{id}", func(w http.ResponseWriter, req *http.Request) {
		page, err := store.GetRawPage(req.Context(), chi.URLParam(req, "id"))
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, 404, err)
			return
		}
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, page)
	})

	r.Get("/api/cleaned", func(w http.ResponseWriter, req *http.Request) {
		pages, err := store.ListCleanedPages(req.Context(), queryInt(req, "limit", 100))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, pages)
	})

	r.Get("/api/cleaned/{id}", func(w http.ResponseWriter, req *http.Request) {
		page, err := store.GetCleanedPage(req.Context(), chi.URLParam(req, "id"))
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, 404, err)
			return
		}
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, page)
	})

	r.Get("/api/fingerprint/{fp}", func(w http.ResponseWriter, req *http.Request) {
		pages, err := store.FindByFingerprint(req.Context(), chi.URLParam(req, "fp"))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, map[string]any{"count": len(pages), "pages": pages})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
