// Package blobs persists raw page bytes and cleaned text as files under
// deterministic URL-derived names.
//
// Raw artifacts live under <root>/raw, cleaned text under <root>/clean.
// Paths are stable across runs, so re-scraping a URL overwrites the previous
// artifact instead of accumulating versions. Files are written atomically
// (write .tmp then rename) to prevent partial reads by consumers.
package blobs

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store writes artifacts under a root directory.
type Store struct {
	rawDir   string
	cleanDir string
}

// New creates a Store rooted at dir and ensures both subdirectories exist.
func New(root string) (*Store, error) {
	s := &Store{
		rawDir:   filepath.Join(root, "raw"),
		cleanDir: filepath.Join(root, "clean"),
	}
	for _, d := range []string{s.rawDir, s.cleanDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("blobs: mkdir %s: %w", d, err)
		}
	}
	return s, nil
}

// SaveRaw writes raw page bytes as <root>/raw/<name><ext> and returns the
// path. Zero-length data is valid: size-capped aborts are recorded as empty
// files.
func (s *Store) SaveRaw(name, ext string, data []byte) (string, error) {
	target := filepath.Join(s.rawDir, name+ext)
	if err := writeAtomic(target, data); err != nil {
		return "", fmt.Errorf("blobs: save raw: %w", err)
	}
	return target, nil
}

// SaveCleaned writes cleaned text as <root>/clean/<name>.txt and returns the
// path.
func (s *Store) SaveCleaned(name, text string) (string, error) {
	target := filepath.Join(s.cleanDir, name+".txt")
	if err := writeAtomic(target, []byte(text)); err != nil {
		return "", fmt.Errorf("blobs: save cleaned: %w", err)
	}
	return target, nil
}

// writeAtomic writes data to target via a .tmp sibling and rename.
func writeAtomic(target string, data []byte) error {
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
