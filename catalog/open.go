package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// Open opens the catalog SQLite database at path with production-safe
// pragmas and applies the schema. Parent directories are created as needed.
// The caller must blank-import a driver registering "sqlite"
// (modernc.org/sqlite).
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("catalog: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("catalog: %s: %w", p, err)
		}
	}

	if err := ApplySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	return db, nil
}
