// Package identity derives stable content-addressed identifiers from URLs
// and text content.
//
// Three kinds of identifiers are produced:
//   - task ids: short hashes used to key catalog rows when the caller did
//     not assign one
//   - artifact names: filesystem-safe names derived from a URL, stable
//     across runs so re-scraping overwrites instead of accumulating files
//   - fingerprints: full content hashes of cleaned text, used downstream
//     for exact-duplicate detection across tasks
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// maxNameLen bounds the path-derived portion of an artifact name.
const maxNameLen = 80

// DeriveID returns a short deterministic id for a URL: the first 12 hex
// characters of its SHA-256 digest.
func DeriveID(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])[:12]
}

// DeriveScopedID returns a short deterministic id for a URL within a scope
// (typically a sub-question id), so the same URL surfaced by two
// sub-questions yields distinct task ids.
func DeriveScopedID(scope, rawURL string) string {
	sum := sha256.Sum256([]byte(scope + "_" + rawURL))
	return hex.EncodeToString(sum[:])[:12]
}

// Fingerprint returns the full SHA-256 hex digest of text.
// Identical text yields identical fingerprints regardless of origin.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ArtifactName returns a filesystem-safe name for a URL:
// "<host>_<path>_<hash16>". The 16-char hash suffix disambiguates URLs
// whose sanitised paths collide (query strings, truncation).
func ArtifactName(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	suffix := hex.EncodeToString(sum[:])[:16]

	host := "unknown"
	name := "root"
	if u, err := url.Parse(rawURL); err == nil {
		if u.Host != "" {
			host = sanitize(u.Host)
		}
		if p := strings.Trim(u.Path, "/"); p != "" {
			name = sanitize(strings.ReplaceAll(p, "/", "_"))
		}
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	if name == "" {
		name = "root"
	}
	return host + "_" + name + "_" + suffix
}

// sanitize keeps only alphanumerics, dashes, underscores, and dots.
func sanitize(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
