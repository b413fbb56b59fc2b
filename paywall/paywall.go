// Package paywall classifies extracted text as paywalled using fixed
// keyword heuristics. Detection is a content classification, not an error:
// partially recovered text behind a paywall is still worth persisting.
package paywall

import "strings"

// DefaultKeywords is the fixed signal set scanned case-insensitively.
var DefaultKeywords = []string{
	"subscribe", "subscription", "paywall", "members-only",
	"sign up to continue", "create an account", "login to read",
}

const (
	// minSignalLen is the length below which text carries too little signal
	// to classify.
	minSignalLen = 200
	// shortStubLen is the ceiling for the short-stub rule.
	shortStubLen = 500
	// minMatches is the distinct-keyword count that decides the primary rule.
	minMatches = 2
)

// Detector classifies text using keyword heuristics. The zero value is not
// usable; construct with New.
type Detector struct {
	keywords []string
}

// New returns a Detector over DefaultKeywords.
func New() *Detector {
	return &Detector{keywords: DefaultKeywords}
}

// Detect reports whether text looks paywalled. Pure function of its input.
//
// Rules, evaluated independently and ORed:
//   - two or more distinct keywords present
//   - trimmed text under 500 chars containing "subscribe" (short stubs that
//     the count rule would miss)
//
// Text under 200 chars is never classified as paywalled.
func (d *Detector) Detect(text string) bool {
	if len(text) < minSignalLen {
		return false
	}
	lower := strings.ToLower(text)

	matches := 0
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			matches++
		}
	}
	if matches >= minMatches {
		return true
	}
	if len(strings.TrimSpace(text)) < shortStubLen && strings.Contains(lower, "subscribe") {
		return true
	}
	return false
}
