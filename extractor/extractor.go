// Package extractor turns raw fetched bytes into cleaned text plus page
// metadata.
//
// HTML goes through a tiered strategy chain: markdown conversion of a pruned
// DOM first, the readability algorithm second, a plain DOM text walk last.
// The first strategy producing enough text wins; when none does, the longest
// candidate is returned and the caller decides whether it is usable. PDF
// bytes take a separate pdfcpu-based path.
package extractor

import (
	"log/slog"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// Content is the result of extraction. Text is normalized cleaned text;
// Title and Lang are best-effort and may be empty (always empty for PDF).
type Content struct {
	Text  string
	Title string
	Lang  string
}

// Strategy is one way of turning raw HTML into Content. Strategies are tried
// in order until one yields viable text.
type Strategy struct {
	Name string
	Fn   func(raw []byte, pageURL string) (Content, error)
}

// Config controls extraction behaviour.
type Config struct {
	// MinTextLen is the minimum cleaned-text length for a strategy's output
	// to be accepted without trying the next tier.
	MinTextLen int
	Logger     *slog.Logger
}

func (c *Config) defaults() {
	if c.MinTextLen <= 0 {
		c.MinTextLen = 100
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Extractor runs the strategy chain. Safe for concurrent use.
type Extractor struct {
	cfg    Config
	mdConv *converter.Converter
	html   []Strategy
}

// New creates an Extractor with the default HTML strategy chain.
func New(cfg Config) *Extractor {
	cfg.defaults()
	e := &Extractor{
		cfg: cfg,
		mdConv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
	}
	e.html = []Strategy{
		{Name: "markdown", Fn: e.extractMarkdown},
		{Name: "readability", Fn: e.extractReadability},
		{Name: "dom", Fn: extractDOM},
	}
	return e
}

// Extract runs the appropriate pipeline for the content. The returned text
// may be shorter than MinTextLen (or empty) when every tier came up short;
// callers treat that as a failed extraction.
func (e *Extractor) Extract(raw []byte, contentType, pageURL string) Content {
	if IsPDF(pageURL, contentType) {
		c, err := extractPDF(raw)
		if err != nil {
			e.cfg.Logger.Debug("pdf extraction failed", "url", pageURL, "error", err)
			return Content{}
		}
		c.Text = Normalize(c.Text)
		return c
	}

	var best Content
	for _, s := range e.html {
		c, err := s.Fn(raw, pageURL)
		if err != nil {
			e.cfg.Logger.Debug("strategy failed", "strategy", s.Name, "url", pageURL, "error", err)
			continue
		}
		c.Text = Normalize(c.Text)
		if len(strings.TrimSpace(c.Text)) >= e.cfg.MinTextLen {
			e.cfg.Logger.Debug("strategy accepted", "strategy", s.Name, "url", pageURL, "chars", len(c.Text))
			return c
		}
		if len(c.Text) > len(best.Text) {
			best = c
		}
	}
	return best
}

// IsPDF reports whether the page should take the PDF path, judged by the
// Content-Type header first and the URL path extension as fallback.
func IsPDF(pageURL, contentType string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "pdf") {
		return true
	}
	u := strings.ToLower(pageURL)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return strings.HasSuffix(u, ".pdf")
}
