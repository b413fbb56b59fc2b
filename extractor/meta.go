package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// pageMeta pulls the document title and root lang attribute from a parsed
// page. Both may be empty.
func pageMeta(doc *goquery.Document) (title, lang string) {
	title = strings.TrimSpace(doc.Find("title").First().Text())
	lang = strings.TrimSpace(doc.Find("html").AttrOr("lang", ""))
	if title == "" {
		title = strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	}
	return title, lang
}
