package extractor

import (
	"bytes"
	"fmt"
	nurl "net/url"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// boilerplateAttrRe matches class/id values of chrome elements that carry no
// article content.
var boilerplateAttrRe = regexp.MustCompile(`(?i)\b(sidebar|banner|advert|ads|promo|cookie|popup|modal|share|social|related|breadcrumb|comment)s?\b`)

// boilerplateTags are pruned wholesale before markdown conversion.
var boilerplateTags = "script,style,noscript,nav,footer,aside,header,form,iframe,svg,button"

// extractMarkdown is the first-tier strategy: prune the DOM down to likely
// content, sanitize, then convert to markdown. Tables and headings survive,
// link targets do not (anchors are unwrapped to their text).
func (e *Extractor) extractMarkdown(raw []byte, pageURL string) (Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return Content{}, fmt.Errorf("parse html: %w", err)
	}

	title, lang := pageMeta(doc)

	doc.Find(boilerplateTags).Remove()
	doc.Find(`[role="navigation"],[role="banner"],[role="complementary"],[aria-hidden="true"]`).Remove()
	doc.Find("[class],[id]").Each(func(_ int, s *goquery.Selection) {
		attr := s.AttrOr("class", "") + " " + s.AttrOr("id", "")
		if boilerplateAttrRe.MatchString(attr) {
			s.Remove()
		}
	})
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style := strings.ReplaceAll(s.AttrOr("style", ""), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			s.Remove()
		}
	})
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		if inner, err := s.Html(); err == nil {
			s.ReplaceWithHtml(inner)
		}
	})

	body, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(body) == "" {
		if body, err = doc.Html(); err != nil {
			return Content{}, fmt.Errorf("serialize html: %w", err)
		}
	}

	safe := bluemonday.UGCPolicy().Sanitize(body)
	md, err := e.mdConv.ConvertString(safe, converter.WithDomain(pageURL))
	if err != nil {
		return Content{}, fmt.Errorf("markdown convert: %w", err)
	}
	return Content{Text: md, Title: title, Lang: lang}, nil
}

// extractReadability is the second-tier strategy: the Mozilla readability
// algorithm, which scores DOM subtrees and keeps the main article.
func (e *Extractor) extractReadability(raw []byte, pageURL string) (Content, error) {
	u, err := nurl.Parse(pageURL)
	if err != nil {
		return Content{}, fmt.Errorf("parse url: %w", err)
	}
	article, err := readability.FromReader(bytes.NewReader(raw), u)
	if err != nil {
		return Content{}, fmt.Errorf("readability: %w", err)
	}

	lang := article.Language
	title := article.Title
	if lang == "" || title == "" {
		if doc, derr := goquery.NewDocumentFromReader(bytes.NewReader(raw)); derr == nil {
			t, l := pageMeta(doc)
			if title == "" {
				title = t
			}
			if lang == "" {
				lang = l
			}
		}
	}
	return Content{Text: article.TextContent, Title: title, Lang: lang}, nil
}

// domSkipTags are excluded from the last-resort text walk.
var domSkipTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Aside:    true,
}

// extractDOM is the last-resort strategy: strip obvious non-content tags and
// join every remaining text node on newlines.
func extractDOM(raw []byte, _ string) (Content, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return Content{}, fmt.Errorf("parse html: %w", err)
	}

	var title, lang string
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if domSkipTags[n.DataAtom] {
				return
			}
			switch n.DataAtom {
			case atom.Html:
				for _, a := range n.Attr {
					if a.Key == "lang" && lang == "" {
						lang = a.Val
					}
				}
			case atom.Title:
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return Content{Text: sb.String(), Title: title, Lang: lang}, nil
}
