package extractor

import (
	"regexp"
	"strings"
)

var (
	intraLineSpaceRe = regexp.MustCompile(`[ \t\x{00a0}]+`)
	blankRunRe       = regexp.MustCompile(`\n{3,}`)
	zeroWidthRe      = regexp.MustCompile(`[\x{200b}\x{200c}\x{200d}\x{feff}]`)
)

// Normalize cleans extracted text while keeping its line structure: zero
// width runes go away, horizontal whitespace runs collapse to one space,
// runs of blank lines collapse to a single blank line.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = zeroWidthRe.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(intraLineSpaceRe.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
