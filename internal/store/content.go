package store

import (
	"regexp"
	"strings"
)

var (
	markupTag = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9-]*(\s[^>]*)?/?>`)
	blankLine = regexp.MustCompile(`\r?\n[ \t]*\r?\n`)
)

// NormalizeContent wraps every blank-line separated block of plain text in a
// paragraph element. Content that already contains a tag is returned as is,
// so applying it twice changes nothing.
func NormalizeContent(content string) string {
	if content == "" || markupTag.MatchString(content) {
		return content
	}

	var paragraphs []string
	for _, block := range blankLine.Split(content, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		paragraphs = append(paragraphs, "<p>"+block+"</p>")
	}
	return strings.Join(paragraphs, "\n")
}
