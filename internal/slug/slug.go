// Package slug derives URL-friendly identifiers from names and titles.
package slug

import (
	"regexp"
	"strings"
)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)
)

// FromName is the category rule: lower-case, whitespace runs become a hyphen.
// Punctuation is kept.
// Example: "Tech News" → "tech-news"
func FromName(name string) string {
	return whitespace.ReplaceAllString(strings.ToLower(name), "-")
}

// FromTitle builds an article slug. Every run of characters outside [a-z0-9]
// becomes one hyphen and leading/trailing hyphens are trimmed.
// Example: "Hello, World! 2026" → "hello-world-2026"
func FromTitle(title string) string {
	s := nonAlnumRun.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}
