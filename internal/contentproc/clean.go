// Package contentproc prepares post content for the enrichment model:
// cleaning problem characters, measuring content, splitting oversized posts
// into overlapping chunks, and merging chunked enrichment results back into
// whole posts.
package contentproc

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Smart punctuation and invisible Unicode that breaks downstream tooling,
// mapped to ASCII-safe equivalents.
var charReplacer = strings.NewReplacer(
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"—", " - ", // em dash
	"–", "-", // en dash
	"…", "...", // ellipsis
	" ", " ", // non-breaking space
	"​", "", // zero-width space
)

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	htmlEntityRE = regexp.MustCompile(`&[a-zA-Z0-9#]+;`)
)

// nonPrintable drops characters that are neither printable nor tab/newline.
var nonPrintable = runes.Remove(runes.Predicate(func(r rune) bool {
	return !unicode.IsPrint(r) && r != '\n' && r != '\t'
}))

// Clean normalizes raw post content: smart quotes and dashes to ASCII,
// leftover HTML entities stripped, whitespace collapsed, non-printable
// characters removed.
func Clean(content string) string {
	if content == "" {
		return content
	}
	cleaned := charReplacer.Replace(content)
	cleaned = htmlEntityRE.ReplaceAllString(cleaned, " ")
	cleaned, _, _ = transform.String(nonPrintable, cleaned)
	cleaned = whitespaceRE.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
