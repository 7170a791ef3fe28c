package services

import (
	"regexp"
	"strings"
)

// Markdown stripping rules, applied in order. OCR output arrives as
// markdown; chat context reads better as plain text, so callers can opt in
// to stripping before chunking. Line-start markers use + quantifiers so a
// single pass removes stacked markers and the transform is idempotent.
var markupRules = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile("(?s)```[^\n`]*\n?(.*?)\n?```"), "$1"},       // code fences, keep inner text
	{regexp.MustCompile("`([^`]*)`"), "$1"},                          // inline code
	{regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`), ""},                 // images
	{regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`), "$1"},              // links, keep label
	{regexp.MustCompile(`\*\*([^*]+)\*\*`), "$1"},                    // bold
	{regexp.MustCompile(`__([^_]+)__`), "$1"},                        // bold
	{regexp.MustCompile(`\*([^*]+)\*`), "$1"},                        // italic
	{regexp.MustCompile(`_([^_]+)_`), "$1"},                          // italic
	{regexp.MustCompile(`(?m)^(#{1,6}\s+)+`), ""},                    // headers
	{regexp.MustCompile(`(?m)^(\s*[-*+]\s+)+`), ""},                  // bullets
	{regexp.MustCompile(`(?m)^(\s*\d+\.\s+)+`), ""},                  // numbered lists
	{regexp.MustCompile(`(?m)^\s*\|`), ""},                           // table row edges
	{regexp.MustCompile(`(?m)^[-:| ]+$`), ""},                        // table separators
	{regexp.MustCompile(`\n{3,}`), "\n\n"},                           // collapse blank runs
}

// StripMarkup removes markdown formatting from OCR output, keeping the
// readable text. Applying it to already-plain text is a no-op.
func StripMarkup(text string) string {
	for _, rule := range markupRules {
		text = rule.pattern.ReplaceAllString(text, rule.replace)
	}
	return strings.TrimSpace(text)
}
