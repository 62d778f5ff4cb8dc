// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package textproc

import (
	"regexp"
	"strings"
	"unicode"
)

// Length limits for search-engine metadata.
const (
	MaxSEOTitle       = 60
	MaxSEODescription = 155
)

var (
	paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)
	markdownLink   = regexp.MustCompile(`\[[^\]\n]+\]\([^)\s]+\)`)
	bareURL        = regexp.MustCompile(`https?://[^\s)>\]]+`)
)

// TruncateWords shortens s to at most limit runes, cutting at the last word
// boundary when one exists and dropping trailing punctuation left at the cut.
func TruncateWords(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if limit <= 0 {
		return ""
	}
	if len(runes) <= limit {
		return s
	}

	cut := runes[:limit]
	if !unicode.IsSpace(runes[limit]) {
		for i := len(cut) - 1; i > 0; i-- {
			if unicode.IsSpace(cut[i]) {
				cut = cut[:i]
				break
			}
		}
	}
	return strings.TrimRightFunc(string(cut), func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(",;:-–—", r)
	})
}

// Paragraphs splits Markdown on blank lines and returns the trimmed,
// non-empty paragraphs in order.
func Paragraphs(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var out []string
	for _, p := range paragraphBreak.Split(s, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FirstParagraph returns the first non-empty paragraph of s.
func FirstParagraph(s string) string {
	ps := Paragraphs(s)
	if len(ps) == 0 {
		return ""
	}
	return ps[0]
}

// ReplaceFirstParagraph swaps the first paragraph of s for p and leaves the
// rest of the text untouched.
func ReplaceFirstParagraph(s, p string) string {
	first := FirstParagraph(s)
	if first == "" {
		return p
	}
	i := strings.Index(s, first)
	return s[:i] + p + s[i+len(first):]
}

// CountLinks counts Markdown links plus bare URLs outside them.
func CountLinks(s string) int {
	n := len(markdownLink.FindAllStringIndex(s, -1))
	rest := markdownLink.ReplaceAllString(s, "")
	return n + len(bareURL.FindAllStringIndex(rest, -1))
}

// FirstLink returns the first link target in s, or "".
func FirstLink(s string) string {
	if m := markdownLink.FindString(s); m != "" {
		open := strings.LastIndex(m, "(")
		return m[open+1 : len(m)-1]
	}
	return bareURL.FindString(s)
}

// SplitList parses a comma or newline separated list, such as a TAGS
// section, dropping list bullets and blanks.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' })
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(f), "-*•"))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
