// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package textproc cleans and parses model output: banned-phrase scrubbing,
// bracketed section extraction, length limits and Markdown body blocks.
package textproc

import (
	"regexp"
	"sort"
	"strings"
)

// closingPunct never takes a space in front of it after a removal.
const closingPunct = ",.;:!?"

// Scrubber removes banned phrases from text. The zero value and a nil
// *Scrubber leave text unchanged.
type Scrubber struct {
	re *regexp.Regexp
}

// NewScrubber compiles phrases into one case-insensitive alternation,
// longest phrase first so overlapping phrases remove the larger match.
// Blank phrases and case-insensitive duplicates are ignored.
func NewScrubber(phrases []string) *Scrubber {
	clean := MergePhrases(phrases)
	if len(clean) == 0 {
		return &Scrubber{}
	}
	sort.SliceStable(clean, func(i, j int) bool { return len(clean[i]) > len(clean[j]) })

	quoted := make([]string, len(clean))
	for i, p := range clean {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return &Scrubber{re: regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)}
}

// Scrub deletes every occurrence of every banned phrase. Only the
// whitespace touching a removed span is tidied: it collapses to one space
// between words, and to nothing at a line edge or before closing
// punctuation. It repeats until no phrase matches, so removing one
// occurrence can never leave a new one formed from the surrounding text.
// Text without a banned phrase is returned as is.
func (s *Scrubber) Scrub(text string) string {
	if s == nil || s.re == nil {
		return text
	}
	for {
		loc := s.re.FindStringIndex(text)
		if loc == nil {
			return text
		}
		text = splice(text[:loc[0]], text[loc[1]:])
	}
}

// splice joins the text on either side of a removed span.
func splice(left, right string) string {
	l := strings.TrimRight(left, " \t")
	r := strings.TrimLeft(right, " \t")
	hadSpace := len(l) < len(left) || len(r) < len(right)

	atLineStart := l == "" || strings.HasSuffix(l, "\n")
	atLineEnd := r == "" || r[0] == '\n' || r[0] == '\r'
	beforePunct := r != "" && strings.IndexByte(closingPunct, r[0]) >= 0

	if hadSpace && !atLineStart && !atLineEnd && !beforePunct {
		return l + " " + r
	}
	return l + r
}

// Contains reports whether text still holds a banned phrase.
func (s *Scrubber) Contains(text string) bool {
	return s != nil && s.re != nil && s.re.MatchString(text)
}

// MergePhrases trims and de-duplicates phrase lists case-insensitively,
// keeping the first spelling seen.
func MergePhrases(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, p := range list {
			p = strings.TrimSpace(p)
			key := strings.ToLower(p)
			if p == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, p)
		}
	}
	return out
}
