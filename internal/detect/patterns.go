// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package detect

import (
	"math"
	"regexp"
	"strings"

	"github.com/pdiddy/content-engine/pkg/types"
)

// rule contributes weight per match, up to limit matches. With distinct set
// only different match texts count.
type rule struct {
	re       *regexp.Regexp
	weight   float64
	limit    int
	distinct bool
}

const number = `(?:\d{1,2}|three|four|five|six|seven|eight|nine|ten|twelve)`

var rules = map[types.PatternType][]rule{
	types.PatternNumberedList: {
		{re: regexp.MustCompile(`(?i)\btop\s+` + number + `\b`), weight: 0.45, limit: 1},
		{re: regexp.MustCompile(`(?i)\b` + number + `\s+(?:\w+\s+)?(?:ways|tips|reasons|things|lessons|trends|strategies|factors|mistakes|ideas|rules|signs|steps)\b`), weight: 0.45, limit: 1},
		{re: regexp.MustCompile(`(?m)^[ \t]*\d{1,2}[.)][ \t]+\S`), weight: 0.1, limit: 6},
		{re: regexp.MustCompile(`(?i)\b(?:first|second|third|fourth|fifth)(?:ly)?,`), weight: 0.05, limit: 4},
	},
	types.PatternComparison: {
		{re: regexp.MustCompile(`(?i)\s(?:vs\.?|versus)\s`), weight: 0.35, limit: 2},
		{re: regexp.MustCompile(`(?i)\b(?:compared (?:to|with)|in contrast|whereas|on the other hand|unlike)\b`), weight: 0.15, limit: 4},
		{re: regexp.MustCompile(`(?i)\b(?:pros and cons|advantages and disadvantages|differences? between|better than|worse than|higher than|lower than|more than double)\b`), weight: 0.2, limit: 3},
		{re: regexp.MustCompile(`(?m)^\|.*\|.*\|`), weight: 0.1, limit: 3},
	},
	types.PatternStatistics: {
		{re: regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s?(?:%|percent\b)`), weight: 0.1, limit: 6},
		{re: regexp.MustCompile(`(?i)(?:[$€£]\s?\d[\d,.]*(?:\s?(?:trillion|billion|million|bn|m|k)\b)?|\b\d+(?:\.\d+)?\s(?:trillion|billion|million)\b)`), weight: 0.1, limit: 5},
		{re: regexp.MustCompile(`(?i)\b(?:basis points|bps)\b`), weight: 0.1, limit: 2},
		{re: regexp.MustCompile(`(?i)\b(?:increased|decreased|grew|rose|fell|declined|dropped|jumped)\s+(?:by|to)\b`), weight: 0.05, limit: 4},
		{re: regexp.MustCompile(`(?m)(?:^|[ \t(])\d{1,3}(?:,\d{3})+\b`), weight: 0.125, limit: 4},
	},
	types.PatternProcess: {
		{re: regexp.MustCompile(`(?i)\bstep\s*(?:\d+|one|two|three|four|five)\b|\bstep-by-step\b|\b(?:first|next|final|last) step\b`), weight: 0.2, limit: 3},
		{re: regexp.MustCompile(`(?im)(?:^|[.!?]\s+)(?:first|then|next|after that|finally|subsequently|once complete)\b`), weight: 0.08, limit: 5},
		{re: regexp.MustCompile(`(?i)\bhow to\b`), weight: 0.15, limit: 1},
		{re: regexp.MustCompile(`(?i)\b(?:process|procedure|workflow|stages|phases)\b`), weight: 0.05, limit: 3},
		{re: regexp.MustCompile(`(?i)\bpipelines?\b`), weight: 0.15, limit: 4},
	},
	types.PatternTimeline: {
		{re: regexp.MustCompile(`\b(?:19|20)\d{2}\b`), weight: 0.12, limit: 5, distinct: true},
		{re: regexp.MustCompile(`(?i)\b(?:in|by|since|from|until|through)\s+(?:19|20)\d{2}\b`), weight: 0.05, limit: 4},
		{re: regexp.MustCompile(`(?i)\b(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+(?:\d{1,2},\s+)?(?:19|20)\d{2}\b`), weight: 0.1, limit: 3},
		{re: regexp.MustCompile(`\bQ[1-4]\s+(?:19|20)\d{2}\b`), weight: 0.1, limit: 3},
		{re: regexp.MustCompile(`(?i)\b(?:timeline|milestones?|decade|roadmap)\b`), weight: 0.05, limit: 2},
		{re: regexp.MustCompile(`(?i)\bphase\s+(?:\d{1,2}|one|two|three|four|five|i{1,3}|iv|v)\b`), weight: 0.15, limit: 4, distinct: true},
	},
}

// maxSpan caps the length of a reported span in runes.
const maxSpan = 160

// Score rates text for one pattern and returns the confidence, rounded to
// three decimals, with the line holding the earliest contributing match.
func Score(p types.PatternType, text string) (float64, string) {
	var (
		score float64
		first = -1
	)
	for _, r := range rules[p] {
		matches := r.re.FindAllStringIndex(text, -1)
		n := len(matches)
		if r.distinct {
			seen := make(map[string]bool)
			for _, m := range matches {
				seen[text[m[0]:m[1]]] = true
			}
			n = len(seen)
		}
		if n == 0 {
			continue
		}
		score += r.weight * float64(min(n, r.limit))
		if first < 0 || matches[0][0] < first {
			first = matches[0][0]
		}
	}
	if score <= 0 {
		return 0, ""
	}
	return round3(math.Min(score, 1)), spanAt(text, first)
}

// spanAt returns the trimmed line of text containing offset.
func spanAt(text string, offset int) string {
	start := strings.LastIndexByte(text[:offset], '\n') + 1
	end := strings.IndexByte(text[offset:], '\n')
	if end < 0 {
		end = len(text)
	} else {
		end += offset
	}
	line := strings.TrimSpace(text[start:end])
	if r := []rune(line); len(r) > maxSpan {
		line = string(r[:maxSpan])
	}
	return line
}
