// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package detect scores an article body for content shapes that make a
// good infographic. Scoring is pure and deterministic: each pattern is a
// weighted sum of capped regular-expression hit counts, clamped to [0, 1].
package detect

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pdiddy/content-engine/pkg/types"
)

// Detector holds the per-pattern thresholds of one deployment.
type Detector struct {
	thresholds map[types.PatternType]float64
}

// New builds a detector from the default thresholds with overrides keyed
// by pattern name. Unknown names and values outside [0, 1] are rejected.
func New(overrides map[string]float64) (*Detector, error) {
	th := types.DefaultThresholds()
	for name, v := range overrides {
		p := types.PatternType(strings.ToLower(strings.TrimSpace(name)))
		if _, ok := th[p]; !ok {
			return nil, fmt.Errorf("unknown pattern %q in detector thresholds", name)
		}
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("threshold for %s must be within [0, 1], got %v", p, v)
		}
		th[p] = v
	}
	return &Detector{thresholds: th}, nil
}

// Threshold returns the actionable threshold for p.
func (d *Detector) Threshold(p types.PatternType) float64 {
	return d.thresholds[p]
}

// Detect scores body against every pattern. Patterns that score zero are
// omitted. The rest are returned most confident first, ties broken by the
// fixed order of types.Patterns. Candidates below their threshold are
// kept with Actionable false. HTML bodies are reduced to text first.
func (d *Detector) Detect(body string) []types.DetectionCandidate {
	text := normalize(body)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var out []types.DetectionCandidate
	for _, p := range types.Patterns {
		score, span := Score(p, text)
		if score <= 0 {
			continue
		}
		th := d.thresholds[p]
		out = append(out, types.DetectionCandidate{
			Pattern:    p,
			Span:       span,
			Confidence: score,
			Threshold:  th,
			Actionable: score >= th,
		})
	}
	sortCandidates(out)
	return out
}

// Top returns the most confident actionable candidate for body.
func (d *Detector) Top(body string) (types.DetectionCandidate, bool) {
	return Top(d.Detect(body))
}

// Top returns the first actionable candidate of an already sorted list.
func Top(candidates []types.DetectionCandidate) (types.DetectionCandidate, bool) {
	for _, c := range candidates {
		if c.Actionable {
			return c, true
		}
	}
	return types.DetectionCandidate{}, false
}

func sortCandidates(cs []types.DetectionCandidate) {
	order := make(map[types.PatternType]int, len(types.Patterns))
	for i, p := range types.Patterns {
		order[p] = i
	}
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Confidence != cs[j].Confidence {
			return cs[i].Confidence > cs[j].Confidence
		}
		return order[cs[i].Pattern] < order[cs[j].Pattern]
	})
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
