// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// PatternType is a visualizable content shape.
type PatternType string

const (
	PatternNumberedList PatternType = "numbered_list"
	PatternComparison   PatternType = "comparison"
	PatternStatistics   PatternType = "statistics"
	PatternProcess      PatternType = "process"
	PatternTimeline     PatternType = "timeline"
)

// Patterns lists every pattern type in tie-break order.
var Patterns = []PatternType{
	PatternNumberedList,
	PatternComparison,
	PatternStatistics,
	PatternProcess,
	PatternTimeline,
}

// DefaultThresholds returns the minimum actionable confidence per pattern.
func DefaultThresholds() map[PatternType]float64 {
	return map[PatternType]float64{
		PatternNumberedList: 0.70,
		PatternComparison:   0.60,
		PatternStatistics:   0.50,
		PatternProcess:      0.60,
		PatternTimeline:     0.60,
	}
}

// DetectionCandidate is one scored pattern match for an article body.
type DetectionCandidate struct {
	Pattern PatternType `json:"pattern" yaml:"pattern"`

	// Span is the first matched text that contributed to the score.
	Span string `json:"span" yaml:"span"`

	// Confidence is in [0, 1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Threshold is the pattern's minimum actionable confidence.
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// Actionable is true when Confidence >= Threshold.
	Actionable bool `json:"actionable" yaml:"actionable"`
}
