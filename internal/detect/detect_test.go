// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/content-engine/pkg/types"
)

func newDetector(t *testing.T, overrides map[string]float64) *Detector {
	t.Helper()
	d, err := New(overrides)
	require.NoError(t, err)
	return d
}

func TestDetectNumberedList(t *testing.T) {
	d := newDetector(t, nil)
	got := d.Detect("Top 5 ways to finance climate projects")
	require.Len(t, got, 1)
	assert.Equal(t, types.PatternNumberedList, got[0].Pattern)
	assert.InDelta(t, 0.9, got[0].Confidence, 1e-9)
	assert.Equal(t, 0.7, got[0].Threshold)
	assert.True(t, got[0].Actionable)
	assert.Equal(t, "Top 5 ways to finance climate projects", got[0].Span)
}

func TestDetectStatisticsRanksFirst(t *testing.T) {
	body := "Lending grew by 12% in 2023, reaching $4.5 billion. Default rates fell to 1.2%. " +
		"Margins rose to 8.5% and fees dropped by 30 basis points."
	d := newDetector(t, nil)
	got := d.Detect(body)
	require.Len(t, got, 2)

	assert.Equal(t, types.PatternStatistics, got[0].Pattern)
	assert.InDelta(t, 0.7, got[0].Confidence, 1e-9)
	assert.True(t, got[0].Actionable)

	assert.Equal(t, types.PatternTimeline, got[1].Pattern)
	assert.InDelta(t, 0.17, got[1].Confidence, 1e-9)
	assert.False(t, got[1].Actionable)

	top, ok := d.Top(body)
	require.True(t, ok)
	assert.Equal(t, types.PatternStatistics, top.Pattern)
}

func TestDetectComparison(t *testing.T) {
	body := "Debt vs equity: which is cheaper? Compared to equity, debt costs less. Unlike equity, debt must be repaid."
	got := newDetector(t, nil).Detect(body)
	require.NotEmpty(t, got)
	assert.Equal(t, types.PatternComparison, got[0].Pattern)
	assert.InDelta(t, 0.65, got[0].Confidence, 1e-9)
	assert.True(t, got[0].Actionable)
}

func TestDetectBelowThresholdKept(t *testing.T) {
	d := newDetector(t, nil)
	got := d.Detect("This process has stages.")
	require.Len(t, got, 1)
	assert.Equal(t, types.PatternProcess, got[0].Pattern)
	assert.InDelta(t, 0.1, got[0].Confidence, 1e-9)
	assert.False(t, got[0].Actionable)

	_, ok := d.Top("This process has stages.")
	assert.False(t, ok)
}

func TestDetectEmpty(t *testing.T) {
	d := newDetector(t, nil)
	assert.Empty(t, d.Detect(""))
	assert.Empty(t, d.Detect("   \n"))
	assert.Empty(t, d.Detect("Plain words without any shape."))
}

func TestDetectDeterministic(t *testing.T) {
	body := "Step 1: apply. Then wait. In 2021 and 2024 rates rose by 3%. Top 3 tips vs old habits."
	d := newDetector(t, nil)
	assert.Equal(t, d.Detect(body), d.Detect(body))
	for _, c := range d.Detect(body) {
		assert.GreaterOrEqual(t, c.Confidence, 0.0)
		assert.LessOrEqual(t, c.Confidence, 1.0)
		assert.Equal(t, c.Confidence >= c.Threshold, c.Actionable)
	}
}

func TestDetectHTML(t *testing.T) {
	body := `<h2>Top 5 ways to cut costs</h2><ol><li>Negotiate</li><li>Automate</li><li>Consolidate</li></ol>`
	got := newDetector(t, nil).Detect(body)
	require.NotEmpty(t, got)
	assert.Equal(t, types.PatternNumberedList, got[0].Pattern)
	assert.Equal(t, 1.0, got[0].Confidence)
}

func TestNormalizeHTMLTable(t *testing.T) {
	text := normalize(`<table><tr><th>Debt</th><th>Equity</th></tr><tr><td>cheap</td><td>costly</td></tr></table>`)
	assert.Equal(t, "| Debt | Equity |\n| cheap | costly |", text)
	assert.Equal(t, "no markup", normalize("no markup"))
}

func TestThresholdOverrides(t *testing.T) {
	d := newDetector(t, map[string]float64{"Statistics": 0.8})
	assert.Equal(t, 0.8, d.Threshold(types.PatternStatistics))
	assert.Equal(t, 0.7, d.Threshold(types.PatternNumberedList))

	_, err := New(map[string]float64{"heatmap": 0.5})
	assert.Error(t, err)
	_, err = New(map[string]float64{"timeline": 1.5})
	assert.Error(t, err)
}

func TestSortTieBreak(t *testing.T) {
	cs := []types.DetectionCandidate{
		{Pattern: types.PatternTimeline, Confidence: 0.6},
		{Pattern: types.PatternComparison, Confidence: 0.6},
		{Pattern: types.PatternStatistics, Confidence: 0.9},
		{Pattern: types.PatternNumberedList, Confidence: 0.6},
	}
	sortCandidates(cs)
	got := make([]types.PatternType, len(cs))
	for i, c := range cs {
		got[i] = c.Pattern
	}
	assert.Equal(t, []types.PatternType{
		types.PatternStatistics, types.PatternNumberedList, types.PatternComparison, types.PatternTimeline,
	}, got)
}

func TestScoreClampsAndRounds(t *testing.T) {
	body := "1. a\n2. b\n3. c\n4. d\n5. e\n6. f\n7. g\nTop 7 tips for 7 ways"
	score, span := Score(types.PatternNumberedList, body)
	assert.Equal(t, 1.0, score)
	assert.Equal(t, "1. a", span)

	score, _ = Score(types.PatternNumberedList, "")
	assert.Equal(t, 0.0, score)
}

func TestDetectPhasedTimeline(t *testing.T) {
	body := "Phase 1 covers design. Phase 2 builds pilots. Phase 3 scales lending. Phase 4 hands over to local banks."
	got := newDetector(t, nil).Detect(body)
	require.Len(t, got, 1)
	assert.Equal(t, types.PatternTimeline, got[0].Pattern)
	assert.InDelta(t, 0.6, got[0].Confidence, 1e-9)
	assert.True(t, got[0].Actionable)
}

func TestDetectPipelineProcess(t *testing.T) {
	body := "The deal pipeline is strong. A pipeline review runs weekly. The pipeline feeds the committee. Each pipeline entry is scored."
	got := newDetector(t, nil).Detect(body)
	require.Len(t, got, 1)
	assert.Equal(t, types.PatternProcess, got[0].Pattern)
	assert.InDelta(t, 0.6, got[0].Confidence, 1e-9)
	assert.True(t, got[0].Actionable)
}

func TestDetectBareLargeNumbers(t *testing.T) {
	body := "12,500 farmers, 3,400 firms, 48,000 households, 1,200,000 hectares"
	got := newDetector(t, nil).Detect(body)
	require.Len(t, got, 1)
	assert.Equal(t, types.PatternStatistics, got[0].Pattern)
	assert.InDelta(t, 0.5, got[0].Confidence, 1e-9)
	assert.True(t, got[0].Actionable)
	assert.Equal(t, body, got[0].Span)

	score, _ := Score(types.PatternStatistics, "Raised $12,500 from donors.")
	assert.InDelta(t, 0.1, score, 1e-9, "currency amounts are not counted twice")
}
