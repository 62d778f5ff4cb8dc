// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// CycleSummary holds counts from one image-generation cycle.
type CycleSummary struct {
	Articles             int `json:"articles" yaml:"articles"`
	HeroGenerated        int `json:"hero_generated" yaml:"hero_generated"`
	InfographicGenerated int `json:"infographic_generated" yaml:"infographic_generated"`
	Errors               int `json:"errors" yaml:"errors"`
	Skipped              int `json:"skipped" yaml:"skipped"`
}

// Total returns the number of assets generated.
func (s CycleSummary) Total() int {
	return s.HeroGenerated + s.InfographicGenerated
}

// HasFailures reports whether any generation failed.
func (s CycleSummary) HasFailures() bool {
	return s.Errors > 0
}

// Add accumulates other into s.
func (s *CycleSummary) Add(other CycleSummary) {
	s.Articles += other.Articles
	s.HeroGenerated += other.HeroGenerated
	s.InfographicGenerated += other.InfographicGenerated
	s.Errors += other.Errors
	s.Skipped += other.Skipped
}

// OrchestratorState is the scheduler's process-wide state.
type OrchestratorState struct {
	Running         bool          `json:"running" yaml:"running"`
	CycleInProgress bool          `json:"cycle_in_progress" yaml:"cycle_in_progress"`
	Interval        time.Duration `json:"interval" yaml:"interval"`
	LastRunAt       *time.Time    `json:"last_run_at,omitempty" yaml:"last_run_at,omitempty"`
	NextRunAt       *time.Time    `json:"next_run_at,omitempty" yaml:"next_run_at,omitempty"`

	// Cumulative counters, reset only by an explicit reset.
	Runs                  int64 `json:"runs" yaml:"runs"`
	HeroGenerated         int64 `json:"hero_generated" yaml:"hero_generated"`
	InfographicsGenerated int64 `json:"infographics_generated" yaml:"infographics_generated"`
	Errors                int64 `json:"errors" yaml:"errors"`
	Skipped               int64 `json:"skipped" yaml:"skipped"`

	// SkippedTriggers counts triggers dropped because a cycle was in flight.
	SkippedTriggers int64 `json:"skipped_triggers" yaml:"skipped_triggers"`

	LastCycle *CycleSummary `json:"last_cycle,omitempty" yaml:"last_cycle,omitempty"`
}
