// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Stage identifies one step of the content pipeline.
type Stage string

const (
	StageResearch Stage = "research"
	StageDraft    Stage = "draft"
	StageHumanize Stage = "humanize"
	StageSEO      Stage = "seo"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageResearch, StageDraft, StageHumanize, StageSEO}

// SectionTag names a bracketed section marker in stage output, e.g. TITLE for [TITLE].
type SectionTag string

const (
	TagMarketData     SectionTag = "MARKET_DATA"
	TagKeyFindings    SectionTag = "KEY_FINDINGS"
	TagRiskFactors    SectionTag = "RISK_FACTORS"
	TagSources        SectionTag = "SOURCES"
	TagTitle          SectionTag = "TITLE"
	TagExcerpt        SectionTag = "EXCERPT"
	TagContent        SectionTag = "CONTENT"
	TagTags           SectionTag = "TAGS"
	TagSEOTitle       SectionTag = "SEO_TITLE"
	TagSEODescription SectionTag = "SEO_DESCRIPTION"
)

// StageResult is the validated output of one stage.
type StageResult struct {
	// Stage is the stage that produced the result.
	Stage Stage `json:"stage" yaml:"stage"`

	// Sections maps each recognized tag to its trimmed content.
	Sections map[SectionTag]string `json:"sections" yaml:"sections"`

	// Valid is true when every required tag of the stage was present.
	Valid bool `json:"valid" yaml:"valid"`

	// Attempts counts model calls made by the stage, including the corrective retry.
	Attempts int `json:"attempts" yaml:"attempts"`

	// Corrected is true when the corrective retry produced the result.
	Corrected bool `json:"corrected,omitempty" yaml:"corrected,omitempty"`
}

// Get returns the content for tag, or "" when absent.
func (r StageResult) Get(tag SectionTag) string {
	if r.Sections == nil {
		return ""
	}
	return r.Sections[tag]
}

// ContentRequest is the input of one pipeline run.
type ContentRequest struct {
	Topic        string   `json:"topic" yaml:"topic"`
	Category     string   `json:"category" yaml:"category"`
	Keywords     []string `json:"keywords" yaml:"keywords"`
	SkipResearch bool     `json:"skip_research,omitempty" yaml:"skip_research,omitempty"`
	SkipHumanize bool     `json:"skip_humanize,omitempty" yaml:"skip_humanize,omitempty"`
	SkipSEO      bool     `json:"skip_seo,omitempty" yaml:"skip_seo,omitempty"`

	// PublishPartial persists the last good article when a stage after
	// Draft fails.
	PublishPartial bool `json:"publish_partial,omitempty" yaml:"publish_partial,omitempty"`
}

// Skips reports whether the request skips stage.
func (r ContentRequest) Skips(stage Stage) bool {
	switch stage {
	case StageResearch:
		return r.SkipResearch
	case StageHumanize:
		return r.SkipHumanize
	case StageSEO:
		return r.SkipSEO
	}
	return false
}

// RunStatus is the terminal status of a pipeline run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// PipelineRun records one article-in-progress.
type PipelineRun struct {
	ID      string         `json:"id" yaml:"id"`
	Request ContentRequest `json:"request" yaml:"request"`

	// Stages holds results in execution order. A stage is absent only when
	// it was skipped by request or when the run terminated at it.
	Stages []StageResult `json:"stages" yaml:"stages"`

	// Skipped lists stages skipped by request flags.
	Skipped []Stage `json:"skipped,omitempty" yaml:"skipped,omitempty"`

	Status      RunStatus `json:"status" yaml:"status"`
	FailedStage Stage     `json:"failed_stage,omitempty" yaml:"failed_stage,omitempty"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time `json:"finished_at" yaml:"finished_at"`
}

// Last returns the most recent stage result, if any.
func (r *PipelineRun) Last() (StageResult, bool) {
	if len(r.Stages) == 0 {
		return StageResult{}, false
	}
	return r.Stages[len(r.Stages)-1], true
}

// Result returns the result for stage, if it ran.
func (r *PipelineRun) Result(stage Stage) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s, true
		}
	}
	return StageResult{}, false
}
