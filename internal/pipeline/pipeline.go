// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline turns a topic into an article through the Research,
// Draft, Humanize and SEO stages. Each stage prompts a model through the
// gateway, scrubs banned phrases from the answer and parses its bracketed
// sections. A malformed answer gets one format-only corrective retry.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/content-engine/internal/gateway"
	"github.com/pdiddy/content-engine/internal/metrics"
	"github.com/pdiddy/content-engine/internal/textproc"
	"github.com/pdiddy/content-engine/pkg/types"
)

// Invoker is the part of the gateway the pipeline calls. Tests supply a fake.
type Invoker interface {
	Invoke(ctx context.Context, kind gateway.Kind, prompt string, params gateway.Params) (gateway.Response, error)
}

// ArticleSaver persists finished articles.
type ArticleSaver interface {
	SaveArticle(ctx context.Context, a *types.Article) error
}

// Status tags the outcome of a run.
type Status string

const (
	// Completed runs produced a full article.
	Completed Status = "completed"

	// Partial runs failed after Draft and carry the last good article.
	Partial Status = "partial"

	// Fatal runs failed at Research or Draft and carry no article.
	Fatal Status = "fatal"
)

// Outcome is the tagged result of one run.
type Outcome struct {
	Status Status

	// Article is the final article for Completed and the last good one for
	// Partial. It is nil for Fatal.
	Article *types.Article

	// Stage and Err describe the failure for Partial and Fatal.
	Stage types.Stage
	Err   error

	// Persisted is true when Article was saved to the store.
	Persisted bool

	Run *types.PipelineRun
}

// Pipeline runs content requests.
type Pipeline struct {
	invoker     Invoker
	saver       ArticleSaver
	scrubber    *textproc.Scrubber
	corrective  *template.Template
	categories  map[string]types.CategoryProfile
	autoPublish bool
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// New builds a pipeline. Banned phrases from cfg.BannedPhrasesFile are
// merged with the inline list. A nil saver disables persistence.
func New(invoker Invoker, saver ArticleSaver, cfg types.PipelineConfig, categories map[string]types.CategoryProfile, logger *zap.Logger, m *metrics.Metrics) (*Pipeline, error) {
	if invoker == nil {
		return nil, errors.New("pipeline needs a model invoker")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	phrases := cfg.BannedPhrases
	if cfg.BannedPhrasesFile != "" {
		fromFile, err := textproc.LoadPhraseFile(cfg.BannedPhrasesFile)
		if err != nil {
			return nil, err
		}
		phrases = textproc.MergePhrases(phrases, fromFile)
	}

	text := cfg.CorrectivePrompt
	if strings.TrimSpace(text) == "" {
		text = defaultCorrective
	}
	corrective, err := template.New("corrective").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing corrective prompt: %w", err)
	}

	return &Pipeline{
		invoker:     invoker,
		saver:       saver,
		scrubber:    textproc.NewScrubber(phrases),
		corrective:  corrective,
		categories:  categories,
		autoPublish: cfg.AutoPublish,
		logger:      logger.Named("pipeline"),
		metrics:     m,
	}, nil
}

// Run executes the stages req does not skip, in order. Stage failures are
// reported in the Outcome; the error return is reserved for requests that
// cannot start and for store failures.
func (p *Pipeline) Run(ctx context.Context, req types.ContentRequest) (*Outcome, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrInvalidRequest)
	}

	run := &types.PipelineRun{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    types.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	logger := p.logger.With(zap.String("run_id", run.ID), zap.String("topic", req.Topic))
	logger.Info("run started", zap.String("category", req.Category))

	profile := p.categories[req.Category]
	var article *types.Article

	for _, stage := range types.Stages {
		if req.Skips(stage) {
			run.Skipped = append(run.Skipped, stage)
			logger.Debug("stage skipped", zap.String("stage", string(stage)))
			continue
		}

		data := promptData{
			Topic:    req.Topic,
			Category: req.Category,
			Audience: profile.Audience,
			Context:  profile.Context,
			Keywords: strings.Join(req.Keywords, ", "),
			Article:  serializeArticle(article),
			Format:   formatFor(stage),
		}
		if res, ok := run.Result(types.StageResearch); ok {
			data.Research = textproc.Serialize(res.Sections, contracts[types.StageResearch].Order())
		}

		start := time.Now()
		res, err := p.runStage(ctx, stage, data)
		var link string
		if err == nil && stage == types.StageSEO {
			if link, err = checkSEOEdits(article, res.Sections); err != nil {
				err = &StageError{Stage: stage, Reason: ReasonPolicy, Err: err}
			}
		}
		if err != nil {
			logger.Warn("stage failed",
				zap.String("stage", string(stage)),
				zap.Int("attempts", res.Attempts),
				zap.Error(err))
			return p.finish(ctx, run, article, stage, err)
		}

		run.Stages = append(run.Stages, res)
		article = apply(article, res, link)
		logger.Info("stage complete",
			zap.String("stage", string(stage)),
			zap.Int("attempts", res.Attempts),
			zap.Bool("corrected", res.Corrected),
			zap.Duration("elapsed", time.Since(start)))
	}
	return p.finish(ctx, run, article, "", nil)
}

// runStage makes the stage call and, when the answer is malformed, one
// corrective call.
func (p *Pipeline) runStage(ctx context.Context, stage types.Stage, data promptData) (types.StageResult, error) {
	res := types.StageResult{Stage: stage}
	spec := contracts[stage]
	kind := gateway.KindForStage(stage)

	prompt, err := render(stageTemplates[stage], data)
	if err != nil {
		return res, &StageError{Stage: stage, Reason: ReasonPrompt, Err: err}
	}

	res.Attempts++
	resp, err := p.invoker.Invoke(ctx, kind, prompt, gateway.Params{})
	if err != nil {
		return res, &StageError{Stage: stage, Reason: ReasonBackend, Err: err}
	}
	output := p.scrubber.Scrub(resp.Text)
	sections, err := textproc.ExtractSections(output, spec)
	if err == nil {
		res.Sections, res.Valid = sections, true
		return res, nil
	}

	p.logger.Info("malformed stage output, retrying with corrective prompt",
		zap.String("stage", string(stage)), zap.Error(err))
	prompt, rerr := render(p.corrective, correctiveData{
		Stage:  stage,
		Error:  err.Error(),
		Format: data.Format,
		Output: output,
	})
	if rerr != nil {
		return res, &StageError{Stage: stage, Reason: ReasonPrompt, Err: rerr}
	}

	res.Attempts++
	resp, err = p.invoker.Invoke(ctx, kind, prompt, gateway.Params{})
	if err != nil {
		return res, &StageError{Stage: stage, Reason: ReasonBackend, Err: err}
	}
	sections, err = textproc.ExtractSections(p.scrubber.Scrub(resp.Text), spec)
	if err != nil {
		return res, &StageError{Stage: stage, Reason: ReasonFormat, Err: err}
	}
	res.Sections, res.Valid, res.Corrected = sections, true, true
	return res, nil
}

// apply folds a stage result into the article-so-far.
func apply(prev *types.Article, res types.StageResult, link string) *types.Article {
	if res.Stage == types.StageResearch {
		return prev
	}
	a := &types.Article{}
	if prev != nil {
		*a = *prev
	}
	if v := res.Get(types.TagTitle); v != "" {
		a.Title = v
	}
	if v := res.Get(types.TagExcerpt); v != "" {
		a.Excerpt = v
	}
	if v := res.Get(types.TagContent); v != "" {
		a.Body = textproc.SplitBlocks(v)
	}
	if res.Stage == types.StageDraft {
		a.Tags = textproc.SplitList(res.Get(types.TagTags))
	}
	if res.Stage == types.StageSEO {
		a.SEOTitle = textproc.TruncateWords(res.Get(types.TagSEOTitle), textproc.MaxSEOTitle)
		a.SEODescription = textproc.TruncateWords(res.Get(types.TagSEODescription), textproc.MaxSEODescription)
		a.ExternalLink = link
	}
	return a
}

// finish tags the outcome, persists what the request allows and records
// the run.
func (p *Pipeline) finish(ctx context.Context, run *types.PipelineRun, article *types.Article, stage types.Stage, stageErr error) (*Outcome, error) {
	run.FinishedAt = time.Now().UTC()
	out := &Outcome{Run: run, Stage: stage, Err: stageErr}

	switch {
	case stageErr == nil:
		out.Status = Completed
		run.Status = types.RunSucceeded
	case article == nil:
		out.Status = Fatal
		run.Status = types.RunFailed
	default:
		out.Status = Partial
		run.Status = types.RunFailed
	}
	if stageErr != nil {
		run.FailedStage = stage
		run.Error = stageErr.Error()
		p.metrics.IncStageFailure(string(stage), reasonFor(stageErr))
	}
	p.metrics.IncPipelineRun(string(out.Status))

	if article != nil {
		out.Article = p.finalize(article, run.Request)
	}

	logger := p.logger.With(zap.String("run_id", run.ID))
	save := out.Status == Completed || (out.Status == Partial && run.Request.PublishPartial)
	if save && p.saver != nil {
		if err := p.saver.SaveArticle(ctx, out.Article); err != nil {
			logger.Error("saving article failed", zap.Error(err))
			return out, fmt.Errorf("saving article: %w", err)
		}
		out.Persisted = true
	}

	logger.Info("run finished",
		zap.String("status", string(out.Status)),
		zap.Bool("persisted", out.Persisted),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)))
	return out, nil
}

// finalize fills identity and metadata on a copy of the article.
func (p *Pipeline) finalize(a *types.Article, req types.ContentRequest) *types.Article {
	out := *a
	out.ID = uuid.NewString()
	out.Slug = Slugify(out.Title)
	out.Category = req.Category
	out.Keywords = req.Keywords
	out.Status = types.ArticleDraft
	if p.autoPublish {
		out.Status = types.ArticlePublished
	}
	if out.SEOTitle == "" {
		out.SEOTitle = textproc.TruncateWords(out.Title, textproc.MaxSEOTitle)
	}
	if out.SEODescription == "" {
		out.SEODescription = textproc.TruncateWords(out.Excerpt, textproc.MaxSEODescription)
	}
	now := time.Now().UTC()
	out.CreatedAt, out.UpdatedAt = now, now
	return &out
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// maxSlug caps slug length in bytes.
const maxSlug = 80

// Slugify lowercases title and joins its alphanumeric runs with hyphens.
func Slugify(title string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(s) > maxSlug {
		s = strings.TrimRight(s[:maxSlug], "-")
	}
	if s == "" {
		s = "article"
	}
	return s
}
