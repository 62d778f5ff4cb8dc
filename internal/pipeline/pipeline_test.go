// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/content-engine/internal/gateway"
	"github.com/pdiddy/content-engine/internal/metrics"
	"github.com/pdiddy/content-engine/internal/textproc"
	"github.com/pdiddy/content-engine/pkg/types"
)

type reply struct {
	text string
	err  error
}

// fakeInvoker answers each kind from a queue and records prompts.
type fakeInvoker struct {
	mu      sync.Mutex
	replies map[gateway.Kind][]reply
	prompts map[gateway.Kind][]string
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		replies: make(map[gateway.Kind][]reply),
		prompts: make(map[gateway.Kind][]string),
	}
}

func (f *fakeInvoker) on(kind gateway.Kind, rs ...reply) *fakeInvoker {
	f.replies[kind] = append(f.replies[kind], rs...)
	return f
}

func (f *fakeInvoker) Invoke(_ context.Context, kind gateway.Kind, prompt string, _ gateway.Params) (gateway.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts[kind] = append(f.prompts[kind], prompt)
	q := f.replies[kind]
	if len(q) == 0 {
		return gateway.Response{}, fmt.Errorf("unexpected %s call", kind)
	}
	f.replies[kind] = q[1:]
	if q[0].err != nil {
		return gateway.Response{}, q[0].err
	}
	return gateway.Response{Text: q[0].text}, nil
}

type fakeSaver struct {
	saved []types.Article
	err   error
}

func (s *fakeSaver) SaveArticle(_ context.Context, a *types.Article) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, *a)
	return nil
}

// tagged builds a bracketed answer from alternating tag and content values.
func tagged(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, "[%s]\n%s\n[/%s]\n", pairs[i], pairs[i+1], pairs[i])
	}
	return b.String()
}

const (
	restOfBody = "## Market size\n\nDeals reached $15 billion in 2024.\n\n## Outlook\n\nGrowth should continue."
	draftTitle = "Blended Finance in 2025"
)

var (
	researchReply = reply{text: "Notes first.\n" + tagged(
		"MARKET_DATA", "Deals reached $15 billion.",
		"KEY_FINDINGS", "Private capital follows guarantees.",
	)}
	draftReply = reply{text: tagged(
		"TITLE", draftTitle,
		"EXCERPT", "How blended finance is scaling.",
		"CONTENT", "Blended finance mixes public and private capital.\n\n"+restOfBody,
		"TAGS", "blended finance, dfi",
	)}
	humanizeReply = reply{text: tagged(
		"CONTENT", "Blended finance is a game-changing tool that combines public and private capital.\n\n"+restOfBody,
	)}
	seoReply = reply{text: tagged(
		"TITLE", "Blended Finance 2025: Public Money, Private Capital",
		"SEO_TITLE", "Blended Finance 2025: How Public Money Unlocks Private Capital at Scale",
		"SEO_DESCRIPTION", "What blended finance is and how it scales.",
		"CONTENT", "Blended finance, the mix of public and private capital, is scaling fast.\n\n"+restOfBody+
			"\n\nSource: [IFC blended finance](https://www.ifc.org/blended-finance)",
		"EXCERPT", "How blended finance is scaling.",
	)}
)

func newTestPipeline(t *testing.T, inv Invoker, saver ArticleSaver, cfg types.PipelineConfig) *Pipeline {
	t.Helper()
	categories := map[string]types.CategoryProfile{
		"dfi-insights": {Audience: "DFI investment officers", Context: "Focus on emerging markets."},
	}
	p, err := New(inv, saver, cfg, categories, zap.NewNop(), metrics.New())
	require.NoError(t, err)
	return p
}

func TestRunCompletes(t *testing.T) {
	inv := newFakeInvoker().
		on(gateway.KindResearch, researchReply).
		on(gateway.KindDraft, draftReply).
		on(gateway.KindHumanize, humanizeReply).
		on(gateway.KindSEO, seoReply)
	saver := &fakeSaver{}
	p := newTestPipeline(t, inv, saver, types.PipelineConfig{
		BannedPhrases: []string{"game-changing"},
		AutoPublish:   true,
	})

	out, err := p.Run(context.Background(), types.ContentRequest{
		Topic:    "Blended finance",
		Category: "dfi-insights",
		Keywords: []string{"blended finance"},
	})
	require.NoError(t, err)
	require.Equal(t, Completed, out.Status)
	assert.NoError(t, out.Err)
	assert.True(t, out.Persisted)

	run := out.Run
	assert.Equal(t, types.RunSucceeded, run.Status)
	require.Len(t, run.Stages, 4)
	for i, stage := range types.Stages {
		assert.Equal(t, stage, run.Stages[i].Stage)
		assert.True(t, run.Stages[i].Valid)
		assert.Equal(t, 1, run.Stages[i].Attempts)
	}
	assert.Empty(t, run.Skipped)

	humanized := run.Stages[2].Get(types.TagContent)
	assert.True(t, strings.HasPrefix(humanized, "Blended finance is a tool that combines"), humanized)

	a := out.Article
	require.NotNil(t, a)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "Blended Finance 2025: Public Money, Private Capital", a.Title)
	assert.Equal(t, "blended-finance-2025-public-money-private-capital", a.Slug)
	assert.Equal(t, "Blended Finance 2025: How Public Money Unlocks Private", a.SEOTitle)
	assert.Equal(t, "What blended finance is and how it scales.", a.SEODescription)
	assert.Equal(t, "How blended finance is scaling.", a.Excerpt)
	assert.Equal(t, []string{"blended finance", "dfi"}, a.Tags)
	assert.Equal(t, "https://www.ifc.org/blended-finance", a.ExternalLink)
	assert.Equal(t, types.ArticlePublished, a.Status)
	assert.Equal(t, "dfi-insights", a.Category)
	require.Len(t, a.Body, 3)
	assert.Equal(t, "Outlook", a.Body[2].Heading)

	require.Len(t, saver.saved, 1)
	assert.Equal(t, a.ID, saver.saved[0].ID)

	researchPrompt := inv.prompts[gateway.KindResearch][0]
	assert.Contains(t, researchPrompt, "DFI investment officers")
	assert.Contains(t, researchPrompt, "Focus on emerging markets.")
	assert.Contains(t, researchPrompt, "[MARKET_DATA]")
	assert.Contains(t, inv.prompts[gateway.KindDraft][0], "Private capital follows guarantees.")
	assert.Contains(t, inv.prompts[gateway.KindSEO][0], "Blended finance is a tool that combines")
}

func TestRunSkipsStages(t *testing.T) {
	inv := newFakeInvoker().on(gateway.KindDraft, draftReply)
	p := newTestPipeline(t, inv, nil, types.PipelineConfig{})

	out, err := p.Run(context.Background(), types.ContentRequest{
		Topic:        "Blended finance",
		SkipResearch: true,
		SkipHumanize: true,
		SkipSEO:      true,
	})
	require.NoError(t, err)
	require.Equal(t, Completed, out.Status)
	assert.False(t, out.Persisted)
	assert.Equal(t, []types.Stage{types.StageResearch, types.StageHumanize, types.StageSEO}, out.Run.Skipped)
	require.Len(t, out.Run.Stages, 1)
	assert.Equal(t, types.StageDraft, out.Run.Stages[0].Stage)

	assert.Equal(t, draftTitle, out.Article.SEOTitle)
	assert.Equal(t, "How blended finance is scaling.", out.Article.SEODescription)
	assert.Equal(t, types.ArticleDraft, out.Article.Status)
	assert.NotContains(t, inv.prompts[gateway.KindDraft][0], "Base the article on this research")
}

func TestRunCorrectiveRetry(t *testing.T) {
	malformed := tagged("TITLE", draftTitle, "CONTENT", "Body text.")
	inv := newFakeInvoker().on(gateway.KindDraft, reply{text: malformed}, draftReply)
	p := newTestPipeline(t, inv, nil, types.PipelineConfig{})

	out, err := p.Run(context.Background(), types.ContentRequest{
		Topic: "Blended finance", SkipResearch: true, SkipHumanize: true, SkipSEO: true,
	})
	require.NoError(t, err)
	require.Equal(t, Completed, out.Status)

	res := out.Run.Stages[0]
	assert.Equal(t, 2, res.Attempts)
	assert.True(t, res.Corrected)
	require.Len(t, inv.prompts[gateway.KindDraft], 2)
	assert.Contains(t, inv.prompts[gateway.KindDraft][1], "could not be parsed")
	assert.Contains(t, inv.prompts[gateway.KindDraft][1], "Body text.")
	assert.Contains(t, inv.prompts[gateway.KindDraft][1], "[EXCERPT]")
}

func TestRunCorrectiveRetryFails(t *testing.T) {
	malformed := reply{text: tagged("TITLE", draftTitle)}
	inv := newFakeInvoker().on(gateway.KindDraft, malformed, malformed)
	saver := &fakeSaver{}
	p := newTestPipeline(t, inv, saver, types.PipelineConfig{})

	out, err := p.Run(context.Background(), types.ContentRequest{
		Topic: "Blended finance", SkipResearch: true, PublishPartial: true,
	})
	require.NoError(t, err)
	assert.Equal(t, Fatal, out.Status)
	assert.Nil(t, out.Article)
	assert.Equal(t, types.StageDraft, out.Stage)
	assert.ErrorIs(t, out.Err, textproc.ErrFormat)

	var se *StageError
	require.ErrorAs(t, out.Err, &se)
	assert.Equal(t, ReasonFormat, se.Reason)
	assert.Len(t, inv.prompts[gateway.KindDraft], 2)
	assert.Empty(t, out.Run.Stages)
	assert.Equal(t, types.RunFailed, out.Run.Status)
	assert.Empty(t, saver.saved)
}

func TestRunCustomCorrectivePrompt(t *testing.T) {
	malformed := reply{text: "no sections at all"}
	inv := newFakeInvoker().on(gateway.KindDraft, malformed, draftReply)
	p := newTestPipeline(t, inv, nil, types.PipelineConfig{CorrectivePrompt: "FIX {{.Stage}}\n{{.Format}}"})

	_, err := p.Run(context.Background(), types.ContentRequest{
		Topic: "Blended finance", SkipResearch: true, SkipHumanize: true, SkipSEO: true,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(inv.prompts[gateway.KindDraft][1], "FIX draft\n"))

	_, err = New(inv, nil, types.PipelineConfig{CorrectivePrompt: "{{.Stage"}, nil, nil, nil)
	assert.Error(t, err)
}

func TestRunResearchFailureIsFatal(t *testing.T) {
	inv := newFakeInvoker().on(gateway.KindResearch, reply{
		err: fmt.Errorf("research backend after 3 attempt(s): %w", gateway.ErrTimeout),
	})
	saver := &fakeSaver{}
	p := newTestPipeline(t, inv, saver, types.PipelineConfig{})

	out, err := p.Run(context.Background(), types.ContentRequest{Topic: "Blended finance"})
	require.NoError(t, err)
	assert.Equal(t, Fatal, out.Status)
	assert.Equal(t, types.StageResearch, out.Stage)
	assert.ErrorIs(t, out.Err, gateway.ErrTimeout)
	assert.Nil(t, out.Article)
	assert.Equal(t, types.StageResearch, out.Run.FailedStage)
	assert.Empty(t, inv.prompts[gateway.KindDraft])
	assert.Empty(t, saver.saved)
}

func TestRunHumanizeFailureIsPartial(t *testing.T) {
	for _, publish := range []bool{false, true} {
		t.Run(fmt.Sprintf("publish_partial=%v", publish), func(t *testing.T) {
			inv := newFakeInvoker().
				on(gateway.KindDraft, draftReply).
				on(gateway.KindHumanize, reply{err: gateway.ErrRateLimited})
			saver := &fakeSaver{}
			p := newTestPipeline(t, inv, saver, types.PipelineConfig{})

			out, err := p.Run(context.Background(), types.ContentRequest{
				Topic: "Blended finance", SkipResearch: true, PublishPartial: publish,
			})
			require.NoError(t, err)
			assert.Equal(t, Partial, out.Status)
			assert.Equal(t, types.StageHumanize, out.Stage)
			assert.ErrorIs(t, out.Err, gateway.ErrRateLimited)
			require.NotNil(t, out.Article)
			assert.Equal(t, draftTitle, out.Article.Title)
			require.Len(t, out.Run.Stages, 1)
			assert.Empty(t, inv.prompts[gateway.KindSEO])

			assert.Equal(t, publish, out.Persisted)
			if publish {
				assert.Len(t, saver.saved, 1)
			} else {
				assert.Empty(t, saver.saved)
			}
		})
	}
}

func TestRunSEOPolicyViolation(t *testing.T) {
	rewritten := tagged(
		"TITLE", "A new title",
		"SEO_TITLE", "A new title",
		"SEO_DESCRIPTION", "A description.",
		"CONTENT", "New intro.\n\n"+strings.Replace(restOfBody, "should continue", "will continue", 1),
	)
	inv := newFakeInvoker().
		on(gateway.KindDraft, draftReply).
		on(gateway.KindSEO, reply{text: rewritten}, seoReply)
	p := newTestPipeline(t, inv, nil, types.PipelineConfig{})

	out, err := p.Run(context.Background(), types.ContentRequest{
		Topic: "Blended finance", SkipResearch: true, SkipHumanize: true,
	})
	require.NoError(t, err)
	assert.Equal(t, Partial, out.Status)
	assert.Equal(t, types.StageSEO, out.Stage)
	assert.ErrorIs(t, out.Err, ErrPolicy)

	var se *StageError
	require.ErrorAs(t, out.Err, &se)
	assert.Equal(t, ReasonPolicy, se.Reason)
	assert.Len(t, inv.prompts[gateway.KindSEO], 1, "policy violations are never retried")
	assert.Equal(t, draftTitle, out.Article.Title)
}

func TestRunScrubKeepsUnrelatedSpacing(t *testing.T) {
	body := "Opening line.\n\nRates rose.  Then fell.\n indented note"
	draft := tagged(
		"TITLE", "Rates",
		"EXCERPT", "Rates moved.",
		"CONTENT", body,
	)
	seo := tagged(
		"TITLE", "Rates",
		"SEO_TITLE", "Let us delve into T",
		"SEO_DESCRIPTION", "Rates moved.",
		"CONTENT", body,
	)
	inv := newFakeInvoker().
		on(gateway.KindDraft, reply{text: draft}).
		on(gateway.KindSEO, reply{text: seo})
	p := newTestPipeline(t, inv, nil, types.PipelineConfig{BannedPhrases: []string{"delve into"}})

	out, err := p.Run(context.Background(), types.ContentRequest{
		Topic: "Rates", SkipResearch: true, SkipHumanize: true,
	})
	require.NoError(t, err)
	require.Equal(t, Completed, out.Status, "%v", out.Err)
	assert.Equal(t, "Let us T", out.Article.SEOTitle)
	assert.Contains(t, out.Article.BodyText(), "Rates rose.  Then fell.\n indented note")
}

func TestRunSaveFailure(t *testing.T) {
	inv := newFakeInvoker().on(gateway.KindDraft, draftReply)
	p := newTestPipeline(t, inv, &fakeSaver{err: errors.New("disk full")}, types.PipelineConfig{})

	out, err := p.Run(context.Background(), types.ContentRequest{
		Topic: "Blended finance", SkipResearch: true, SkipHumanize: true, SkipSEO: true,
	})
	require.Error(t, err)
	require.NotNil(t, out)
	assert.Equal(t, Completed, out.Status)
	assert.False(t, out.Persisted)
}

func TestRunRejectsEmptyTopic(t *testing.T) {
	p := newTestPipeline(t, newFakeInvoker(), nil, types.PipelineConfig{})
	_, err := p.Run(context.Background(), types.ContentRequest{Topic: "  "})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Blended Finance in 2025", "blended-finance-in-2025"},
		{"  What's next?  DFIs & ESG!  ", "what-s-next-dfis-esg"},
		{"???", "article"},
		{strings.Repeat("word ", 30), strings.TrimRight(strings.Repeat("word-", 16), "-")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}
