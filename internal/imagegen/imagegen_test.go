// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package imagegen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/content-engine/internal/detect"
	"github.com/pdiddy/content-engine/internal/gateway"
	"github.com/pdiddy/content-engine/internal/lock"
	"github.com/pdiddy/content-engine/internal/metrics"
	"github.com/pdiddy/content-engine/internal/store"
	"github.com/pdiddy/content-engine/pkg/types"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G'}

type imageCall struct {
	prompt string
	params gateway.ImageParams
}

// fakeImages returns a fixed image, or err when set.
type fakeImages struct {
	mu       sync.Mutex
	calls    []imageCall
	err      error
	delay    time.Duration
	inFlight int
	maxSeen  int
}

func (f *fakeImages) GenerateImage(_ context.Context, prompt string, params gateway.ImageParams) (gateway.Image, error) {
	f.mu.Lock()
	f.calls = append(f.calls, imageCall{prompt: prompt, params: params})
	f.inFlight++
	f.maxSeen = max(f.maxSeen, f.inFlight)
	err := f.err
	f.mu.Unlock()

	time.Sleep(f.delay)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	if err != nil {
		return gateway.Image{}, err
	}
	return gateway.Image{Data: pngBytes, MIMEType: "image/png"}, nil
}

func (f *fakeImages) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

const listBody = "Top 5 ways to fund climate projects.\n\n1. Grants\n2. Loans\n3. Guarantees"

type fixture struct {
	store  *store.Store
	images *fakeImages
	locker *lock.Local
	orch   *Orchestrator
	dir    string
}

func newFixture(t *testing.T, images *fakeImages, cfg types.ImageConfig) *fixture {
	t.Helper()
	st, err := store.Open(context.Background(), types.StoreConfig{
		Driver: types.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "content.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	det, err := detect.New(nil)
	require.NoError(t, err)

	if cfg.AssetsDir == "" {
		cfg.AssetsDir = t.TempDir()
	}
	if cfg.Brand.Name == "" {
		cfg.Brand = types.BrandConfig{
			Name:    "Meridian",
			Palette: []string{"deep navy #0B1F3A"},
			Style:   []string{"clean editorial illustration"},
			Avoid:   []string{"stock photo clichés"},
		}
	}
	locker := lock.NewLocal()
	orch := New(images, st, det, locker, Config{
		Images:     cfg,
		Categories: map[string]types.CategoryProfile{"dfi-insights": {VisualTheme: "emerging market infrastructure"}},
		Backend:    "gemini/imagen-test",
	}, zap.NewNop(), metrics.New())
	return &fixture{store: st, images: images, locker: locker, orch: orch, dir: cfg.AssetsDir}
}

func (f *fixture) addArticle(t *testing.T, id, body string, status types.ArticleStatus) types.Article {
	t.Helper()
	a := &types.Article{
		ID:       id,
		Slug:     id,
		Title:    "Climate finance " + id,
		Excerpt:  "How projects get funded.",
		Body:     []types.Section{{Content: body}},
		Category: "dfi-insights",
		Status:   status,
	}
	require.NoError(t, f.store.SaveArticle(context.Background(), a))
	return *a
}

func (f *fixture) reload(t *testing.T, id string) *types.Article {
	t.Helper()
	a, err := f.store.GetArticle(context.Background(), id)
	require.NoError(t, err)
	return a
}

func TestRunCycleGeneratesHeroAndInfographic(t *testing.T) {
	f := newFixture(t, &fakeImages{}, types.ImageConfig{})
	a := f.addArticle(t, "a1", listBody, types.ArticlePublished)

	summary := f.orch.RunCycle(context.Background(), []types.Article{a})
	assert.Equal(t, types.CycleSummary{Articles: 1, HeroGenerated: 1, InfographicGenerated: 1}, summary)

	got := f.reload(t, "a1")
	assert.True(t, got.HasHeroImage)
	assert.Equal(t, 1, got.InfographicCount)

	require.Len(t, f.images.calls, 2)
	hero, info := f.images.calls[0], f.images.calls[1]
	assert.Equal(t, "16:9", hero.params.AspectRatio)
	assert.Contains(t, hero.prompt, "Climate finance a1")
	assert.Contains(t, hero.prompt, "clean editorial illustration")
	assert.Contains(t, hero.prompt, "deep navy #0B1F3A")
	assert.Contains(t, hero.prompt, "emerging market infrastructure")
	assert.Equal(t, "3:4", info.params.AspectRatio)
	assert.Contains(t, info.prompt, defaultPatternStyles[types.PatternNumberedList])

	assets, err := f.store.ListAssets(context.Background(), store.AssetFilter{ArticleID: "a1"})
	require.NoError(t, err)
	require.Len(t, assets, 2)
	for _, rec := range assets {
		data, err := os.ReadFile(filepath.Join(f.dir, rec.Path))
		require.NoError(t, err)
		assert.Equal(t, pngBytes, data)
		assert.Equal(t, "gemini/imagen-test", rec.Backend)
		if rec.Type == types.AssetInfographic {
			assert.Equal(t, types.PatternNumberedList, rec.Pattern)
			assert.Equal(t, 896, rec.Width)
			assert.Equal(t, 1280, rec.Height)
		}
	}

	// A second cycle finds nothing left to do.
	summary = f.orch.RunCycle(context.Background(), []types.Article{a})
	assert.Equal(t, types.CycleSummary{Articles: 1, Skipped: 1}, summary)
	assert.Equal(t, 2, f.images.count())
}

func TestRunCycleHeroOnlyWithoutPattern(t *testing.T) {
	f := newFixture(t, &fakeImages{}, types.ImageConfig{HeroAspectRatio: "1:1"})
	a := f.addArticle(t, "a1", "A plain lead paragraph.", types.ArticlePublished)

	summary := f.orch.RunCycle(context.Background(), []types.Article{a})
	assert.Equal(t, types.CycleSummary{Articles: 1, HeroGenerated: 1}, summary)
	require.Len(t, f.images.calls, 1)
	assert.Equal(t, "1:1", f.images.calls[0].params.AspectRatio)
	assert.Equal(t, 0, f.reload(t, "a1").InfographicCount)
}

func TestRunCycleCountsFailures(t *testing.T) {
	f := newFixture(t, &fakeImages{err: gateway.ErrTimeout}, types.ImageConfig{Concurrency: 2})
	a1 := f.addArticle(t, "a1", listBody, types.ArticlePublished)
	a2 := f.addArticle(t, "a2", listBody, types.ArticlePublished)

	summary := f.orch.RunCycle(context.Background(), []types.Article{a1, a2})
	assert.Equal(t, types.CycleSummary{Articles: 2, Errors: 4}, summary)
	assert.False(t, f.reload(t, "a1").HasHeroImage)

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunCycleSkips(t *testing.T) {
	f := newFixture(t, &fakeImages{}, types.ImageConfig{})
	locked := f.addArticle(t, "locked", listBody, types.ArticlePublished)
	draft := f.addArticle(t, "draft", listBody, types.ArticleDraft)
	ghost := types.Article{ID: "ghost"}

	release, err := f.locker.Acquire(context.Background(), lockKey("locked"))
	require.NoError(t, err)
	defer release()

	summary := f.orch.RunCycle(context.Background(), []types.Article{locked, draft, ghost})
	assert.Equal(t, types.CycleSummary{Articles: 3, Skipped: 3}, summary)
	assert.Zero(t, f.images.count())
}

func TestRunCycleRespectsConcurrency(t *testing.T) {
	images := &fakeImages{delay: 5 * time.Millisecond}
	f := newFixture(t, images, types.ImageConfig{Concurrency: 3})
	var articles []types.Article
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5", "a6"} {
		articles = append(articles, f.addArticle(t, id, "Lead.", types.ArticlePublished))
	}

	summary := f.orch.RunCycle(context.Background(), articles)
	assert.Equal(t, 6, summary.HeroGenerated)
	assert.LessOrEqual(t, images.maxSeen, 3)
	assert.Zero(t, f.locker.Held())
}

func TestRunCycleCancelled(t *testing.T) {
	f := newFixture(t, &fakeImages{}, types.ImageConfig{})
	a := f.addArticle(t, "a1", listBody, types.ArticlePublished)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary := f.orch.RunCycle(ctx, []types.Article{a})
	assert.Equal(t, types.CycleSummary{Articles: 1, Skipped: 1}, summary)
}

func TestGenerateSupersedes(t *testing.T) {
	f := newFixture(t, &fakeImages{}, types.ImageConfig{})
	f.addArticle(t, "a1", listBody, types.ArticlePublished)
	ctx := context.Background()

	first, err := f.orch.Generate(ctx, "a1", types.AssetHero, "")
	require.NoError(t, err)
	second, err := f.orch.Generate(ctx, "a1", types.AssetHero, "A lighthouse at dawn")
	require.NoError(t, err)
	assert.Equal(t, "A lighthouse at dawn", second.Prompt)
	assert.Equal(t, "A lighthouse at dawn", f.images.calls[1].prompt)

	live, err := f.store.ListAssets(ctx, store.AssetFilter{ArticleID: "a1", Type: types.AssetHero})
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, second.ID, live[0].ID)

	old, err := f.store.GetAsset(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, old.SupersededBy)
	assert.True(t, f.reload(t, "a1").HasHeroImage)
}

func TestGenerateInfographic(t *testing.T) {
	f := newFixture(t, &fakeImages{}, types.ImageConfig{
		PatternStyles: map[string]string{"numbered_list": "stacked cards"},
	})
	f.addArticle(t, "list", listBody, types.ArticlePublished)
	f.addArticle(t, "plain", "Lead.", types.ArticlePublished)
	ctx := context.Background()

	rec, err := f.orch.Generate(ctx, "list", types.AssetInfographic, "")
	require.NoError(t, err)
	assert.Equal(t, types.PatternNumberedList, rec.Pattern)
	assert.Contains(t, rec.Prompt, "Layout: stacked cards.")

	_, err = f.orch.Generate(ctx, "plain", types.AssetInfographic, "")
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, ReasonNoPattern, ge.Reason)

	rec, err = f.orch.Generate(ctx, "plain", types.AssetInfographic, "A custom chart")
	require.NoError(t, err)
	assert.Equal(t, types.PatternType(""), rec.Pattern)
}

func TestGenerateErrors(t *testing.T) {
	f := newFixture(t, &fakeImages{err: errors.New("boom")}, types.ImageConfig{})
	f.addArticle(t, "a1", listBody, types.ArticlePublished)
	ctx := context.Background()

	_, err := f.orch.Generate(ctx, "ghost", types.AssetHero, "")
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, ReasonArticleNotFound, ge.Reason)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.orch.Generate(ctx, "a1", types.AssetSupporting, "")
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, ReasonBackend, ge.Reason)
	assert.Equal(t, "4:3", f.images.calls[0].params.AspectRatio)
	assert.Zero(t, f.locker.Held())
}

func TestDeleteAndPurge(t *testing.T) {
	f := newFixture(t, &fakeImages{}, types.ImageConfig{Retention: time.Hour})
	f.addArticle(t, "a1", "Lead.", types.ArticlePublished)
	ctx := context.Background()

	first, err := f.orch.Generate(ctx, "a1", types.AssetHero, "")
	require.NoError(t, err)
	second, err := f.orch.Generate(ctx, "a1", types.AssetHero, "")
	require.NoError(t, err)

	n, err := f.orch.Purge(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n, "superseded asset is still within retention")

	n, err = f.orch.Purge(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, filepath.Join(f.dir, first.Path))

	_, err = f.orch.Delete(ctx, second.ID)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(f.dir, second.Path))
	assert.False(t, f.reload(t, "a1").HasHeroImage)
}

func TestJobRun(t *testing.T) {
	f := newFixture(t, &fakeImages{}, types.ImageConfig{})
	f.addArticle(t, "a1", listBody, types.ArticlePublished)
	f.addArticle(t, "a2", "Lead.", types.ArticleDraft)

	job := NewJob(f.orch, 10)
	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.CycleSummary{Articles: 1, HeroGenerated: 1, InfographicGenerated: 1}, summary)

	summary, err = job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.CycleSummary{}, summary)
}
