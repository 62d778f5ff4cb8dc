// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package imagegen fills in missing illustrations for published articles:
// a hero image when none is live, and an infographic when the detector
// finds an actionable pattern that has no live infographic yet.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/content-engine/internal/detect"
	"github.com/pdiddy/content-engine/internal/gateway"
	"github.com/pdiddy/content-engine/internal/lock"
	"github.com/pdiddy/content-engine/internal/metrics"
	"github.com/pdiddy/content-engine/internal/store"
	"github.com/pdiddy/content-engine/pkg/types"
)

// ImageGenerator is the part of the gateway the orchestrator calls.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, params gateway.ImageParams) (gateway.Image, error)
}

// Store is the persistence the orchestrator needs.
type Store interface {
	GetArticle(ctx context.Context, id string) (*types.Article, error)
	ListArticlesNeedingAssets(ctx context.Context, limit uint64) ([]types.Article, error)
	ListAssets(ctx context.Context, f store.AssetFilter) ([]types.AssetRecord, error)
	RecordAsset(ctx context.Context, a *types.AssetRecord) ([]string, error)
	DeleteAsset(ctx context.Context, id string) (*types.AssetRecord, error)
	PurgeSuperseded(ctx context.Context, cutoff time.Time) ([]types.AssetRecord, error)
}

// Config holds orchestrator settings.
type Config struct {
	Images     types.ImageConfig
	Categories map[string]types.CategoryProfile

	// Backend labels asset records with the model that produced them.
	Backend string
}

// GenerationError reports why a requested image could not be produced.
type GenerationError struct {
	ArticleID string
	Type      types.AssetType
	Reason    string
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generating %s for article %s: %s", e.Type, e.ArticleID, e.Reason)
	}
	return fmt.Sprintf("generating %s for article %s: %s: %v", e.Type, e.ArticleID, e.Reason, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Generation failure reasons.
const (
	ReasonArticleNotFound = "article not found"
	ReasonNoPattern       = "no actionable infographic pattern"
	ReasonBackend         = "image backend failed"
	ReasonStorage         = "storing asset failed"
	ReasonLookup          = "loading article failed"
)

// Orchestrator generates and records article images.
type Orchestrator struct {
	images   ImageGenerator
	store    Store
	detector *detect.Detector
	locker   lock.Locker
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// New builds an orchestrator. A nil locker uses an in-process keyed mutex.
func New(images ImageGenerator, st Store, det *detect.Detector, locker lock.Locker, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Orchestrator {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		images:   images,
		store:    st,
		detector: det,
		locker:   locker,
		cfg:      cfg,
		logger:   logger.Named("imagegen"),
		metrics:  m,
	}
}

func lockKey(articleID string) string {
	return "article:" + articleID
}

// RunCycle processes articles concurrently, bounded by the configured
// concurrency. Each article is handled under its lock; an article whose
// lock is held elsewhere is skipped. Failures are counted and never stop
// the cycle.
func (o *Orchestrator) RunCycle(ctx context.Context, articles []types.Article) types.CycleSummary {
	var (
		mu      sync.Mutex
		summary types.CycleSummary
		g       errgroup.Group
	)
	g.SetLimit(max(o.cfg.Images.Concurrency, 1))

	for _, a := range articles {
		id := a.ID
		g.Go(func() error {
			s := o.processArticle(ctx, id)
			mu.Lock()
			summary.Add(s)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	o.logger.Info("cycle finished",
		zap.Int("articles", summary.Articles),
		zap.Int("hero", summary.HeroGenerated),
		zap.Int("infographic", summary.InfographicGenerated),
		zap.Int("errors", summary.Errors),
		zap.Int("skipped", summary.Skipped))
	return summary
}

func (o *Orchestrator) processArticle(ctx context.Context, id string) types.CycleSummary {
	s := types.CycleSummary{Articles: 1}
	logger := o.logger.With(zap.String("article_id", id))

	if ctx.Err() != nil {
		s.Skipped++
		return s
	}
	release, err := o.locker.TryAcquire(ctx, lockKey(id))
	if err != nil {
		if !errors.Is(err, lock.ErrNotAcquired) {
			logger.Warn("article lock failed", zap.Error(err))
		}
		s.Skipped++
		return s
	}
	defer release()

	// Reload under the lock: flags may have changed since the batch was listed.
	a, err := o.store.GetArticle(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Skipped++
			return s
		}
		logger.Warn("reloading article failed", zap.Error(err))
		s.Errors++
		return s
	}
	if a.Status != types.ArticlePublished {
		s.Skipped++
		return s
	}

	worked := false
	if !a.HasHeroImage {
		worked = true
		if _, err := o.generate(ctx, a, types.AssetHero, "", ""); err != nil {
			logger.Warn("hero generation failed", zap.Error(err))
			s.Errors++
		} else {
			s.HeroGenerated++
		}
	}

	if c, ok := o.detector.Top(a.BodyText()); ok {
		live, err := o.store.ListAssets(ctx, store.AssetFilter{
			ArticleID: a.ID,
			Type:      types.AssetInfographic,
			Pattern:   c.Pattern,
			Limit:     1,
		})
		switch {
		case err != nil:
			worked = true
			logger.Warn("listing infographics failed", zap.Error(err))
			s.Errors++
		case len(live) == 0:
			worked = true
			if _, err := o.generate(ctx, a, types.AssetInfographic, c.Pattern, o.infographicPrompt(a, c)); err != nil {
				logger.Warn("infographic generation failed",
					zap.String("pattern", string(c.Pattern)), zap.Error(err))
				s.Errors++
			} else {
				s.InfographicGenerated++
			}
		}
	}

	if !worked {
		s.Skipped++
	}
	return s
}

// Generate produces one asset for an article on request, superseding the
// article's previous live asset of the same kind. An empty customPrompt
// uses the brand prompt for t. Infographics use the detector's top
// actionable pattern; with a custom prompt the best candidate is used
// even below its threshold.
func (o *Orchestrator) Generate(ctx context.Context, articleID string, t types.AssetType, customPrompt string) (*types.AssetRecord, error) {
	fail := func(reason string, err error) error {
		return &GenerationError{ArticleID: articleID, Type: t, Reason: reason, Err: err}
	}

	release, err := o.locker.Acquire(ctx, lockKey(articleID))
	if err != nil {
		return nil, fail("waiting for article lock", err)
	}
	defer release()

	a, err := o.store.GetArticle(ctx, articleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(ReasonArticleNotFound, err)
	}
	if err != nil {
		return nil, fail(ReasonLookup, err)
	}

	var pattern types.PatternType
	prompt := customPrompt
	if t == types.AssetInfographic {
		candidates := o.detector.Detect(a.BodyText())
		top, ok := detect.Top(candidates)
		switch {
		case ok:
		case customPrompt != "" && len(candidates) > 0:
			top = candidates[0]
		case customPrompt == "":
			return nil, fail(ReasonNoPattern, nil)
		}
		pattern = top.Pattern
		if prompt == "" {
			prompt = o.infographicPrompt(a, top)
		}
	}
	return o.generate(ctx, a, t, pattern, prompt)
}

// generate calls the image backend, writes the file and records the asset.
func (o *Orchestrator) generate(ctx context.Context, a *types.Article, t types.AssetType, pattern types.PatternType, prompt string) (*types.AssetRecord, error) {
	fail := func(reason string, err error) error {
		o.metrics.IncAssetError(string(t))
		return &GenerationError{ArticleID: a.ID, Type: t, Reason: reason, Err: err}
	}

	if prompt == "" {
		switch t {
		case types.AssetHero:
			prompt = o.heroPrompt(a)
		default:
			prompt = o.supportingPrompt(a)
		}
	}
	ratio := o.aspectRatio(t)
	img, err := o.images.GenerateImage(ctx, prompt, gateway.ImageParams{AspectRatio: ratio})
	if err != nil {
		return nil, fail(ReasonBackend, err)
	}

	w, h := size(ratio)
	rec := &types.AssetRecord{
		ID:        uuid.NewString(),
		ArticleID: a.ID,
		Type:      t,
		Pattern:   pattern,
		Prompt:    prompt,
		Width:     w,
		Height:    h,
		MIMEType:  img.MIMEType,
		Bytes:     int64(len(img.Data)),
		Backend:   o.cfg.Backend,
		CreatedAt: time.Now().UTC(),
	}
	rec.Path = filepath.Join(a.ID, rec.ID+extension(img.MIMEType))

	if err := o.writeFile(rec.Path, img.Data); err != nil {
		return nil, fail(ReasonStorage, err)
	}
	superseded, err := o.store.RecordAsset(ctx, rec)
	if err != nil {
		o.removeFile(rec.Path)
		return nil, fail(ReasonStorage, err)
	}

	o.metrics.IncAssetGenerated(string(t))
	o.logger.Info("asset generated",
		zap.String("article_id", a.ID),
		zap.String("asset_id", rec.ID),
		zap.String("type", string(t)),
		zap.String("pattern", string(pattern)),
		zap.Strings("superseded", superseded))
	return rec, nil
}

// Delete removes an asset record and its file.
func (o *Orchestrator) Delete(ctx context.Context, id string) (*types.AssetRecord, error) {
	rec, err := o.store.DeleteAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	o.removeFile(rec.Path)
	return rec, nil
}

// Purge deletes superseded assets older than the configured retention,
// files included. A zero retention keeps everything.
func (o *Orchestrator) Purge(ctx context.Context, now time.Time) (int, error) {
	if o.cfg.Images.Retention <= 0 {
		return 0, nil
	}
	purged, err := o.store.PurgeSuperseded(ctx, now.Add(-o.cfg.Images.Retention))
	if err != nil {
		return 0, fmt.Errorf("purging superseded assets: %w", err)
	}
	for _, rec := range purged {
		o.removeFile(rec.Path)
	}
	if len(purged) > 0 {
		o.logger.Info("purged superseded assets", zap.Int("count", len(purged)))
	}
	return len(purged), nil
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	return ".png"
}

// writeFile stores data at rel under the assets directory, through a
// temporary file so a partial write is never visible.
func (o *Orchestrator) writeFile(rel string, data []byte) error {
	path := filepath.Join(o.cfg.Images.AssetsDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating asset directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}

func (o *Orchestrator) removeFile(rel string) {
	if rel == "" {
		return
	}
	path := filepath.Join(o.cfg.Images.AssetsDir, rel)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		o.logger.Warn("removing asset file failed", zap.String("path", path), zap.Error(err))
	}
}
