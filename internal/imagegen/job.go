// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package imagegen

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/content-engine/pkg/types"
)

// defaultBatch caps the articles one cycle considers.
const defaultBatch = 50

// Job runs one scheduled cycle: it loads published articles that lack
// assets, fills them in, then purges expired superseded assets.
type Job struct {
	orch  *Orchestrator
	batch int
}

// NewJob wraps o for the scheduler. batch <= 0 uses the default.
func NewJob(o *Orchestrator, batch int) *Job {
	if batch <= 0 {
		batch = defaultBatch
	}
	return &Job{orch: o, batch: batch}
}

// Run executes one cycle.
func (j *Job) Run(ctx context.Context) (types.CycleSummary, error) {
	articles, err := j.orch.store.ListArticlesNeedingAssets(ctx, uint64(j.batch))
	if err != nil {
		return types.CycleSummary{}, fmt.Errorf("listing articles needing assets: %w", err)
	}
	summary := j.orch.RunCycle(ctx, articles)
	if _, err := j.orch.Purge(ctx, time.Now().UTC()); err != nil {
		return summary, err
	}
	return summary, nil
}
