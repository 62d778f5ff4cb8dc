// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pdiddy/content-engine/internal/detect"
	"github.com/pdiddy/content-engine/internal/gateway"
	"github.com/pdiddy/content-engine/internal/imagegen"
	"github.com/pdiddy/content-engine/internal/lock"
	"github.com/pdiddy/content-engine/internal/metrics"
	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/internal/scheduler"
	"github.com/pdiddy/content-engine/internal/store"
	"github.com/pdiddy/content-engine/pkg/types"
)

// usageBuffer bounds queued usage records before they are dropped.
const usageBuffer = 1024

// app holds the wired components shared by serve and the one-shot commands.
type app struct {
	cfg     types.Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	store    *store.Store
	redis    *redis.Client
	locker   lock.Locker
	usage    *gateway.UsageRecorder
	gateway  *gateway.Gateway
	pipeline *pipeline.Pipeline
	detector *detect.Detector
	images   *imagegen.Orchestrator
	job      *imagegen.Job
}

// newApp opens the store and builds every component. Any configuration
// error is returned before the caller starts serving.
func newApp(ctx context.Context, cfg types.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.store = st

	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	a.locker = lock.NewLocal()
	if a.cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis at %s: %w", a.cfg.Redis.Addr, err)
		}
		a.locker = lock.NewRedis(a.redis, a.cfg.Redis.LockTTL, a.logger)
	}

	backends, err := gateway.FromConfig(ctx, a.cfg.Backends, &http.Client{})
	if err != nil {
		return err
	}
	a.usage = gateway.NewUsageRecorder(usageBuffer, a.logger, a.metrics)
	a.gateway, err = gateway.New(backends, a.usage, a.logger)
	if err != nil {
		return err
	}

	a.pipeline, err = pipeline.New(a.gateway, a.store, a.cfg.Pipeline, a.cfg.Categories, a.logger, a.metrics)
	if err != nil {
		return err
	}

	a.detector, err = detect.New(a.cfg.Detector.Thresholds)
	if err != nil {
		return err
	}

	a.images = imagegen.New(a.gateway, a.store, a.detector, a.locker, imagegen.Config{
		Images:     a.cfg.Images,
		Categories: a.cfg.Categories,
		Backend:    a.gateway.Describe()[gateway.KindImage],
	}, a.logger, a.metrics)
	a.job = imagegen.NewJob(a.images, a.cfg.Scheduler.BatchSize)
	return nil
}

// newScheduler builds the scheduler around the image job. With Redis
// configured the scheduler also takes a leader lease per cycle.
func (a *app) newScheduler() *scheduler.Scheduler {
	sc := scheduler.Config{
		Interval:     a.cfg.Scheduler.Interval,
		CycleTimeout: a.cfg.Scheduler.CycleTimeout,
		RunOnStart:   a.cfg.Scheduler.RunOnStart,
	}
	if a.redis != nil {
		sc.Leader = a.locker
	}
	return scheduler.New(a.job, a.store, sc, a.logger, a.metrics)
}

// Close releases every resource newApp acquired.
func (a *app) Close() error {
	var errs []error
	if a.usage != nil {
		a.usage.Close()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// openStore opens only the store, for commands that read the library.
func openStore(ctx context.Context) (*store.Store, error) {
	return store.Open(ctx, cfg.Store)
}
