// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scheduler runs the image cycle on a fixed interval. One loop
// goroutine owns the ticker; each cycle runs in its own goroutine and at
// most one cycle is in flight at a time. Triggers that arrive while a
// cycle is running are dropped and counted.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/content-engine/internal/lock"
	"github.com/pdiddy/content-engine/internal/metrics"
	"github.com/pdiddy/content-engine/pkg/types"
)

// DefaultInterval is used when no interval is configured.
const DefaultInterval = 10 * time.Minute

// leaderKey names the lease a process must hold to run a cycle.
const leaderKey = "scheduler:leader"

// persistTimeout bounds one state save.
const persistTimeout = 10 * time.Second

// ErrShutdown is returned by RunNow after Shutdown.
var ErrShutdown = errors.New("scheduler shut down")

// Runner executes one cycle.
type Runner interface {
	Run(ctx context.Context) (types.CycleSummary, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) (types.CycleSummary, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context) (types.CycleSummary, error) { return f(ctx) }

// StateStore persists counters across restarts. Implemented by *store.Store.
type StateStore interface {
	SaveSchedulerState(ctx context.Context, st types.OrchestratorState) error
	LoadSchedulerState(ctx context.Context) (types.OrchestratorState, error)
}

// Config holds scheduler settings.
type Config struct {
	Interval time.Duration

	// CycleTimeout bounds one cycle. Zero leaves cycles unbounded.
	CycleTimeout time.Duration

	// RunOnStart triggers a cycle as soon as the loop starts.
	RunOnStart bool

	// Leader, when set, must grant a lease before each cycle so that only
	// one process of a deployment runs it.
	Leader lock.Locker
}

// Scheduler is the autonomous image scheduler.
type Scheduler struct {
	runner  Runner
	state   StateStore
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	// inFlight guards the single running cycle.
	inFlight atomic.Bool
	cycles   sync.WaitGroup

	// saveMu orders state saves.
	saveMu sync.Mutex

	mu     sync.Mutex
	st     types.OrchestratorState
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

// New builds a stopped scheduler. A nil state store keeps counters in memory.
func New(runner Runner, state StateStore, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner:  runner,
		state:   state,
		cfg:     cfg,
		logger:  logger.Named("scheduler"),
		metrics: m,
		st:      types.OrchestratorState{Interval: cfg.Interval},
	}
}

// Load restores persisted counters. The scheduler always comes up stopped,
// whatever the saved state says.
func (s *Scheduler) Load(ctx context.Context) error {
	if s.state == nil {
		return nil
	}
	st, err := s.state.LoadSchedulerState(ctx)
	if err != nil {
		return fmt.Errorf("loading scheduler state: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st.Running = false
	st.CycleInProgress = false
	st.NextRunAt = nil
	st.Interval = s.cfg.Interval
	s.st = st
	return nil
}

// Start launches the loop. It returns false when the loop is already
// running or the scheduler was shut down. The loop also ends when ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	if s.stop != nil || s.closed {
		s.mu.Unlock()
		return false
	}
	stop, done := make(chan struct{}), make(chan struct{})
	s.stop, s.done = stop, done
	s.st.Running = true
	next := time.Now().Add(s.cfg.Interval)
	s.st.NextRunAt = &next
	s.mu.Unlock()

	s.metrics.SetSchedulerRunning(true)
	s.logger.Info("scheduler started", zap.Duration("interval", s.cfg.Interval))
	go s.loop(ctx, stop, done)
	return true
}

// Stop ends the loop. A cycle already in flight runs to completion. It
// returns false when the loop was not running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	stop, done := s.stop, s.done
	if stop == nil {
		s.mu.Unlock()
		return false
	}
	s.stop, s.done = nil, nil
	s.st.Running = false
	s.st.NextRunAt = nil
	s.mu.Unlock()

	close(stop)
	<-done
	s.metrics.SetSchedulerRunning(false)
	s.logger.Info("scheduler stopped")
	return true
}

// Shutdown stops the loop and waits for an in-flight cycle, or for ctx.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Stop()

	finished := make(chan struct{})
	go func() {
		s.cycles.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight cycle: %w", ctx.Err())
	}
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() types.OrchestratorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.st
	st.CycleInProgress = s.inFlight.Load()
	return st
}

// Reset zeroes the cumulative counters and persists the result.
func (s *Scheduler) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.st = types.OrchestratorState{
		Running:   s.st.Running,
		Interval:  s.st.Interval,
		NextRunAt: s.st.NextRunAt,
	}
	s.mu.Unlock()
	s.logger.Info("scheduler counters reset")
	return s.persist(ctx)
}

// RunNow triggers a cycle outside the schedule. It returns false when a
// cycle is already in flight.
func (s *Scheduler) RunNow(ctx context.Context) (bool, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false, ErrShutdown
	}
	return s.trigger(ctx), nil
}

func (s *Scheduler) loop(ctx context.Context, stop, done chan struct{}) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	defer close(done)

	if s.cfg.RunOnStart {
		s.trigger(ctx)
	}
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			s.logger.Info("scheduler context done", zap.Error(ctx.Err()))
			s.mu.Lock()
			if s.stop == stop {
				s.stop, s.done = nil, nil
				s.st.Running = false
				s.st.NextRunAt = nil
				s.metrics.SetSchedulerRunning(false)
			}
			s.mu.Unlock()
			return
		case t := <-ticker.C:
			next := t.Add(s.cfg.Interval)
			s.mu.Lock()
			if s.stop == stop {
				s.st.NextRunAt = &next
			}
			s.mu.Unlock()
			s.trigger(ctx)
		}
	}
}

// trigger starts a cycle unless one is in flight.
func (s *Scheduler) trigger(ctx context.Context) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.mu.Lock()
		s.st.SkippedTriggers++
		s.mu.Unlock()
		s.metrics.ObserveCycle("skipped", 0)
		s.logger.Info("cycle already in progress, trigger skipped")
		return false
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.inFlight.Store(false)
		return false
	}
	s.cycles.Add(1)
	s.mu.Unlock()

	// The cycle outlives the caller: stopping the loop or finishing an
	// HTTP request must not cancel it.
	go s.runCycle(context.WithoutCancel(ctx))
	return true
}

func (s *Scheduler) runCycle(ctx context.Context) {
	defer s.cycles.Done()
	defer s.inFlight.Store(false)

	if s.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CycleTimeout)
		defer cancel()
	}

	if s.cfg.Leader != nil {
		release, err := s.cfg.Leader.TryAcquire(ctx, leaderKey)
		if err != nil {
			s.mu.Lock()
			s.st.SkippedTriggers++
			s.mu.Unlock()
			s.metrics.ObserveCycle("skipped", 0)
			s.logger.Info("leader lease not acquired, cycle skipped", zap.Error(err))
			return
		}
		defer release()
	}

	start := time.Now()
	summary, err := s.safeRun(ctx)
	elapsed := time.Since(start)

	finished := time.Now().UTC()
	s.mu.Lock()
	s.st.Runs++
	s.st.HeroGenerated += int64(summary.HeroGenerated)
	s.st.InfographicsGenerated += int64(summary.InfographicGenerated)
	s.st.Errors += int64(summary.Errors)
	s.st.Skipped += int64(summary.Skipped)
	if err != nil {
		s.st.Errors++
	}
	s.st.LastRunAt = &finished
	s.st.LastCycle = &summary
	s.mu.Unlock()

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		s.logger.Error("cycle failed", zap.Duration("elapsed", elapsed), zap.Error(err))
	case summary.HasFailures():
		outcome = "partial"
		fallthrough
	default:
		s.logger.Info("cycle complete",
			zap.Int("hero", summary.HeroGenerated),
			zap.Int("infographic", summary.InfographicGenerated),
			zap.Int("errors", summary.Errors),
			zap.Duration("elapsed", elapsed))
	}
	s.metrics.ObserveCycle(outcome, elapsed)

	if err := s.persist(ctx); err != nil {
		s.logger.Warn("persisting scheduler state failed", zap.Error(err))
	}
}

// safeRun calls the runner and turns a panic into an error.
func (s *Scheduler) safeRun(ctx context.Context) (summary types.CycleSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	return s.runner.Run(ctx)
}

// persist saves the current counters. Saves are serialized so an older
// snapshot never overwrites a newer one.
func (s *Scheduler) persist(ctx context.Context) error {
	if s.state == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	st := s.st
	s.mu.Unlock()
	st.CycleInProgress = false

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	return s.state.SaveSchedulerState(ctx, st)
}
