// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/content-engine/internal/metrics"
)

// UsageRecord describes one gateway call, retries included. Cost is an
// advisory estimate from the configured per-token prices.
type UsageRecord struct {
	Kind         Kind          `json:"kind"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	Attempts     int           `json:"attempts"`
	BytesIn      int           `json:"bytes_in"`
	BytesOut     int           `json:"bytes_out"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	CostUSD      float64       `json:"cost_usd"`
	Duration     time.Duration `json:"duration"`
	Outcome      string        `json:"outcome"`
}

// UsageSink receives usage records. Record must never block.
type UsageSink interface {
	Record(UsageRecord)
}

// UsageTotals aggregates records for one kind.
type UsageTotals struct {
	Calls        int64   `json:"calls"`
	Failures     int64   `json:"failures"`
	Attempts     int64   `json:"attempts"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// UsageRecorder is a buffered UsageSink. Records are consumed by one
// goroutine that updates metrics, totals and the debug log; when the buffer
// is full new records are dropped and counted.
type UsageRecorder struct {
	ch      chan UsageRecord
	done    chan struct{}
	logger  *zap.Logger
	metrics *metrics.Metrics

	dropped atomic.Int64

	// closeMu guards closed against sends on a closed channel.
	closeMu sync.RWMutex
	closed  bool

	mu     sync.Mutex
	totals map[Kind]UsageTotals
}

var _ UsageSink = (*UsageRecorder)(nil)

// NewUsageRecorder starts the consumer goroutine. Call Close to stop it.
func NewUsageRecorder(buffer int, logger *zap.Logger, m *metrics.Metrics) *UsageRecorder {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &UsageRecorder{
		ch:      make(chan UsageRecord, buffer),
		done:    make(chan struct{}),
		logger:  logger.Named("usage"),
		metrics: m,
		totals:  make(map[Kind]UsageTotals),
	}
	go r.run()
	return r
}

// Record implements UsageSink.
func (r *UsageRecorder) Record(rec UsageRecord) {
	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- rec:
	default:
		r.dropped.Add(1)
		r.metrics.IncUsageDropped()
	}
}

func (r *UsageRecorder) run() {
	defer close(r.done)
	for rec := range r.ch {
		r.metrics.ObserveGatewayCall(string(rec.Kind), rec.Provider, rec.Outcome,
			rec.Attempts, rec.InputTokens, rec.OutputTokens, rec.CostUSD, rec.Duration)

		r.mu.Lock()
		t := r.totals[rec.Kind]
		t.Calls++
		if rec.Outcome != "ok" {
			t.Failures++
		}
		t.Attempts += int64(rec.Attempts)
		t.InputTokens += int64(rec.InputTokens)
		t.OutputTokens += int64(rec.OutputTokens)
		t.CostUSD += rec.CostUSD
		r.totals[rec.Kind] = t
		r.mu.Unlock()

		r.logger.Debug("model call",
			zap.String("kind", string(rec.Kind)),
			zap.String("provider", rec.Provider),
			zap.String("model", rec.Model),
			zap.Int("attempts", rec.Attempts),
			zap.Int("input_tokens", rec.InputTokens),
			zap.Int("output_tokens", rec.OutputTokens),
			zap.Float64("cost_usd", rec.CostUSD),
			zap.Duration("duration", rec.Duration),
			zap.String("outcome", rec.Outcome))
	}
}

// Totals returns a snapshot of the per-kind aggregates.
func (r *UsageRecorder) Totals() map[Kind]UsageTotals {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Kind]UsageTotals, len(r.totals))
	for k, v := range r.totals {
		out[k] = v
	}
	return out
}

// Dropped returns how many records were discarded on a full buffer.
func (r *UsageRecorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops accepting records and waits for buffered ones to drain.
func (r *UsageRecorder) Close() {
	r.closeMu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.closeMu.Unlock()
	<-r.done
}
