// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gateway

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/pdiddy/content-engine/internal/metrics"
)

func TestUsageRecorderAggregates(t *testing.T) {
	m := metrics.New()
	r := NewUsageRecorder(8, zap.NewNop(), m)
	r.Record(UsageRecord{Kind: KindDraft, Provider: "openai", Attempts: 1, InputTokens: 5, OutputTokens: 7, CostUSD: 0.1, Outcome: "ok"})
	r.Record(UsageRecord{Kind: KindDraft, Provider: "openai", Attempts: 3, Outcome: "timeout", Duration: time.Second})
	r.Close()

	totals := r.Totals()[KindDraft]
	assert.Equal(t, int64(2), totals.Calls)
	assert.Equal(t, int64(1), totals.Failures)
	assert.Equal(t, int64(4), totals.Attempts)
	assert.Equal(t, int64(7), totals.OutputTokens)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayCalls.WithLabelValues("draft", "openai", "timeout")))
}

func TestUsageRecorderDropsWhenFull(t *testing.T) {
	m := metrics.New()
	// Built without the consumer so the buffer stays full.
	r := &UsageRecorder{
		ch:      make(chan UsageRecord, 1),
		done:    make(chan struct{}),
		logger:  zap.NewNop(),
		metrics: m,
		totals:  make(map[Kind]UsageTotals),
	}

	done := make(chan struct{})
	go func() {
		r.Record(UsageRecord{Kind: KindSEO, Outcome: "ok"})
		r.Record(UsageRecord{Kind: KindSEO, Outcome: "ok"})
		r.Record(UsageRecord{Kind: KindSEO, Outcome: "ok"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full buffer")
	}
	assert.Equal(t, int64(2), r.Dropped())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.UsageDropped))

	go r.run()
	r.Close()
	assert.Equal(t, int64(1), r.Totals()[KindSEO].Calls)
}

func TestUsageRecorderIgnoresAfterClose(t *testing.T) {
	r := NewUsageRecorder(1, nil, nil)
	r.Close()
	r.Close()
	assert.NotPanics(t, func() { r.Record(UsageRecord{Kind: KindImage}) })
	assert.Empty(t, r.Totals())
}
