// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/content-engine/internal/httputil"
	"github.com/pdiddy/content-engine/pkg/types"
)

func TestMain(m *testing.M) {
	backoffBase = time.Millisecond
	os.Exit(m.Run())
}

// fakeText returns scripted results in order, repeating the last one.
type fakeText struct {
	mu      sync.Mutex
	results []fakeResult
	calls   int
	reqs    []Request
}

type fakeResult struct {
	text  string
	err   error
	delay time.Duration
}

func (f *fakeText) Generate(ctx context.Context, req Request) (Response, error) {
	f.mu.Lock()
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	r := f.results[i]
	f.calls++
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	if r.err != nil {
		return Response{}, r.err
	}
	return Response{Text: r.text, InputTokens: 10, OutputTokens: 20}, nil
}

func (f *fakeText) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeImage struct {
	err error
}

func (f *fakeImage) GenerateImage(_ context.Context, _ string, params ImageParams) (Image, error) {
	if f.err != nil {
		return Image{}, f.err
	}
	return Image{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: params.MIMEType}, nil
}

// captureSink keeps every record.
type captureSink struct {
	mu   sync.Mutex
	recs []UsageRecord
}

func (c *captureSink) Record(r UsageRecord) {
	c.mu.Lock()
	c.recs = append(c.recs, r)
	c.mu.Unlock()
}

func newTestGateway(t *testing.T, text TextBackend, cfg types.BackendConfig, sink UsageSink) *Gateway {
	t.Helper()
	backends := map[Kind]Backend{KindImage: {Config: cfg, Image: &fakeImage{}}}
	for _, k := range Kinds {
		if k != KindImage {
			backends[k] = Backend{Config: cfg, Text: text}
		}
	}
	g, err := New(backends, sink, nil)
	require.NoError(t, err)
	return g
}

func testConfig() types.BackendConfig {
	return types.BackendConfig{Provider: "fake", Model: "m1", Timeout: time.Second, MaxAttempts: 3}
}

func TestNewRequiresEveryKind(t *testing.T) {
	_, err := New(map[Kind]Backend{KindDraft: {Text: &fakeText{}}}, nil, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	backends := map[Kind]Backend{}
	for _, k := range Kinds {
		backends[k] = Backend{Text: &fakeText{}}
	}
	_, err = New(backends, nil, nil)
	assert.ErrorIs(t, err, ErrNotConfigured, "image kind needs an image backend")
}

func TestInvokeSuccess(t *testing.T) {
	sink := &captureSink{}
	ft := &fakeText{results: []fakeResult{{text: "ok"}}}
	cfg := testConfig()
	cfg.Temperature = 0.4
	cfg.MaxOutputTokens = 1000
	cfg.InputCostPerMTok = 1
	cfg.OutputCostPerMTok = 2
	g := newTestGateway(t, ft, cfg, sink)

	resp, err := g.Invoke(context.Background(), KindDraft, "write", Params{System: "be brief"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)

	require.Len(t, ft.reqs, 1)
	temp := 0.4
	assert.Equal(t, Request{Prompt: "write", System: "be brief", Temperature: &temp, MaxOutputTokens: 1000}, ft.reqs[0])

	require.Len(t, sink.recs, 1)
	rec := sink.recs[0]
	assert.Equal(t, KindDraft, rec.Kind)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, "ok", rec.Outcome)
	assert.InDelta(t, (10*1+20*2)/1e6, rec.CostUSD, 1e-12)
}

func TestInvokeTemperatureOverride(t *testing.T) {
	cfg := testConfig()
	cfg.Temperature = 0.4
	ft := &fakeText{results: []fakeResult{{text: "ok"}}}
	g := newTestGateway(t, ft, cfg, nil)

	zero := 0.0
	_, err := g.Invoke(context.Background(), KindDraft, "p", Params{Temperature: &zero})
	require.NoError(t, err)
	_, err = g.Invoke(context.Background(), KindDraft, "p", Params{})
	require.NoError(t, err)

	require.Len(t, ft.reqs, 2)
	require.NotNil(t, ft.reqs[0].Temperature)
	assert.Equal(t, 0.0, *ft.reqs[0].Temperature, "explicit zero wins over the configured value")
	require.NotNil(t, ft.reqs[1].Temperature)
	assert.Equal(t, 0.4, *ft.reqs[1].Temperature)

	g = newTestGateway(t, ft, testConfig(), nil)
	_, err = g.Invoke(context.Background(), KindDraft, "p", Params{})
	require.NoError(t, err)
	assert.Nil(t, ft.reqs[2].Temperature, "provider default when neither is set")
}

func TestInvokeRetriesTransient(t *testing.T) {
	tests := []struct {
		name string
		fail fakeResult
	}{
		{"rate limited", fakeResult{err: fmt.Errorf("%w: slow down", ErrRateLimited)}},
		{"timeout class", fakeResult{err: fmt.Errorf("%w: gateway timeout", ErrTimeout)}},
		{"attempt deadline", fakeResult{delay: time.Second}},
		{"transient backend", fakeResult{err: &BackendError{Provider: "fake", Status: 503, Transient: true, Err: errors.New("unavailable")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &captureSink{}
			ft := &fakeText{results: []fakeResult{tt.fail, tt.fail, {text: "done"}}}
			cfg := testConfig()
			cfg.Timeout = 20 * time.Millisecond
			g := newTestGateway(t, ft, cfg, sink)

			resp, err := g.Invoke(context.Background(), KindResearch, "p", Params{})
			require.NoError(t, err)
			assert.Equal(t, "done", resp.Text)
			assert.Equal(t, 3, ft.Calls())

			require.Len(t, sink.recs, 1)
			assert.Equal(t, 3, sink.recs[0].Attempts)
			assert.Equal(t, "ok", sink.recs[0].Outcome)
		})
	}
}

func TestInvokeGivesUpAfterMaxAttempts(t *testing.T) {
	sink := &captureSink{}
	ft := &fakeText{results: []fakeResult{{err: fmt.Errorf("%w: busy", ErrRateLimited)}}}
	g := newTestGateway(t, ft, testConfig(), sink)

	_, err := g.Invoke(context.Background(), KindSEO, "p", Params{})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 3, ft.Calls())
	require.Len(t, sink.recs, 1)
	assert.Equal(t, "rate_limited", sink.recs[0].Outcome)
	assert.Equal(t, 3, sink.recs[0].Attempts)
}

func TestInvokeHonorsRetryAfter(t *testing.T) {
	limited := classifyHTTP("fake", &httputil.StatusError{Code: 429, RetryAfter: 80 * time.Millisecond})
	require.ErrorIs(t, limited, ErrRateLimited)
	assert.Equal(t, 80*time.Millisecond, retryAfter(limited))

	ft := &fakeText{results: []fakeResult{{err: limited}, {text: "done"}}}
	g := newTestGateway(t, ft, testConfig(), nil)

	start := time.Now()
	resp, err := g.Invoke(context.Background(), KindDraft, "p", Params{})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Text)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRetryAfterIgnoredOffRateLimits(t *testing.T) {
	unavailable := classifyHTTP("fake", &httputil.StatusError{Code: 503, RetryAfter: time.Hour})
	assert.Zero(t, retryAfter(unavailable))
	assert.Zero(t, retryAfter(nil))

	capped := classifyHTTP("fake", &httputil.StatusError{Code: 429, RetryAfter: time.Hour})
	assert.Equal(t, maxRetryAfter, retryAfter(capped))
}

func TestInvokePermanentFailsImmediately(t *testing.T) {
	ft := &fakeText{results: []fakeResult{{err: &BackendError{Provider: "fake", Status: 401, Err: errors.New("bad key")}}}}
	g := newTestGateway(t, ft, testConfig(), nil)

	_, err := g.Invoke(context.Background(), KindDraft, "p", Params{})
	assert.ErrorIs(t, err, ErrBackend)
	var be *BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 401, be.Status)
	assert.Equal(t, 1, ft.Calls())
}

func TestInvokeInvalidResponseNotRetried(t *testing.T) {
	ft := &fakeText{results: []fakeResult{{err: fmt.Errorf("%w: junk", ErrInvalidResponse)}}}
	g := newTestGateway(t, ft, testConfig(), nil)

	_, err := g.Invoke(context.Background(), KindDraft, "p", Params{})
	assert.ErrorIs(t, err, ErrInvalidResponse)
	assert.Equal(t, 1, ft.Calls())
}

func TestInvokeEmptyTextIsInvalid(t *testing.T) {
	ft := &fakeText{results: []fakeResult{{text: ""}}}
	g := newTestGateway(t, ft, testConfig(), nil)

	_, err := g.Invoke(context.Background(), KindDraft, "p", Params{})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestInvokePerAttemptTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 10 * time.Millisecond
	ft := &fakeText{results: []fakeResult{{delay: time.Second}, {text: "fast"}}}
	g := newTestGateway(t, ft, cfg, nil)

	resp, err := g.Invoke(context.Background(), KindHumanize, "p", Params{})
	require.NoError(t, err)
	assert.Equal(t, "fast", resp.Text)
	assert.Equal(t, 2, ft.Calls())

	sink := &captureSink{}
	ft = &fakeText{results: []fakeResult{{delay: time.Second}}}
	g = newTestGateway(t, ft, cfg, sink)
	_, err = g.Invoke(context.Background(), KindHumanize, "p", Params{})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 3, ft.Calls())
	require.Len(t, sink.recs, 1)
	assert.Equal(t, 3, sink.recs[0].Attempts)
	assert.Equal(t, "timeout", sink.recs[0].Outcome)
}

func TestInvokeCallerCancellationStops(t *testing.T) {
	ft := &fakeText{results: []fakeResult{{delay: time.Second}}}
	g := newTestGateway(t, ft, testConfig(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := g.Invoke(ctx, KindDraft, "p", Params{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 1, ft.Calls())
}

func TestInvokeRateLimiter(t *testing.T) {
	cfg := testConfig()
	cfg.RatePerSecond = 1000
	cfg.Burst = 1
	ft := &fakeText{results: []fakeResult{{text: "ok"}}}
	g := newTestGateway(t, ft, cfg, nil)

	for i := 0; i < 3; i++ {
		_, err := g.Invoke(context.Background(), KindDraft, "p", Params{})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, ft.Calls())
}

func TestGenerateImage(t *testing.T) {
	sink := &captureSink{}
	g := newTestGateway(t, &fakeText{results: []fakeResult{{text: "x"}}}, testConfig(), sink)

	img, err := g.GenerateImage(context.Background(), "a chart", ImageParams{AspectRatio: "16:9"})
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.NotEmpty(t, img.Data)
	require.Len(t, sink.recs, 1)
	assert.Equal(t, KindImage, sink.recs[0].Kind)
	assert.Equal(t, 4, sink.recs[0].BytesOut)
}

func TestKindForStage(t *testing.T) {
	for _, s := range types.Stages {
		assert.Contains(t, Kinds, KindForStage(s))
	}
}
