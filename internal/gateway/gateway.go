// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gateway routes model calls to the backend configured for each
// kind of work. It owns the per-attempt timeout, retry with exponential
// backoff, per-backend rate limiting and usage reporting, so callers only
// choose a Kind and a prompt.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/content-engine/pkg/types"
)

// Kind is the closed set of work a backend can be bound to.
type Kind string

const (
	KindResearch Kind = "research"
	KindDraft    Kind = "draft"
	KindHumanize Kind = "humanize"
	KindSEO      Kind = "seo"
	KindImage    Kind = "image"
)

// Kinds lists every kind. New requires a backend for each.
var Kinds = []Kind{KindResearch, KindDraft, KindHumanize, KindSEO, KindImage}

// KindForStage returns the backend kind serving a pipeline stage.
func KindForStage(stage types.Stage) Kind {
	return Kind(stage)
}

const (
	defaultMaxAttempts = 3
	defaultTimeout     = 2 * time.Minute

	// maxRetryAfter bounds how long a server's Retry-After hint can stall a retry.
	maxRetryAfter = time.Minute
)

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = 2 * time.Second

// Params tunes one call. Unset fields fall back to the backend's configuration.
type Params struct {
	// System is an optional system instruction.
	System string

	// Temperature overrides the configured value when non-nil, zero included.
	Temperature *float64

	MaxOutputTokens int
}

// Request is what a TextBackend receives after params are resolved. A nil
// Temperature leaves the provider default in place.
type Request struct {
	Prompt          string
	System          string
	Temperature     *float64
	MaxOutputTokens int
}

// Response is the text a backend produced plus token usage. Token counts
// are zero when the provider does not report them.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// ImageParams tunes one image call.
type ImageParams struct {
	// AspectRatio such as "16:9" or "3:4".
	AspectRatio string

	// MIMEType of the requested output, default image/png.
	MIMEType string
}

// Image is a generated image.
type Image struct {
	Data     []byte
	MIMEType string
}

// TextBackend generates text. Implementations make exactly one provider
// call per invocation and classify failures with the package's error
// classes; the gateway handles retries.
type TextBackend interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// ImageBackend generates images, with the same contract as TextBackend.
type ImageBackend interface {
	GenerateImage(ctx context.Context, prompt string, params ImageParams) (Image, error)
}

// Backend binds a kind to a concrete provider and its configuration.
type Backend struct {
	Config types.BackendConfig
	Text   TextBackend
	Image  ImageBackend
}

type binding struct {
	Backend
	limiter *rate.Limiter
}

// Gateway dispatches calls by kind.
type Gateway struct {
	bindings map[Kind]*binding
	usage    UsageSink
	logger   *zap.Logger
}

// New validates that every kind is bound and builds the gateway. A nil
// usage sink discards usage records.
func New(backends map[Kind]Backend, usage UsageSink, logger *zap.Logger) (*Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		bindings: make(map[Kind]*binding, len(Kinds)),
		usage:    usage,
		logger:   logger.Named("gateway"),
	}
	for _, kind := range Kinds {
		b, ok := backends[kind]
		if !ok || (kind == KindImage && b.Image == nil) || (kind != KindImage && b.Text == nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, kind)
		}
		bind := &binding{Backend: b}
		if b.Config.RatePerSecond > 0 {
			burst := b.Config.Burst
			if burst <= 0 {
				burst = 1
			}
			bind.limiter = rate.NewLimiter(rate.Limit(b.Config.RatePerSecond), burst)
		}
		g.bindings[kind] = bind
	}
	return g, nil
}

// Describe returns provider and model per kind, for status output.
func (g *Gateway) Describe() map[Kind]string {
	out := make(map[Kind]string, len(g.bindings))
	for k, b := range g.bindings {
		out[k] = fmt.Sprintf("%s/%s", b.Config.Provider, b.Config.Model)
	}
	return out
}

// Invoke sends prompt to the text backend bound to kind.
func (g *Gateway) Invoke(ctx context.Context, kind Kind, prompt string, params Params) (Response, error) {
	b, ok := g.bindings[kind]
	if !ok || b.Text == nil {
		return Response{}, fmt.Errorf("%w: %s", ErrNotConfigured, kind)
	}

	req := Request{
		Prompt:          prompt,
		System:          params.System,
		Temperature:     params.Temperature,
		MaxOutputTokens: params.MaxOutputTokens,
	}
	if req.Temperature == nil && b.Config.Temperature > 0 {
		t := b.Config.Temperature
		req.Temperature = &t
	}
	if req.MaxOutputTokens == 0 {
		req.MaxOutputTokens = b.Config.MaxOutputTokens
	}

	start := time.Now()
	resp, attempts, err := withRetry(ctx, b, func(actx context.Context) (Response, error) {
		return b.Text.Generate(actx, req)
	})
	if err == nil && resp.Text == "" {
		err = fmt.Errorf("%w: empty text", ErrInvalidResponse)
	}

	in, out := resp.InputTokens, resp.OutputTokens
	if in == 0 {
		in = estimateTokens(prompt) + estimateTokens(req.System)
	}
	if out == 0 {
		out = estimateTokens(resp.Text)
	}
	g.record(UsageRecord{
		Kind:         kind,
		Provider:     string(b.Config.Provider),
		Model:        b.Config.Model,
		Attempts:     attempts,
		BytesIn:      len(prompt) + len(req.System),
		BytesOut:     len(resp.Text),
		InputTokens:  in,
		OutputTokens: out,
		CostUSD:      cost(b.Config, in, out),
		Duration:     time.Since(start),
		Outcome:      outcome(err),
	})

	if err != nil {
		g.logger.Warn("invoke failed",
			zap.String("kind", string(kind)),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return Response{}, fmt.Errorf("%s backend after %d attempt(s): %w", kind, attempts, err)
	}
	return resp, nil
}

// GenerateImage sends prompt to the image backend.
func (g *Gateway) GenerateImage(ctx context.Context, prompt string, params ImageParams) (Image, error) {
	b := g.bindings[KindImage]
	if b == nil || b.Image == nil {
		return Image{}, fmt.Errorf("%w: %s", ErrNotConfigured, KindImage)
	}
	if params.MIMEType == "" {
		params.MIMEType = "image/png"
	}

	start := time.Now()
	img, attempts, err := withRetry(ctx, b, func(actx context.Context) (Image, error) {
		return b.Image.GenerateImage(actx, prompt, params)
	})
	if err == nil && len(img.Data) == 0 {
		err = fmt.Errorf("%w: no image data", ErrInvalidResponse)
	}

	in := estimateTokens(prompt)
	g.record(UsageRecord{
		Kind:        KindImage,
		Provider:    string(b.Config.Provider),
		Model:       b.Config.Model,
		Attempts:    attempts,
		BytesIn:     len(prompt),
		BytesOut:    len(img.Data),
		InputTokens: in,
		CostUSD:     cost(b.Config, in, 0),
		Duration:    time.Since(start),
		Outcome:     outcome(err),
	})

	if err != nil {
		g.logger.Warn("image generation failed", zap.Int("attempts", attempts), zap.Error(err))
		return Image{}, fmt.Errorf("%s backend after %d attempt(s): %w", KindImage, attempts, err)
	}
	return img, nil
}

func (g *Gateway) record(rec UsageRecord) {
	if g.usage != nil {
		g.usage.Record(rec)
	}
}

// withRetry runs call with a fresh per-attempt timeout until it succeeds,
// fails with a non-retryable error, or MaxAttempts is reached. A rate-limited
// attempt waits at least as long as the server's Retry-After hint. An attempt
// that outlives its own deadline while ctx is still live is ErrTimeout.
// Cancellation of ctx itself stops immediately.
func withRetry[T any](ctx context.Context, b *binding, call func(context.Context) (T, error)) (T, int, error) {
	var zero T
	maxAttempts := b.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	timeout := b.Config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := max(time.Duration(math.Pow(2, float64(attempt-2)))*backoffBase, retryAfter(lastErr))
			select {
			case <-ctx.Done():
				return zero, attempt - 1, ctx.Err()
			case <-time.After(backoff):
			}
		}
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return zero, attempt - 1, err
			}
		}

		actx, cancel := context.WithTimeout(ctx, timeout)
		v, err := call(actx)
		cancel()
		if err == nil {
			return v, attempt, nil
		}
		if ctx.Err() != nil {
			return zero, attempt, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w after %s: %v", ErrTimeout, timeout, err)
		}
		lastErr = err
		if !retryable(err) {
			return zero, attempt, err
		}
	}
	return zero, maxAttempts, lastErr
}

// estimateTokens approximates token count at four bytes per token.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

func cost(cfg types.BackendConfig, in, out int) float64 {
	return (float64(in)*cfg.InputCostPerMTok + float64(out)*cfg.OutputCostPerMTok) / 1e6
}

// outcome labels an error for usage records and metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, ErrBackend):
		return "backend_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
