// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/pdiddy/content-engine/internal/httputil"
	"github.com/pdiddy/content-engine/pkg/types"
)

// Error classes returned by Invoke and GenerateImage. Check with errors.Is.
var (
	ErrTimeout         = errors.New("backend timeout")
	ErrRateLimited     = errors.New("backend rate limited")
	ErrBackend         = errors.New("backend error")
	ErrInvalidResponse = errors.New("invalid backend response")

	// ErrNotConfigured is returned by New when a kind has no backend.
	ErrNotConfigured = errors.New("backend not configured")
)

// BackendError is a failure reported by the provider. Transient errors
// (5xx, dropped connections) are retried; others fail immediately.
type BackendError struct {
	Provider  string
	Status    int
	Transient bool
	Err       error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s backend error (status %d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s backend error: %v", e.Provider, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrBackend) true.
func (e *BackendError) Is(target error) bool { return target == ErrBackend }

// retryable reports whether another attempt may succeed.
func retryable(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited) {
		return true
	}
	var be *BackendError
	return errors.As(err, &be) && be.Transient
}

// retryAfter returns the server's Retry-After hint carried by a
// rate-limited error, capped at maxRetryAfter, or zero when there is none.
func retryAfter(err error) time.Duration {
	var se *httputil.StatusError
	if !errors.Is(err, ErrRateLimited) || !errors.As(err, &se) {
		return 0
	}
	return min(se.RetryAfter, maxRetryAfter)
}

// classifyStatus maps an HTTP status from any provider onto the error classes.
func classifyStatus(provider string, code int, err error) error {
	switch httputil.Classify(code) {
	case httputil.ClassRateLimited:
		return fmt.Errorf("%w: %s: %w", ErrRateLimited, provider, err)
	case httputil.ClassTimeout:
		return fmt.Errorf("%w: %s: %v", ErrTimeout, provider, err)
	case httputil.ClassTransient:
		return &BackendError{Provider: provider, Status: code, Transient: true, Err: err}
	default:
		return &BackendError{Provider: provider, Status: code, Err: err}
	}
}

// classifyHTTP normalizes errors from httputil.PostJSON.
func classifyHTTP(provider string, err error) error {
	var se *httputil.StatusError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &se):
		return classifyStatus(provider, se.Code, se)
	case errors.Is(err, httputil.ErrDecode):
		return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, provider, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return err
	default:
		return &BackendError{Provider: provider, Transient: true, Err: err}
	}
}

// classifyGenAI normalizes errors from the genai SDK, which returns
// genai.APIError by value.
func classifyGenAI(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(string(types.ProviderGemini), apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return classifyStatus(string(types.ProviderGemini), apiErrPtr.Code, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return &BackendError{Provider: string(types.ProviderGemini), Transient: true, Err: err}
}
