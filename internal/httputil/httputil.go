// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the JSON-over-HTTP plumbing shared by the
// HTTP model backends. It performs one request per call; retries belong to
// the caller.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxBody caps how much of a response body is read.
const maxBody = 32 << 20

// maxErrorBody caps the body text kept on a StatusError.
const maxErrorBody = 512

// ErrDecode marks a 2xx response whose body could not be decoded.
var ErrDecode = errors.New("decoding response body")

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int

	// Body is the start of the response body, for diagnostics.
	Body string

	// RetryAfter is the server's Retry-After hint, zero when absent.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Class groups HTTP failures by how a caller should react.
type Class int

const (
	// ClassPermanent failures will not succeed on retry (bad request, auth).
	ClassPermanent Class = iota

	// ClassTransient failures may succeed on retry (5xx, connection reset).
	ClassTransient

	// ClassRateLimited is HTTP 429.
	ClassRateLimited

	// ClassTimeout is HTTP 408 or 504.
	ClassTimeout
)

// Classify maps a status code to a Class.
func Classify(code int) Class {
	switch {
	case code == http.StatusTooManyRequests:
		return ClassRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return ClassTimeout
	case code >= 500:
		return ClassTransient
	default:
		return ClassPermanent
	}
}

// PostJSON marshals in, POSTs it to url with the given headers and decodes
// a 2xx response into out. Non-2xx responses return *StatusError; an
// undecodable or empty 2xx body returns an error wrapping ErrDecode.
// Transport errors are returned as is.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := strings.TrimSpace(string(data))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return &StatusError{
			Code:       resp.StatusCode,
			Body:       text,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: empty body", ErrDecode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// parseRetryAfter understands the delta-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
