// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/content-engine/internal/httputil"
	"github.com/pdiddy/content-engine/pkg/types"
)

const (
	anthropicAPIURL  = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"

	defaultAnthropicMaxTokens = 4096
)

// AnthropicBackend calls the Claude Messages API.
type AnthropicBackend struct {
	APIKey string
	Model  string

	// URL overrides the Messages endpoint.
	URL    string
	Client *http.Client
}

var _ TextBackend = (*AnthropicBackend)(nil)

// anthropicRequest is the request body for the Messages API.
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse is the response body from the Messages API.
type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Generate implements TextBackend.
func (a *AnthropicBackend) Generate(ctx context.Context, req Request) (Response, error) {
	body := anthropicRequest{
		Model:     a.Model,
		MaxTokens: req.MaxOutputTokens,
		System:    req.System,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = defaultAnthropicMaxTokens
	}
	body.Temperature = req.Temperature

	url := a.URL
	if url == "" {
		url = anthropicAPIURL
	}
	headers := map[string]string{
		"x-api-key":         a.APIKey,
		"anthropic-version": anthropicVersion,
	}

	var resp anthropicResponse
	if err := httputil.PostJSON(ctx, a.Client, url, headers, body, &resp); err != nil {
		return Response{}, classifyHTTP(string(types.ProviderAnthropic), err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return Response{}, fmt.Errorf("%w: no text content in Claude response", ErrInvalidResponse)
	}
	return Response{
		Text:         text.String(),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}
