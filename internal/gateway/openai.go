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

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIBackend calls any OpenAI-compatible chat completions endpoint.
type OpenAIBackend struct {
	APIKey string
	Model  string

	// BaseURL is the API root, e.g. https://api.openai.com/v1.
	BaseURL string
	Client  *http.Client
}

var _ TextBackend = (*OpenAIBackend)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate implements TextBackend.
func (o *OpenAIBackend) Generate(ctx context.Context, req Request) (Response, error) {
	body := chatRequest{
		Model:     o.Model,
		MaxTokens: req.MaxOutputTokens,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})
	body.Temperature = req.Temperature

	base := o.BaseURL
	if base == "" {
		base = openAIBaseURL
	}
	url := strings.TrimRight(base, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + o.APIKey}

	var resp chatResponse
	if err := httputil.PostJSON(ctx, o.Client, url, headers, body, &resp); err != nil {
		return Response{}, classifyHTTP(string(types.ProviderOpenAI), err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Response{}, fmt.Errorf("%w: no choices in chat completion", ErrInvalidResponse)
	}
	return Response{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
