// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gateway

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiBackend serves text and image kinds through the Gemini API. With
// Grounding set, text calls enable the Google Search tool so research
// output can cite current sources.
type GeminiBackend struct {
	client    *genai.Client
	model     string
	grounding bool
}

var (
	_ TextBackend  = (*GeminiBackend)(nil)
	_ ImageBackend = (*GeminiBackend)(nil)
)

// NewGeminiClient creates a Gemini API client. baseURL is only set in tests.
func NewGeminiClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return client, nil
}

// NewGeminiBackend wraps a shared client for one model.
func NewGeminiBackend(client *genai.Client, model string, grounding bool) *GeminiBackend {
	return &GeminiBackend{client: client, model: model, grounding: grounding}
}

// Generate implements TextBackend.
func (g *GeminiBackend) Generate(ctx context.Context, req Request) (Response, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if g.grounding {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return Response{}, classifyGenAI(err)
	}

	out := Response{Text: resp.Text()}
	if out.Text == "" {
		return Response{}, fmt.Errorf("%w: gemini returned no text", ErrInvalidResponse)
	}
	if u := resp.UsageMetadata; u != nil {
		out.InputTokens = int(u.PromptTokenCount)
		out.OutputTokens = int(u.CandidatesTokenCount)
	}
	return out, nil
}

// GenerateImage implements ImageBackend with an Imagen model.
func (g *GeminiBackend) GenerateImage(ctx context.Context, prompt string, params ImageParams) (Image, error) {
	resp, err := g.client.Models.GenerateImages(ctx, g.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    params.AspectRatio,
		OutputMIMEType: params.MIMEType,
	})
	if err != nil {
		return Image{}, classifyGenAI(err)
	}

	for _, gi := range resp.GeneratedImages {
		if gi == nil || gi.Image == nil || len(gi.Image.ImageBytes) == 0 {
			continue
		}
		mime := gi.Image.MIMEType
		if mime == "" {
			mime = params.MIMEType
		}
		return Image{Data: gi.Image.ImageBytes, MIMEType: mime}, nil
	}
	return Image{}, fmt.Errorf("%w: gemini returned no image", ErrInvalidResponse)
}
