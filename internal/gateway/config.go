// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gateway

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/pdiddy/content-engine/pkg/types"
)

// ConfigFor returns the backend configuration bound to kind.
func ConfigFor(cfg types.BackendsConfig, kind Kind) types.BackendConfig {
	switch kind {
	case KindResearch:
		return cfg.Research
	case KindDraft:
		return cfg.Draft
	case KindHumanize:
		return cfg.Humanize
	case KindSEO:
		return cfg.SEO
	case KindImage:
		return cfg.Image
	}
	return types.BackendConfig{}
}

// FromConfig builds a concrete backend for every kind. Gemini clients are
// shared between kinds that use the same key.
func FromConfig(ctx context.Context, cfg types.BackendsConfig, client *http.Client) (map[Kind]Backend, error) {
	geminiClients := make(map[string]*genai.Client)
	gemini := func(bc types.BackendConfig) (*genai.Client, error) {
		key := bc.APIKey + "\x00" + bc.BaseURL
		if c, ok := geminiClients[key]; ok {
			return c, nil
		}
		c, err := NewGeminiClient(ctx, bc.APIKey, bc.BaseURL)
		if err != nil {
			return nil, err
		}
		geminiClients[key] = c
		return c, nil
	}

	out := make(map[Kind]Backend, len(Kinds))
	for _, kind := range Kinds {
		bc := ConfigFor(cfg, kind)
		if bc.Provider == "" || bc.Model == "" {
			return nil, fmt.Errorf("%w: %s (provider and model are required)", ErrNotConfigured, kind)
		}

		b := Backend{Config: bc}
		switch bc.Provider {
		case types.ProviderGemini:
			c, err := gemini(bc)
			if err != nil {
				return nil, fmt.Errorf("%s backend: %w", kind, err)
			}
			gb := NewGeminiBackend(c, bc.Model, bc.Grounding)
			if kind == KindImage {
				b.Image = gb
			} else {
				b.Text = gb
			}
		case types.ProviderAnthropic:
			if kind == KindImage {
				return nil, fmt.Errorf("%s backend: provider %s cannot generate images", kind, bc.Provider)
			}
			if bc.APIKey == "" {
				return nil, fmt.Errorf("%s backend: anthropic API key is required", kind)
			}
			b.Text = &AnthropicBackend{APIKey: bc.APIKey, Model: bc.Model, URL: bc.BaseURL, Client: client}
		case types.ProviderOpenAI:
			if kind == KindImage {
				return nil, fmt.Errorf("%s backend: provider %s cannot generate images", kind, bc.Provider)
			}
			if bc.APIKey == "" {
				return nil, fmt.Errorf("%s backend: openai API key is required", kind)
			}
			b.Text = &OpenAIBackend{APIKey: bc.APIKey, Model: bc.Model, BaseURL: bc.BaseURL, Client: client}
		default:
			return nil, fmt.Errorf("%s backend: unknown provider %q", kind, bc.Provider)
		}
		out[kind] = b
	}
	return out, nil
}
