// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads provider API keys from a directory of plain-text files.
// Each file in the directory holds one secret: the filename is the key name and
// the trimmed file contents are the value.
//
// Recognised key files: gemini-api-key, anthropic-api-key, openai-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/content-engine/pkg/types"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory is not an error; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, logger *zap.Logger) (map[string]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// KeyName returns the secret file holding the API key for p.
func KeyName(p types.Provider) string {
	return string(p) + "-api-key"
}

// Apply fills empty backend API keys from secrets. Keys set in configuration
// win. It returns the kinds that received a key, in config order.
func Apply(b *types.BackendsConfig, secrets map[string]string) []string {
	var applied []string
	for _, e := range []struct {
		name string
		cfg  *types.BackendConfig
	}{
		{"research", &b.Research},
		{"draft", &b.Draft},
		{"humanize", &b.Humanize},
		{"seo", &b.SEO},
		{"image", &b.Image},
	} {
		if e.cfg.APIKey != "" || e.cfg.Provider == "" {
			continue
		}
		if v, ok := secrets[KeyName(e.cfg.Provider)]; ok {
			e.cfg.APIKey = v
			applied = append(applied, e.name)
		}
	}
	return applied
}
