// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package textproc

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// phraseFile accepts a mapping form of the banned-phrase file.
type phraseFile struct {
	BannedPhrases []string `yaml:"banned_phrases"`
}

// LoadPhraseFile reads a YAML banned-phrase list. The file may be a plain
// sequence of strings or a mapping with a banned_phrases key.
func LoadPhraseFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading phrase file: %w", err)
	}

	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return MergePhrases(list), nil
	}

	var f phraseFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing phrase file %s: %w", path, err)
	}
	return MergePhrases(f.BannedPhrases), nil
}
