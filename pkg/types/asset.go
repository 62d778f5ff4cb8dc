// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// AssetType classifies a generated image.
type AssetType string

const (
	AssetHero        AssetType = "hero"
	AssetInfographic AssetType = "infographic"
	AssetSupporting  AssetType = "supporting"
)

// ParseAssetType validates an asset type string.
func ParseAssetType(s string) (AssetType, error) {
	switch t := AssetType(s); t {
	case AssetHero, AssetInfographic, AssetSupporting:
		return t, nil
	}
	return "", fmt.Errorf("unknown asset type %q (want hero, infographic or supporting)", s)
}

// AssetRecord describes one generated image. Records are never overwritten:
// a newer record of the same kind supersedes the older one, which is kept
// for audit until purged.
type AssetRecord struct {
	ID        string    `json:"id" yaml:"id"`
	ArticleID string    `json:"article_id" yaml:"article_id"`
	Type      AssetType `json:"type" yaml:"type"`

	// Pattern is the detected pattern an infographic visualizes.
	Pattern PatternType `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	// Prompt is the exact prompt sent to the image backend.
	Prompt string `json:"prompt" yaml:"prompt"`

	Width    int    `json:"width" yaml:"width"`
	Height   int    `json:"height" yaml:"height"`
	MIMEType string `json:"mime_type" yaml:"mime_type"`

	// Path is the image file location relative to the assets directory.
	Path  string `json:"path" yaml:"path"`
	Bytes int64  `json:"bytes" yaml:"bytes"`

	// Backend is the model that produced the image.
	Backend string `json:"backend" yaml:"backend"`

	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	SupersededBy string     `json:"superseded_by,omitempty" yaml:"superseded_by,omitempty"`
	SupersededAt *time.Time `json:"superseded_at,omitempty" yaml:"superseded_at,omitempty"`
}

// Live reports whether the record has not been superseded.
func (a AssetRecord) Live() bool {
	return a.SupersededBy == ""
}
