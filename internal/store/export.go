// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/content-engine/pkg/types"
)

// ExportEntry is an asset record with the owning article's display fields.
type ExportEntry struct {
	types.AssetRecord `yaml:",inline"`

	Article *ExportArticle `json:"article,omitempty" yaml:"article,omitempty"`
}

// ExportArticle holds the article fields included in each export entry.
type ExportArticle struct {
	Title    string `json:"title" yaml:"title"`
	Slug     string `json:"slug" yaml:"slug"`
	Category string `json:"category" yaml:"category"`
}

const exportLimit = 100000

// ExportYAML writes the asset library to w as YAML.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, f AssetFilter) error {
	entries, err := s.exportEntries(ctx, f)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes the asset library to w as indented JSON.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, f AssetFilter) error {
	entries, err := s.exportEntries(ctx, f)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

func (s *Store) exportEntries(ctx context.Context, f AssetFilter) ([]ExportEntry, error) {
	f.Limit = exportLimit
	assets, err := s.ListAssets(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	articles := make(map[string]*ExportArticle)
	entries := make([]ExportEntry, len(assets))
	for i, a := range assets {
		entries[i] = ExportEntry{AssetRecord: a}
		ea, ok := articles[a.ArticleID]
		if !ok {
			if art, err := s.GetArticle(ctx, a.ArticleID); err == nil {
				ea = &ExportArticle{Title: art.Title, Slug: art.Slug, Category: art.Category}
			}
			articles[a.ArticleID] = ea
		}
		entries[i].Article = ea
	}
	return entries, nil
}
