// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// ArticleStatus tracks whether an article is visible to the site.
type ArticleStatus string

const (
	ArticleDraft     ArticleStatus = "draft"
	ArticlePublished ArticleStatus = "published"
)

// Section is one ordered block of an article body.
type Section struct {
	// Heading is the block heading without Markdown markers. The first block
	// of a body usually has no heading.
	Heading string `json:"heading,omitempty" yaml:"heading,omitempty"`

	// Content is the Markdown text under the heading.
	Content string `json:"content" yaml:"content"`
}

// Article is a generated, persisted article.
type Article struct {
	// ID is a UUID assigned when the article is first persisted.
	ID string `json:"id" yaml:"id"`

	// Slug is the URL-safe form of the title.
	Slug string `json:"slug" yaml:"slug"`

	// Title is the display title.
	Title string `json:"title" yaml:"title"`

	// SEOTitle is the search-engine title (at most 60 characters).
	SEOTitle string `json:"seo_title" yaml:"seo_title"`

	// SEODescription is the meta description (at most 155 characters).
	SEODescription string `json:"seo_description" yaml:"seo_description"`

	// Excerpt is the listing summary.
	Excerpt string `json:"excerpt" yaml:"excerpt"`

	// Body holds the ordered section blocks.
	Body []Section `json:"body" yaml:"body"`

	// Tags lists topic tags.
	Tags []string `json:"tags" yaml:"tags"`

	// Category is the site category slug (e.g. "dfi-insights").
	Category string `json:"category" yaml:"category"`

	// Keywords are the SEO keywords requested for the article.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// ExternalLink is the single reference link the SEO stage may add.
	ExternalLink string `json:"external_link,omitempty" yaml:"external_link,omitempty"`

	// Status is draft or published.
	Status ArticleStatus `json:"status" yaml:"status"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`

	// HasHeroImage is true iff a live (non-superseded) hero asset exists.
	// Only the store sets it, in the same transaction as the asset change.
	HasHeroImage bool `json:"has_hero_image" yaml:"has_hero_image"`

	// InfographicCount is the number of live infographic assets.
	InfographicCount int `json:"infographic_count" yaml:"infographic_count"`
}

// BodyText flattens the body into Markdown, headings included.
func (a Article) BodyText() string {
	var b strings.Builder
	for i, s := range a.Body {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if s.Heading != "" {
			b.WriteString("## ")
			b.WriteString(s.Heading)
			b.WriteString("\n\n")
		}
		b.WriteString(s.Content)
	}
	return b.String()
}

// NeedsAssets reports whether the article is missing a hero image or an infographic.
func (a Article) NeedsAssets() bool {
	return !a.HasHeroImage || a.InfographicCount == 0
}
