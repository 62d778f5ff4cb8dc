// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package imagegen

import (
	"fmt"
	"strings"

	"github.com/pdiddy/content-engine/internal/textproc"
	"github.com/pdiddy/content-engine/pkg/types"
)

// defaultPatternStyles describe the layout of each infographic pattern.
var defaultPatternStyles = map[types.PatternType]string{
	types.PatternNumberedList: "vertical ranked list with large numbered markers and one short label per item",
	types.PatternComparison:   "two-column side-by-side comparison with contrasting panels and matching rows",
	types.PatternStatistics:   "bold data callouts with oversized figures and simple bar or donut charts",
	types.PatternProcess:      "left-to-right flow of connected steps joined by arrows",
	types.PatternTimeline:     "horizontal timeline with dated milestones along a single axis",
}

// Default aspect ratios per asset type.
const (
	defaultHeroRatio        = "16:9"
	defaultInfographicRatio = "3:4"
	defaultSupportingRatio  = "4:3"
)

// dimensions maps supported aspect ratios to output pixel sizes.
var dimensions = map[string][2]int{
	"16:9": {1408, 768},
	"9:16": {768, 1408},
	"4:3":  {1280, 896},
	"3:4":  {896, 1280},
	"1:1":  {1024, 1024},
}

// size returns the pixel size for ratio, falling back to a square.
func size(ratio string) (int, int) {
	if d, ok := dimensions[ratio]; ok {
		return d[0], d[1]
	}
	return 1024, 1024
}

func (o *Orchestrator) aspectRatio(t types.AssetType) string {
	cfg := o.cfg.Images
	switch t {
	case types.AssetHero:
		return firstNonEmpty(cfg.HeroAspectRatio, defaultHeroRatio)
	case types.AssetInfographic:
		return firstNonEmpty(cfg.InfographicAspectRatio, defaultInfographicRatio)
	}
	return firstNonEmpty(cfg.SupportingAspectRatio, defaultSupportingRatio)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (o *Orchestrator) patternStyle(p types.PatternType) string {
	if s := strings.TrimSpace(o.cfg.Images.PatternStyles[string(p)]); s != "" {
		return s
	}
	return defaultPatternStyles[p]
}

// heroPrompt describes a cover image for the article in the brand style.
func (o *Orchestrator) heroPrompt(a *types.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Editorial hero image for an article titled %q.\n", a.Title)
	if a.Excerpt != "" {
		fmt.Fprintf(&b, "Subject: %s\n", a.Excerpt)
	}
	o.writeBrand(&b, a)
	b.WriteString("Do not render any text, letters, numbers or logos.\n")
	return b.String()
}

// infographicPrompt describes an infographic of the detected pattern.
func (o *Orchestrator) infographicPrompt(a *types.Article, c types.DetectionCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Infographic for an article titled %q.\n", a.Title)
	fmt.Fprintf(&b, "Layout: %s.\n", o.patternStyle(c.Pattern))
	if c.Span != "" {
		fmt.Fprintf(&b, "Visualize: %s\n", c.Span)
	}
	o.writeBrand(&b, a)
	b.WriteString("Keep labels short and legible.\n")
	return b.String()
}

// supportingPrompt describes an illustration for the body of the article.
func (o *Orchestrator) supportingPrompt(a *types.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Supporting illustration for an article titled %q.\n", a.Title)
	if p := textproc.FirstParagraph(a.BodyText()); p != "" {
		fmt.Fprintf(&b, "Scene: %s\n", textproc.TruncateWords(p, 300))
	}
	o.writeBrand(&b, a)
	b.WriteString("Do not render any text or logos.\n")
	return b.String()
}

func (o *Orchestrator) writeBrand(b *strings.Builder, a *types.Article) {
	brand := o.cfg.Images.Brand
	if brand.Name != "" {
		fmt.Fprintf(b, "Brand: %s\n", brand.Name)
	}
	if len(brand.Style) > 0 {
		fmt.Fprintf(b, "Style: %s\n", strings.Join(brand.Style, ", "))
	}
	if len(brand.Palette) > 0 {
		fmt.Fprintf(b, "Palette: %s\n", strings.Join(brand.Palette, ", "))
	}
	if theme := o.cfg.Categories[a.Category].VisualTheme; theme != "" {
		fmt.Fprintf(b, "Theme: %s\n", theme)
	}
	if len(brand.Avoid) > 0 {
		fmt.Fprintf(b, "Avoid: %s\n", strings.Join(brand.Avoid, ", "))
	}
}
