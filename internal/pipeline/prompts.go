// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/content-engine/internal/textproc"
	"github.com/pdiddy/content-engine/pkg/types"
)

// contracts holds the required and optional sections of each stage.
var contracts = map[types.Stage]textproc.SectionSpec{
	types.StageResearch: {
		Required: []types.SectionTag{types.TagMarketData, types.TagKeyFindings},
		Optional: []types.SectionTag{types.TagRiskFactors, types.TagSources},
	},
	types.StageDraft: {
		Required: []types.SectionTag{types.TagTitle, types.TagExcerpt, types.TagContent},
		Optional: []types.SectionTag{types.TagTags},
	},
	types.StageHumanize: {
		Required: []types.SectionTag{types.TagContent},
		Optional: []types.SectionTag{types.TagTitle, types.TagExcerpt},
	},
	types.StageSEO: {
		Required: []types.SectionTag{types.TagTitle, types.TagSEOTitle, types.TagSEODescription, types.TagContent},
		Optional: []types.SectionTag{types.TagExcerpt, types.TagTags},
	},
}

// articleOrder is the section order used to hand an article to a later stage.
var articleOrder = []types.SectionTag{types.TagTitle, types.TagExcerpt, types.TagContent, types.TagTags}

// promptData feeds the stage templates.
type promptData struct {
	Topic    string
	Category string
	Audience string
	Context  string
	Keywords string

	// Research is the serialized research result, empty when skipped.
	Research string

	// Article is the serialized current article, empty before Draft.
	Article string

	// Format describes the section markers the stage must emit.
	Format string
}

// correctiveData feeds the corrective template.
type correctiveData struct {
	Stage  types.Stage
	Error  string
	Format string
	Output string
}

const formatRules = `Mark every section with an opening and a closing tag on their own lines, for example:
[TAG]
content
[/TAG]
Do not nest sections and do not repeat a section.`

var stageTemplates = map[types.Stage]*template.Template{
	types.StageResearch: template.Must(template.New("research").Parse(`You are a financial markets research analyst.
Research the topic below and report current, verifiable facts.

Topic: {{.Topic}}
{{- if .Category}}
Category: {{.Category}}{{end}}
{{- if .Audience}}
Audience: {{.Audience}}{{end}}
{{- if .Context}}
Context: {{.Context}}{{end}}
{{- if .Keywords}}
Keywords: {{.Keywords}}{{end}}

Report market data with figures and dates, the key findings a reader must know,
the main risk factors, and the sources you relied on.

{{.Format}}
`)),
	types.StageDraft: template.Must(template.New("draft").Parse(`You are a senior writer for a development finance publication.
Write a complete article on the topic below.

Topic: {{.Topic}}
{{- if .Category}}
Category: {{.Category}}{{end}}
{{- if .Audience}}
Audience: {{.Audience}}{{end}}
{{- if .Context}}
Context: {{.Context}}{{end}}
{{- if .Keywords}}
Keywords: {{.Keywords}}{{end}}
{{if .Research}}
Base the article on this research:
{{.Research}}
{{end}}
CONTENT is Markdown with ## section headings. EXCERPT is one or two sentences.
TAGS is a comma separated list.

{{.Format}}
`)),
	types.StageHumanize: template.Must(template.New("humanize").Parse(`Rewrite the article below so it reads as if an experienced human editor wrote it.
Vary sentence length, remove filler and clichés, and keep every fact, figure and heading.
{{- if .Audience}}
Audience: {{.Audience}}{{end}}

{{.Article}}
{{.Format}}
`)),
	types.StageSEO: template.Must(template.New("seo").Parse(`Optimize the article below for search engines with surgical edits only.

You may change the TITLE, write an SEO_TITLE of at most 60 characters and an
SEO_DESCRIPTION of at most 155 characters, and rewrite the first paragraph of
CONTENT to include the primary keyword. You may add at most one external reference
link, either inside the first paragraph or as a new final paragraph. Every other
paragraph must be returned exactly as given. If you return EXCERPT or TAGS they
must be unchanged.
{{- if .Keywords}}
Keywords: {{.Keywords}}{{end}}

{{.Article}}
{{.Format}}
`)),
}

const defaultCorrective = `Your previous answer for the {{.Stage}} step could not be parsed: {{.Error}}.

Return the same content again without changing its wording, formatted with these sections:
{{.Format}}

Previous answer:
{{.Output}}
`

// formatFor describes the markers a stage must emit.
func formatFor(stage types.Stage) string {
	spec := contracts[stage]
	var b strings.Builder
	b.WriteString("Required sections: ")
	b.WriteString(joinTags(spec.Required))
	b.WriteString(".\n")
	if len(spec.Optional) > 0 {
		b.WriteString("Optional sections: ")
		b.WriteString(joinTags(spec.Optional))
		b.WriteString(".\n")
	}
	b.WriteString(formatRules)
	return b.String()
}

func joinTags(tags []types.SectionTag) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = "[" + string(t) + "]"
	}
	return strings.Join(names, ", ")
}

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return b.String(), nil
}

// serializeArticle renders the article-so-far in section form.
func serializeArticle(a *types.Article) string {
	if a == nil {
		return ""
	}
	sections := make(map[types.SectionTag]string, len(articleOrder))
	for tag, v := range map[types.SectionTag]string{
		types.TagTitle:   a.Title,
		types.TagExcerpt: a.Excerpt,
		types.TagContent: a.BodyText(),
		types.TagTags:    strings.Join(a.Tags, ", "),
	} {
		if v != "" {
			sections[tag] = v
		}
	}
	return textproc.Serialize(sections, articleOrder)
}
