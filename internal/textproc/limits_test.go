// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package textproc

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/content-engine/pkg/types"
)

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short unchanged", "Rates rise", 60, "Rates rise"},
		{"cut at word boundary", "Development finance institutions expand", 20, "Development finance"},
		{"exact boundary", "alpha beta gamma", 10, "alpha beta"},
		{"drops dangling punctuation", "alpha, beta gamma", 8, "alpha"},
		{"single long word hard cut", "supercalifragilistic", 5, "super"},
		{"rune safe", "Émergence économique rapide", 10, "Émergence"},
		{"zero max", "anything", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateWords(tt.in, tt.max)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), max(tt.max, 0))
		})
	}
}

func TestParagraphs(t *testing.T) {
	body := "First line\ncontinues.\n\n  \n Second.\r\n\r\nThird."
	assert.Equal(t, []string{"First line\ncontinues.", "Second.", "Third."}, Paragraphs(body))
	assert.Equal(t, "First line\ncontinues.", FirstParagraph(body))
	assert.Equal(t, "", FirstParagraph("  \n\n "))
}

func TestReplaceFirstParagraph(t *testing.T) {
	body := "Intro.\n\nMiddle.\n\nEnd."
	assert.Equal(t, "New intro.\n\nMiddle.\n\nEnd.", ReplaceFirstParagraph(body, "New intro."))
	assert.Equal(t, "Only.", ReplaceFirstParagraph("", "Only."))
}

func TestCountLinks(t *testing.T) {
	assert.Equal(t, 0, CountLinks("no links here [1]"))
	assert.Equal(t, 1, CountLinks("see [IFC](https://ifc.org/report)"))
	assert.Equal(t, 2, CountLinks("see [IFC](https://ifc.org) and https://worldbank.org/data"))
	assert.Equal(t, "https://ifc.org", FirstLink("see [IFC](https://ifc.org) and https://worldbank.org"))
	assert.Equal(t, "https://worldbank.org", FirstLink("read https://worldbank.org now"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"dfi", "climate finance", "rates"}, SplitList("dfi, climate finance\n- rates\n"))
	assert.Empty(t, SplitList(" , \n"))
}

func TestSplitBlocks(t *testing.T) {
	md := "Lead paragraph.\n\n## Market\n\nRates rose.\n\n### Detail\nMore.\n"
	blocks := SplitBlocks(md)
	assert.Equal(t, []types.Section{
		{Content: "Lead paragraph."},
		{Heading: "Market", Content: "Rates rose."},
		{Heading: "Detail", Content: "More."},
	}, blocks)

	joined := JoinBlocks(blocks)
	assert.Equal(t, "Lead paragraph.\n\n## Market\n\nRates rose.\n\n## Detail\n\nMore.", joined)
	assert.Equal(t, blocks, SplitBlocks(joined))
}

func TestSplitBlocksNoLead(t *testing.T) {
	blocks := SplitBlocks("\n## Only\nText")
	assert.Equal(t, []types.Section{{Heading: "Only", Content: "Text"}}, blocks)
	assert.Empty(t, SplitBlocks("   "))
}
