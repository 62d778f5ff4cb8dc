// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package textproc

import (
	"strings"

	"github.com/pdiddy/content-engine/pkg/types"
)

// SplitBlocks splits a Markdown body into ordered blocks at ## and ###
// headings. Text before the first heading becomes a block without a
// heading; empty leading text is dropped.
func SplitBlocks(markdown string) []types.Section {
	lines := strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n")
	var blocks []types.Section
	heading := ""
	var body []string

	flush := func() {
		content := strings.TrimSpace(strings.Join(body, "\n"))
		if heading != "" || content != "" {
			blocks = append(blocks, types.Section{Heading: heading, Content: content})
		}
		body = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isHeading(trimmed) {
			flush()
			heading = stripHeadingPrefix(trimmed)
			continue
		}
		body = append(body, line)
	}
	flush()
	return blocks
}

// JoinBlocks renders blocks back to Markdown with ## headings.
func JoinBlocks(blocks []types.Section) string {
	return types.Article{Body: blocks}.BodyText()
}

func isHeading(line string) bool {
	return strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "### ")
}

func stripHeadingPrefix(line string) string {
	line = strings.TrimPrefix(line, "### ")
	line = strings.TrimPrefix(line, "## ")
	return strings.TrimSpace(line)
}
