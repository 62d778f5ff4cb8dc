// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pdiddy/content-engine/internal/textproc"
	"github.com/pdiddy/content-engine/pkg/types"
)

// checkSEOEdits verifies that the SEO stage only touched what it may: the
// opening paragraph of the body plus at most one added reference link,
// either inside that paragraph or as a new final paragraph. The opening
// paragraph is the first one that is not a heading; headings stay
// byte-identical. It returns the added link, or "" when none was added.
func checkSEOEdits(prev *types.Article, out map[types.SectionTag]string) (string, error) {
	before := textproc.Paragraphs(prev.BodyText())
	after := textproc.Paragraphs(out[types.TagContent])
	if len(before) == 0 || len(after) == 0 {
		return "", &PolicyViolationError{Reason: "content is empty"}
	}

	var appended string
	switch len(after) {
	case len(before):
	case len(before) + 1:
		appended = after[len(after)-1]
		after = after[:len(after)-1]
		if textproc.CountLinks(appended) != 1 {
			return "", &PolicyViolationError{Reason: "added final paragraph must hold exactly one link"}
		}
	default:
		return "", &PolicyViolationError{Reason: fmt.Sprintf("paragraph count changed from %d to %d", len(before), len(after))}
	}

	lead := leadIndex(before)
	for i := range before {
		if i != lead && after[i] != before[i] {
			return "", &PolicyViolationError{Reason: fmt.Sprintf("paragraph %d was modified", i+1)}
		}
	}
	if lead < 0 {
		lead = 0
	}

	added := textproc.CountLinks(after[lead]) - textproc.CountLinks(before[lead])
	if added < 0 {
		added = 0
	}
	if appended != "" {
		added++
	}
	if added > 1 {
		return "", &PolicyViolationError{Reason: fmt.Sprintf("%d links added, at most one allowed", added)}
	}

	if excerpt, ok := out[types.TagExcerpt]; ok && excerpt != prev.Excerpt {
		return "", &PolicyViolationError{Reason: "excerpt was modified"}
	}
	if tags, ok := out[types.TagTags]; ok && !slices.Equal(textproc.SplitList(tags), prev.Tags) {
		return "", &PolicyViolationError{Reason: "tags were modified"}
	}

	switch {
	case appended != "":
		return textproc.FirstLink(appended), nil
	case added == 1:
		return newLink(before[lead], after[lead]), nil
	}
	return "", nil
}

// leadIndex returns the index of the first paragraph that is not a
// markdown heading, or -1 when every paragraph is one.
func leadIndex(paras []string) int {
	for i, p := range paras {
		if !strings.HasPrefix(p, "#") {
			return i
		}
	}
	return -1
}

// newLink returns the first link target in after that before lacks.
func newLink(before, after string) string {
	for rest := after; rest != ""; {
		link := textproc.FirstLink(rest)
		if link == "" {
			return ""
		}
		if !strings.Contains(before, link) {
			return link
		}
		rest = rest[strings.Index(rest, link)+len(link):]
	}
	return ""
}
