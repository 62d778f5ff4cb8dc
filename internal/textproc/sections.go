// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package textproc

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/content-engine/pkg/types"
)

// ErrFormat matches every section extraction failure.
var ErrFormat = errors.New("malformed model output")

// SectionSpec lists the tags a stage output must or may contain.
type SectionSpec struct {
	Required []types.SectionTag
	Optional []types.SectionTag
}

// Order returns required tags followed by optional ones.
func (s SectionSpec) Order() []types.SectionTag {
	out := make([]types.SectionTag, 0, len(s.Required)+len(s.Optional))
	out = append(out, s.Required...)
	return append(out, s.Optional...)
}

func (s SectionSpec) known(tag types.SectionTag) bool {
	for _, t := range s.Order() {
		if t == tag {
			return true
		}
	}
	return false
}

// MissingSectionError reports required tags absent or empty in the output.
type MissingSectionError struct {
	Tags []types.SectionTag
}

func (e *MissingSectionError) Error() string {
	names := make([]string, len(e.Tags))
	for i, t := range e.Tags {
		names[i] = string(t)
	}
	return "missing required sections: " + strings.Join(names, ", ")
}

// Is makes errors.Is(err, ErrFormat) true.
func (e *MissingSectionError) Is(target error) bool { return target == ErrFormat }

// MalformedSectionError reports a duplicated, nested or stray marker.
type MalformedSectionError struct {
	Tag    types.SectionTag
	Reason string
}

func (e *MalformedSectionError) Error() string {
	return fmt.Sprintf("malformed section [%s]: %s", e.Tag, e.Reason)
}

// Is makes errors.Is(err, ErrFormat) true.
func (e *MalformedSectionError) Is(target error) bool { return target == ErrFormat }

// markerRe matches [TAG] and [/TAG] with optional inner whitespace.
var markerRe = regexp.MustCompile(`\[\s*(/?)\s*([A-Za-z][A-Za-z_]*)\s*\]`)

type marker struct {
	tag        types.SectionTag
	closer     bool
	start, end int
}

// findMarkers returns the markers for known tags, in text order.
// Anything else in brackets, such as [1] or [note], is content.
func findMarkers(text string, spec SectionSpec) []marker {
	var out []marker
	for _, m := range markerRe.FindAllStringSubmatchIndex(text, -1) {
		tag := types.SectionTag(strings.ToUpper(text[m[4]:m[5]]))
		if !spec.known(tag) {
			continue
		}
		out = append(out, marker{
			tag:    tag,
			closer: m[3] > m[2],
			start:  m[0],
			end:    m[1],
		})
	}
	return out
}

// ExtractSections parses bracketed sections out of text. A section opens at
// [TAG] and ends at its [/TAG] closer, at the next opener, or at the end of
// the text. Sections may appear in any order; text outside sections is
// ignored and contents are trimmed. A missing or empty optional section is
// omitted; a missing or empty required one yields *MissingSectionError. A
// tag opened twice, an opener inside a section that is later explicitly
// closed, or a closer without a matching opener yields *MalformedSectionError.
func ExtractSections(text string, spec SectionSpec) (map[types.SectionTag]string, error) {
	markers := findMarkers(text, spec)
	sections := make(map[types.SectionTag]string)
	seen := make(map[types.SectionTag]bool)

	var (
		open  types.SectionTag
		start int
	)
	closeOpen := func(at int) {
		if content := strings.TrimSpace(text[start:at]); content != "" {
			sections[open] = content
		}
		open = ""
	}
	hasLaterCloser := func(tag types.SectionTag, from int) bool {
		for _, m := range markers[from:] {
			if m.closer && m.tag == tag {
				return true
			}
		}
		return false
	}

	for i, m := range markers {
		if m.closer {
			if open != m.tag {
				return nil, &MalformedSectionError{Tag: m.tag, Reason: "closer without matching opener"}
			}
			closeOpen(m.start)
			continue
		}
		if seen[m.tag] {
			return nil, &MalformedSectionError{Tag: m.tag, Reason: "duplicate section"}
		}
		if open != "" {
			if hasLaterCloser(open, i+1) {
				return nil, &MalformedSectionError{Tag: m.tag, Reason: fmt.Sprintf("nested inside [%s]", open)}
			}
			closeOpen(m.start)
		}
		seen[m.tag] = true
		open = m.tag
		start = m.end
	}
	if open != "" {
		closeOpen(len(text))
	}

	var missing []types.SectionTag
	for _, t := range spec.Required {
		if _, ok := sections[t]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingSectionError{Tags: missing}
	}
	return sections, nil
}

// Serialize writes sections back in bracketed form, in the given order.
// Tags absent from sections are skipped. ExtractSections on the output
// returns the same map when no content contains a section marker.
func Serialize(sections map[types.SectionTag]string, order []types.SectionTag) string {
	var b strings.Builder
	for _, tag := range order {
		content, ok := sections[tag]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "[%s]\n%s\n[/%s]\n\n", tag, content, tag)
	}
	if b.Len() == 0 {
		return ""
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
