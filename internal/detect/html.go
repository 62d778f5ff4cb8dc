// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package detect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var htmlTag = regexp.MustCompile(`(?i)</?(?:p|div|li|ol|ul|h[1-6]|table|tr|td|br|span|strong|em|article|section)\b[^>]*>`)

// looksLikeHTML reports whether body carries block-level HTML markup.
func looksLikeHTML(body string) bool {
	return htmlTag.MatchString(body)
}

// normalize returns body as plain text with one line per block. Ordered
// list items keep their numbers and table rows keep pipe separators, so
// the scorers see the same shapes they see in Markdown.
func normalize(body string) string {
	if !looksLikeHTML(body) {
		return body
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}

	var lines []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, tr, blockquote").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "li":
			if goquery.NodeName(s.Parent()) == "ol" {
				lines = append(lines, fmt.Sprintf("%d. %s", s.Index()+1, clean(s.Text())))
				return
			}
			lines = append(lines, "- "+clean(s.Text()))
		case "tr":
			var cells []string
			s.Find("th, td").Each(func(_ int, c *goquery.Selection) {
				cells = append(cells, clean(c.Text()))
			})
			lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
		case "p":
			// Paragraphs inside list items are covered by the item.
			if s.ParentsFiltered("li").Length() > 0 {
				return
			}
			lines = append(lines, clean(s.Text()))
		default:
			lines = append(lines, clean(s.Text()))
		}
	})
	if len(lines) == 0 {
		return clean(doc.Text())
	}
	return strings.Join(lines, "\n")
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
