package summary

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
)

var (
	headingRe = regexp.MustCompile(`(?s)<h[1-6][^>]*>(.*?)</h[1-6]>`)
	listRe    = regexp.MustCompile(`(?s)<(ul|ol)[^>]*>(.*?)</(?:ul|ol)>`)
	itemRe    = regexp.MustCompile(`(?s)<li[^>]*>(.*?)</li>`)
	paraRe    = regexp.MustCompile(`(?s)<p>(.*?)</p>`)
)

// RenderHTML converts a markdown reply into the restricted HTML chat clients
// accept: headings become bold lines and lists become bullet lines.
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render reply: %w", err)
	}
	html := buf.String()
	html = headingRe.ReplaceAllString(html, "<b>$1</b>\n")
	html = flattenLists(html)
	html = paraRe.ReplaceAllString(html, "$1\n")
	return strings.TrimSpace(html), nil
}

func flattenLists(html string) string {
	return listRe.ReplaceAllStringFunc(html, func(block string) string {
		parts := listRe.FindStringSubmatch(block)
		items := itemRe.FindAllStringSubmatch(block, -1)
		if len(parts) != 3 || len(items) == 0 {
			return block
		}
		var b strings.Builder
		for i, item := range items {
			text := strings.TrimSpace(paraRe.ReplaceAllString(item[1], "$1"))
			if parts[1] == "ol" {
				fmt.Fprintf(&b, "%d. %s\n", i+1, text)
			} else {
				fmt.Fprintf(&b, "• %s\n", text)
			}
		}
		return b.String()
	})
}
