package campaign

import (
	"html"
	"strings"
)

// RenderHTML converts a plain-text body into HTML with one paragraph per
// line. Text is escaped.
func RenderHTML(body string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	var b strings.Builder
	for _, line := range lines {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>")
	}
	return b.String()
}
