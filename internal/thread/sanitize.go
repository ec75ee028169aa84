package thread

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	scriptRe     = regexp.MustCompile(`(?is)<script\b.*?</script>|<script\b[^>]*/>`)
	stylesheetRe = regexp.MustCompile(`(?is)<link\b[^>]*rel=["']?stylesheet["']?[^>]*>`)
	positionRe   = regexp.MustCompile(`(?i)position\s*:\s*(fixed|absolute)`)
)

// Sanitize strips script elements and external stylesheet references and
// rewrites fixed/absolute inline positioning to relative, so no message can
// visually escape its rendering container. This is deliberately not full
// HTML sanitization; the isolated rendering sub-document is the real
// security boundary.
func Sanitize(body string) string {
	out := scriptRe.ReplaceAllString(body, "")
	out = stylesheetRe.ReplaceAllString(out, "")
	out = positionRe.ReplaceAllString(out, "position: relative")
	return out
}

// ExtractText returns the plain text of an HTML fragment with quoted
// content (blockquotes and quote-classed containers) discarded and
// whitespace collapsed.
func ExtractText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "blockquote", "script", "style":
				return
			}
			for _, attr := range n.Attr {
				if attr.Key == "class" && strings.Contains(strings.ToLower(attr.Val), "quote") {
					return
				}
			}
		}
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// Preview produces a plain-text excerpt of at most limit runes.
func Preview(body string, limit int) string {
	text := ExtractText(body)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit]))
}
