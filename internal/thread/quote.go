// Package thread merges, sorts, deduplicates and cleans the raw messages of
// one conversation into a display-ready sequence.
package thread

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// minStrippedLength guards against over-eager stripping: a result with less
// text than this is discarded in favor of the original body.
const minStrippedLength = 20

var (
	// wroteLineRe matches an entire "On <date>, <person> wrote:" lead-in.
	wroteLineRe      = regexp.MustCompile(`(?is)^on\s+.{1,200}?\s+wrote\s*:$`)
	trailingWroteRe  = regexp.MustCompile(`(?is)\bon\s+[^<>]{1,200}?\s+wrote\s*:\s*$`)
	blockquoteRe     = regexp.MustCompile(`(?is)<blockquote\b.*?</blockquote>`)
	quoteContainerRe = regexp.MustCompile(`(?is)<(div|span)\b[^>]*class=["'][^"']*quote[^"']*["'].*$`)
)

// textRuleTags are the only elements the text-based quote heuristics apply
// to; structural containers (html, body) are never removed on text evidence.
var textRuleTags = map[string]struct{}{
	"div": {}, "p": {}, "span": {}, "td": {},
}

// Stripper removes quoted ancestor content from message bodies. Bodies under
// domSizeLimit take the reliable DOM path; oversized bodies fall back to
// regex removal, trading accuracy for throughput.
type Stripper struct {
	headerKeywords []string
	domSizeLimit   int
}

// NewStripper builds a stripper; headerKeywords are localized reply-header
// leaders ("From:", "Von:", "De :", ...).
func NewStripper(headerKeywords []string, domSizeLimit int) *Stripper {
	return &Stripper{headerKeywords: headerKeywords, domSizeLimit: domSizeLimit}
}

// Strip removes quoted content from body. Stripping an already-stripped body
// returns it unchanged, and a result reduced below the minimum text length
// falls back to the original.
func (s *Stripper) Strip(body string) string {
	if strings.TrimSpace(body) == "" {
		return body
	}

	var stripped string
	if len(body) <= s.domSizeLimit {
		stripped = s.stripDOM(body)
	} else {
		stripped = s.stripRegex(body)
	}

	if len(strings.TrimSpace(ExtractText(stripped))) < minStrippedLength {
		return body
	}
	return stripped
}

func (s *Stripper) stripDOM(body string) string {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return s.stripRegex(body)
	}

	s.removeQuoted(doc)

	return renderBody(doc, body)
}

// removeQuoted walks the tree deleting quote containers, blockquotes,
// localized header lines and trailing "On <date>, <person> wrote:"
// boilerplate. Children are captured before removal so the walk survives
// tree mutation.
func (s *Stripper) removeQuoted(n *html.Node) {
	child := n.FirstChild
	for child != nil {
		next := child.NextSibling
		if s.isQuoted(child) {
			n.RemoveChild(child)
		} else {
			s.removeQuoted(child)
		}
		child = next
	}
}

func (s *Stripper) isQuoted(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}

	if n.Data == "blockquote" {
		return true
	}

	for _, attr := range n.Attr {
		if attr.Key == "class" && strings.Contains(strings.ToLower(attr.Val), "quote") {
			return true
		}
		// Thunderbird marks the quote header with moz-cite-prefix.
		if attr.Key == "class" && strings.Contains(attr.Val, "moz-cite") {
			return true
		}
	}

	if _, ok := textRuleTags[n.Data]; !ok {
		return false
	}

	text := strings.TrimSpace(nodeText(n))
	if text == "" {
		return false
	}

	if s.isHeaderLine(text) {
		return true
	}

	// An element that is nothing but the "On <date>, <person> wrote:"
	// lead-in above a quote.
	if len(text) <= 250 && wroteLineRe.MatchString(text) {
		return true
	}

	return false
}

// isHeaderLine matches elements whose text is a forwarded/reply header block
// ("From: ... Sent: ..." in any configured locale). Only short blocks
// qualify so ordinary prose mentioning "From:" survives.
func (s *Stripper) isHeaderLine(text string) bool {
	if len(text) > 400 {
		return false
	}
	for _, kw := range s.headerKeywords {
		if strings.HasPrefix(text, kw) {
			return true
		}
	}
	return false
}

func (s *Stripper) stripRegex(body string) string {
	out := blockquoteRe.ReplaceAllString(body, "")
	out = quoteContainerRe.ReplaceAllString(out, "")

	// Drop the trailing lead-in line left above a removed quote.
	out = trailingWroteRe.ReplaceAllString(out, "")
	return out
}

// nodeText concatenates all text content beneath n.
func nodeText(n *html.Node) string {
	var buf bytes.Buffer
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return buf.String()
}

// renderBody renders only the children of the parsed document's body
// element, so repeated parse/render cycles stay stable. Falls back to the
// original markup when rendering fails.
func renderBody(doc *html.Node, original string) string {
	body := findElement(doc, "body")
	if body == nil {
		return original
	}

	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return original
		}
	}
	return buf.String()
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
