package thread_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inboxcore/inboxcore/internal/config"
	"github.com/inboxcore/inboxcore/internal/thread"
)

func newStripper() *thread.Stripper {
	cfg := config.Default()
	return thread.NewStripper(cfg.QuoteHeaderKeywords, cfg.QuoteDOMSizeLimit)
}

func TestStripRemovesBlockquote(t *testing.T) {
	s := newStripper()

	body := `<div>Thanks, that works for me and I will follow up tomorrow.</div>` +
		`<blockquote>older message content that was quoted in the reply</blockquote>`

	got := s.Strip(body)
	assert.Contains(t, got, "follow up tomorrow")
	assert.NotContains(t, got, "older message content")
}

func TestStripRemovesQuoteContainers(t *testing.T) {
	cases := []struct {
		name string
		body string
		gone string
	}{
		{
			name: "gmail quote div",
			body: `<div>Sounds good, see you there at the usual place.</div><div class="gmail_quote">On Mon someone wrote quoted text</div>`,
			gone: "quoted text",
		},
		{
			name: "yahoo quoted",
			body: `<p>Yes, the numbers look correct to me now.</p><div class="yahoo_quoted">previous exchange body</div>`,
			gone: "previous exchange",
		},
		{
			name: "localized header line",
			body: `<div>Der Bericht ist fertig und liegt im Ordner bereit.</div><div>Von: Alice &lt;a@example.com&gt; Gesendet: Montag</div>`,
			gone: "Gesendet",
		},
		{
			name: "wrote lead-in",
			body: `<div>I checked the logs and everything looks healthy.</div><div>On Tue, Mar 3, 2026 at 9:15 AM Bob &lt;bob@example.com&gt; wrote:</div>`,
			gone: "wrote:",
		},
	}

	s := newStripper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Strip(tc.body)
			assert.NotContains(t, got, tc.gone)
		})
	}
}

func TestStripFallsBackWhenResultTooShort(t *testing.T) {
	s := newStripper()

	// Everything is quoted; stripping would leave nothing, which is worse
	// than an unstripped message.
	body := `<blockquote>the entire body is one big quote with plenty of text inside</blockquote>`
	assert.Equal(t, body, s.Strip(body))
}

func TestStripIdempotent(t *testing.T) {
	s := newStripper()

	bodies := []string{
		`<div>Thanks, that works for me and I will follow up tomorrow.</div><blockquote>quoted ancestor content</blockquote>`,
		`<p>Plain reply with no quoted content at all, long enough to keep.</p>`,
		`<div>Sounds good, see you there at the usual place.</div><div class="gmail_quote">quoted</div>`,
	}

	for _, body := range bodies {
		once := s.Strip(body)
		twice := s.Strip(once)
		assert.Equal(t, once, twice, "stripping must be idempotent")
	}
}

func TestStripOversizedBodyUsesRegexPath(t *testing.T) {
	cfg := config.Default()
	s := thread.NewStripper(cfg.QuoteHeaderKeywords, 100) // tiny DOM limit

	body := `<div>` + strings.Repeat("Real content here. ", 20) + `</div>` +
		`<blockquote>quoted ancestor text</blockquote>`

	got := s.Strip(body)
	assert.Contains(t, got, "Real content here.")
	assert.NotContains(t, got, "quoted ancestor")
}

func TestStripNeverBelowMinimumWithoutFallback(t *testing.T) {
	s := newStripper()

	bodies := []string{
		`<blockquote>short</blockquote>`,
		`<div class="gmail_quote">x</div>`,
		`<div>tiny</div><blockquote>big quoted part with lots of words in it</blockquote>`,
	}
	for _, body := range bodies {
		got := s.Strip(body)
		text := thread.ExtractText(got)
		if len(text) < 20 {
			// Under the threshold is only legal when the result is the
			// untouched original.
			assert.Equal(t, body, got)
		}
	}
}
