package thread

import (
	"log/slog"
	"sort"

	"github.com/inboxcore/inboxcore/internal/mail"
)

// PreviewLength caps the plain-text excerpt attached to each rendered
// message.
const PreviewLength = 120

// RenderedMessage is one message of a conversation with a cleaned body and
// plain-text preview.
type RenderedMessage struct {
	mail.Message
	CleanBody string `json:"clean_body"`
	Preview   string `json:"preview"`
}

// Conversation is the display-ready projection of one thread. It is rebuilt
// on every open and never persisted.
type Conversation struct {
	ThreadID    string            `json:"thread_id"`
	Messages    []RenderedMessage `json:"messages"`
	Attachments []mail.Attachment `json:"attachments,omitempty"`
}

// Options configures a Pipeline.
type Options struct {
	HeaderKeywords          []string
	DOMSizeLimit            int
	AttachmentMinSize       int64
	AttachmentNoisePatterns []string
	ResolveAttachmentURL    AttachmentURLResolver
}

// Pipeline turns the raw messages of one thread into a Conversation.
type Pipeline struct {
	stripper *Stripper
	opts     Options
	log      *slog.Logger
}

// NewPipeline builds a pipeline from options.
func NewPipeline(opts Options, log *slog.Logger) *Pipeline {
	return &Pipeline{
		stripper: NewStripper(opts.HeaderKeywords, opts.DOMSizeLimit),
		opts:     opts,
		log:      log,
	}
}

// Build sorts, strips, sanitizes and resolves msgs into a Conversation.
// Messages are processed in isolation: one bad body or attachment never
// aborts the rest of the thread.
func (p *Pipeline) Build(threadID string, msgs []mail.Message) Conversation {
	sorted := make([]mail.Message, len(msgs))
	copy(sorted, msgs)

	// Newest first is the canonical display order; ties keep input order.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})

	rendered := make([]RenderedMessage, 0, len(sorted))
	for i := range sorted {
		rendered = append(rendered, p.render(sorted[i]))
	}

	attachments := FilterNoise(
		DedupAttachments(sorted),
		p.opts.AttachmentMinSize,
		p.opts.AttachmentNoisePatterns,
	)

	return Conversation{
		ThreadID:    threadID,
		Messages:    rendered,
		Attachments: attachments,
	}
}

func (p *Pipeline) render(msg mail.Message) (out RenderedMessage) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("message render panicked, keeping raw body", "message", msg.ID, "panic", r)
			out = RenderedMessage{Message: msg, CleanBody: msg.Body}
		}
	}()

	body := p.stripper.Strip(msg.Body)
	body = Sanitize(body)
	body = ResolveInlineImages(body, msg.ID, msg.Attachments, p.opts.ResolveAttachmentURL)

	return RenderedMessage{
		Message:   msg,
		CleanBody: body,
		Preview:   Preview(body, PreviewLength),
	}
}
