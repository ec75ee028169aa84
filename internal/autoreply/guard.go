// Package autoreply sends at most one out-of-office reply per distinct
// sender, even when a fetch batch carries many unread messages from the
// same address concurrently.
package autoreply

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/inboxcore/inboxcore/internal/mail"
)

// Sender dispatches the synthesized reply through the remote provider,
// threaded into the original conversation.
type Sender interface {
	SendReply(ctx context.Context, to mail.Address, subject, bodyHTML, threadID string) error
}

// Guard holds the two disjoint dedup sets. An address in pending blocks
// re-entry; an address enters processed only after the remote send
// succeeds. State is process-lifetime, reset on cache clear or
// out-of-office toggle.
type Guard struct {
	sender   Sender
	identity oooSource
	log      *slog.Logger

	internal  map[string]struct{}
	automated []string

	mu        sync.Mutex
	processed map[string]struct{}
	pending   map[string]struct{}
}

type oooSource interface {
	OutOfOffice() []string
}

// NewGuard builds a guard. internalAddresses are the account's own
// addresses; automatedPatterns are substrings marking machine senders
// (noreply, notifications, ...), both matched case-insensitively.
func NewGuard(sender Sender, identity oooSource, internalAddresses, automatedPatterns []string, log *slog.Logger) *Guard {
	internal := make(map[string]struct{}, len(internalAddresses))
	for _, addr := range internalAddresses {
		internal[strings.ToLower(strings.TrimSpace(addr))] = struct{}{}
	}
	patterns := make([]string, 0, len(automatedPatterns))
	for _, p := range automatedPatterns {
		patterns = append(patterns, strings.ToLower(p))
	}

	return &Guard{
		sender:    sender,
		identity:  identity,
		log:       log,
		internal:  internal,
		automated: patterns,
		processed: make(map[string]struct{}),
		pending:   make(map[string]struct{}),
	}
}

// Process decides whether msg's sender receives an auto-reply and sends it.
// Failures are logged and swallowed so the batch loop that calls this for
// every unread message never breaks.
func (g *Guard) Process(ctx context.Context, msg *mail.Message) {
	sender := msg.SenderKey()
	if sender == "" {
		return
	}

	// Check and claim must happen under one lock hold: two concurrent
	// calls for the same sender would otherwise both pass the check and
	// both send.
	if !g.claim(sender) {
		return
	}
	defer g.release(sender)

	names := g.identity.OutOfOffice()
	if len(names) == 0 {
		return
	}

	subject, body := composeReply(names, msg.Subject)

	// Dispatch to the normalized address so the reply target matches the
	// dedup key, whatever casing the header carried.
	to := mail.Address{Name: msg.From.Name, Email: sender}
	if err := g.sender.SendReply(ctx, to, subject, body, msg.ThreadID); err != nil {
		// Not marked processed: the sender stays eligible for retry on
		// a later fetch.
		g.log.Warn("auto-reply dispatch failed", "sender", sender, "error", err)
		return
	}

	g.markProcessed(sender)
	g.log.Info("auto-reply sent", "sender", sender, "thread", msg.ThreadID)
}

// claim atomically rejects excluded/known senders and adds the address to
// pending before any asynchronous work begins.
func (g *Guard) claim(sender string) bool {
	if g.isExcluded(sender) {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.processed[sender]; ok {
		return false
	}
	if _, ok := g.pending[sender]; ok {
		return false
	}
	g.pending[sender] = struct{}{}
	return true
}

func (g *Guard) release(sender string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pending, sender)
}

func (g *Guard) markProcessed(sender string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.processed[sender] = struct{}{}
}

func (g *Guard) isExcluded(sender string) bool {
	if _, ok := g.internal[sender]; ok {
		return true
	}
	for _, p := range g.automated {
		if strings.Contains(sender, p) {
			return true
		}
	}
	return false
}

// Reset clears both dedup sets. Called on explicit cache clear and whenever
// out-of-office status changes, so a newly-out-of-office profile can reach
// senders already replied to in a previous state.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.processed = make(map[string]struct{})
	g.pending = make(map[string]struct{})
}

// ProcessedCount reports how many distinct senders were replied to this
// session.
func (g *Guard) ProcessedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.processed)
}

func composeReply(names []string, originalSubject string) (subject, body string) {
	subject = "Out of office"
	if originalSubject != "" {
		subject = "Out of office: Re: " + originalSubject
	}

	switch len(names) {
	case 1:
		body = fmt.Sprintf(
			"<p>%s is currently out of office and will reply to your message on return.</p>",
			names[0],
		)
	case 2:
		body = fmt.Sprintf(
			"<p>%s and %s are currently out of office. Your message will be answered on their return.</p>",
			names[0], names[1],
		)
	default:
		body = fmt.Sprintf(
			"<p>%s and %d other colleagues are currently out of office. Your message will be answered as soon as possible.</p>",
			names[0], len(names)-1,
		)
	}
	return subject, body
}
