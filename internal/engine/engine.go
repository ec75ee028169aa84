// Package engine is the synchronization façade UI collaborators call into:
// cached list fetches, conversation opening, label aggregation and the
// remote-first mutation pass-throughs.
package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/inboxcore/inboxcore/internal/autoreply"
	"github.com/inboxcore/inboxcore/internal/cache"
	"github.com/inboxcore/inboxcore/internal/config"
	"github.com/inboxcore/inboxcore/internal/labels"
	"github.com/inboxcore/inboxcore/internal/mail"
	"github.com/inboxcore/inboxcore/internal/page"
	"github.com/inboxcore/inboxcore/internal/profile"
	"github.com/inboxcore/inboxcore/internal/thread"
)

// Remote is the narrow provider surface the engine needs.
type Remote interface {
	ListMessages(ctx context.Context, query string, maxResults int64, pageToken string) (*mail.ListPage, error)
	GetMessage(ctx context.Context, id string) (mail.Message, error)
	GetThread(ctx context.Context, threadID string) ([]mail.Message, error)
	ModifyLabels(ctx context.Context, id string, add, remove []string) error
	SetReadState(ctx context.Context, id string, read bool) error
	SetStarred(ctx context.Context, id string, starred bool) error
	Trash(ctx context.Context, id string) error
	ListLabels(ctx context.Context) ([]mail.Label, error)
	GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// FetchOptions modify a list fetch. A non-empty PageToken marks a load-more
// request; ForceRefresh bypasses the cache for the read.
type FetchOptions struct {
	ForceRefresh bool
	PageToken    string
}

// Page is what a list fetch hands back to the caller.
type Page struct {
	Items         []mail.Message `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
	Estimate      int64          `json:"estimate"`
}

type listPayload struct {
	Items    []mail.Message `json:"items"`
	Estimate int64          `json:"estimate"`
}

// Engine wires the cache, cursor tracker, auto-reply guard, aggregator and
// pipeline behind the exposed operations.
type Engine struct {
	remote   Remote
	cache    *cache.Composite
	tracker  *page.Tracker
	guard    *autoreply.Guard
	pipeline *thread.Pipeline
	identity profile.Identity
	cfg      *config.Config
	log      *slog.Logger

	mu         sync.Mutex
	listKeys   map[string]struct{}
	threadKeys map[string]struct{}
	observed   map[string]labels.ThreadSet
}

// New builds an engine. The cache's active profile is aligned with the
// identity collaborator immediately.
func New(
	remote Remote,
	c *cache.Composite,
	tracker *page.Tracker,
	guard *autoreply.Guard,
	pipeline *thread.Pipeline,
	identity profile.Identity,
	cfg *config.Config,
	log *slog.Logger,
) *Engine {
	c.SetActiveProfile(identity.ActiveProfileID())
	return &Engine{
		remote:     remote,
		cache:      c,
		tracker:    tracker,
		guard:      guard,
		pipeline:   pipeline,
		identity:   identity,
		cfg:        cfg,
		log:        log,
		listKeys:   make(map[string]struct{}),
		threadKeys: make(map[string]struct{}),
		observed:   make(map[string]labels.ThreadSet),
	}
}

// FetchList returns one page of messages for query. Fresh fetches are
// cache-backed; pagination and forced refresh bypass the cache for reads,
// and only fresh non-paginated results are written back so list entries
// never grow unbounded across pages.
func (e *Engine) FetchList(ctx context.Context, query string, opts FetchOptions) (Page, error) {
	prof := e.identity.ActiveProfileID()
	key := cache.BuildKey(e.cfg.CachePrefix, cache.KindList, query, prof)
	paginated := opts.PageToken != ""

	// A continuation token is honored only if it is the one the tracker
	// recorded for this query. The tracker resets on a profile switch, so
	// a cursor echoed from the previous profile fails the check here and
	// the request degrades to a fresh first-page fetch.
	if paginated && opts.PageToken != e.tracker.Token(query) {
		e.log.Warn("rejecting unknown continuation token", "query", query)
		opts.PageToken = ""
		paginated = false
	}

	if page.ShouldUseCache(paginated, opts.ForceRefresh) {
		if entry, ok := e.cache.Get(key); ok {
			var payload listPayload
			if err := entry.Decode(&payload); err == nil {
				return Page{
					Items:         payload.Items,
					NextPageToken: entry.ContinuationToken,
					Estimate:      payload.Estimate,
				}, nil
			}
			e.log.Warn("cache entry decode failed", "key", key)
		}
	}

	result, err := e.remote.ListMessages(ctx, query, e.cfg.PageSize, opts.PageToken)
	if err != nil {
		// Transient remote failure: empty result, never a throw.
		e.log.Warn("list fetch failed", "query", query, "error", err)
		return Page{}, nil
	}

	// A fetch that completes after a profile switch discards its result
	// into the void rather than writing it.
	if e.identity.ActiveProfileID() != prof {
		e.log.Info("discarding fetch for stale profile", "query", query, "profile", prof)
		return Page{}, nil
	}

	e.tracker.Record(query, result.NextPageToken)
	e.observe(result.Messages)

	if !paginated {
		payload, err := cache.EncodePayload(listPayload{Items: result.Messages, Estimate: result.ResultSizeEstimate})
		if err != nil {
			e.log.Warn("list payload encode failed", "query", query, "error", err)
		} else {
			e.cache.Set(key, payload, result.NextPageToken)
			e.rememberListKey(key)
		}

		e.autoReplyPass(ctx, result.Messages)
	}

	return Page{
		Items:         result.Messages,
		NextPageToken: result.NextPageToken,
		Estimate:      result.ResultSizeEstimate,
	}, nil
}

// autoReplyPass runs the dedup guard over every unread message of a fresh
// inbox fetch. Guard failures are handled inside the guard; no message can
// abort the batch.
func (e *Engine) autoReplyPass(ctx context.Context, msgs []mail.Message) {
	for i := range msgs {
		if msgs[i].Unread {
			e.guard.Process(ctx, &msgs[i])
		}
	}
}

// OpenThread rebuilds the display-ready conversation for threadID. The
// underlying messages are cache-backed; the projection itself never is.
func (e *Engine) OpenThread(ctx context.Context, threadID string) (thread.Conversation, error) {
	prof := e.identity.ActiveProfileID()
	key := cache.BuildKey(e.cfg.CachePrefix, cache.KindThread, threadID, prof)

	var msgs []mail.Message
	if entry, ok := e.cache.Get(key); ok {
		if err := entry.Decode(&msgs); err != nil {
			e.log.Warn("thread cache decode failed", "thread", threadID)
			msgs = nil
		}
	}

	if msgs == nil {
		fetched, err := e.remote.GetThread(ctx, threadID)
		if err != nil {
			e.log.Warn("thread fetch failed", "thread", threadID, "error", err)
			return thread.Conversation{ThreadID: threadID}, nil
		}
		if e.identity.ActiveProfileID() != prof {
			return thread.Conversation{ThreadID: threadID}, nil
		}
		msgs = fetched
		e.observe(msgs)

		if payload, err := cache.EncodePayload(msgs); err == nil {
			e.cache.Set(key, payload, "")
			e.rememberThreadKey(key)
		}
	}

	return e.pipeline.Build(threadID, msgs), nil
}

// LabelTree aggregates the user's labels and the threads observed so far
// into a counted forest of at most topN roots.
func (e *Engine) LabelTree(ctx context.Context, topN int) ([]*labels.Node, error) {
	if topN <= 0 {
		topN = e.cfg.LabelTreeTopN
	}

	all, err := e.remote.ListLabels(ctx)
	if err != nil {
		e.log.Warn("label list failed", "error", err)
		return nil, nil
	}

	names := make(map[string]string)
	for _, l := range all {
		if l.IsUserLabel() {
			names[l.ID] = l.Name
		}
	}

	return labels.BuildTree(names, e.observedSets(), topN), nil
}

// MarkRead flips read state remote-first; the cache is only touched on
// remote success.
func (e *Engine) MarkRead(ctx context.Context, id string, read bool) error {
	if err := e.remote.SetReadState(ctx, id, read); err != nil {
		return err
	}
	e.applyLocal(id, func(m *mail.Message) {
		m.Unread = !read
		if read {
			m.RemoveLabel(mail.LabelUnread)
		} else {
			m.AddLabel(mail.LabelUnread)
		}
	})
	e.invalidateLists()
	return nil
}

// SetStarred stars or unstars remote-first.
func (e *Engine) SetStarred(ctx context.Context, id string, starred bool) error {
	if err := e.remote.SetStarred(ctx, id, starred); err != nil {
		return err
	}
	e.applyLocal(id, func(m *mail.Message) {
		m.Starred = starred
		if starred {
			m.AddLabel(mail.LabelStarred)
		} else {
			m.RemoveLabel(mail.LabelStarred)
		}
	})
	e.invalidateLists()
	return nil
}

// ApplyLabels mutates labels remote-first.
func (e *Engine) ApplyLabels(ctx context.Context, id string, add, remove []string) error {
	if err := e.remote.ModifyLabels(ctx, id, add, remove); err != nil {
		return err
	}
	e.applyLocal(id, func(m *mail.Message) {
		for _, l := range add {
			m.AddLabel(l)
		}
		for _, l := range remove {
			m.RemoveLabel(l)
		}
	})
	e.invalidateLists()
	return nil
}

// Attachment fetches one attachment body on demand. Attachment bytes are
// never cached; only metadata travels with messages.
func (e *Engine) Attachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	return e.remote.GetAttachment(ctx, messageID, attachmentID)
}

// Trash moves a message to trash remote-first.
func (e *Engine) Trash(ctx context.Context, id string) error {
	if err := e.remote.Trash(ctx, id); err != nil {
		return err
	}
	e.invalidateLists()
	return nil
}

// SwitchProfile is a cancellation point: pagination cursors, the auto-reply
// guard's sets and both cache tiers are invalidated synchronously before
// the new profile can be served.
func (e *Engine) SwitchProfile(newProfileID string) {
	e.cache.InvalidateForProfileSwitch(newProfileID)
	e.tracker.Reset()
	e.guard.Reset()

	e.mu.Lock()
	e.listKeys = make(map[string]struct{})
	e.threadKeys = make(map[string]struct{})
	e.observed = make(map[string]labels.ThreadSet)
	e.mu.Unlock()

	e.log.Info("profile switched", "profile", newProfileID)
}

// ClearCache drops all cached state including the auto-reply dedup sets.
func (e *Engine) ClearCache() {
	e.cache.InvalidateAll()
	e.guard.Reset()

	e.mu.Lock()
	e.listKeys = make(map[string]struct{})
	e.threadKeys = make(map[string]struct{})
	e.observed = make(map[string]labels.ThreadSet)
	e.mu.Unlock()
}

// ResetAutoReply clears the guard; wired to out-of-office toggles.
func (e *Engine) ResetAutoReply() {
	e.guard.Reset()
}

// invalidateLists marks every list entry written this session stale by
// zeroing its timestamp, keeping continuation tokens recoverable.
func (e *Engine) invalidateLists() {
	e.mu.Lock()
	keys := make([]string, 0, len(e.listKeys))
	for k := range e.listKeys {
		keys = append(keys, k)
	}
	e.mu.Unlock()

	for _, k := range keys {
		e.cache.Invalidate(k)
	}
}

// applyLocal folds a server-confirmed flip into every cached thread entry
// holding the message, preserving each entry's original timestamp so
// freshness is not extended by the write.
func (e *Engine) applyLocal(messageID string, fn func(*mail.Message)) {
	e.mu.Lock()
	keys := make([]string, 0, len(e.threadKeys))
	for k := range e.threadKeys {
		keys = append(keys, k)
	}
	e.mu.Unlock()

	for _, k := range keys {
		entry, ok := e.cache.Get(k)
		if !ok {
			continue
		}
		var msgs []mail.Message
		if err := entry.Decode(&msgs); err != nil {
			continue
		}
		touched := false
		for i := range msgs {
			if msgs[i].ID == messageID {
				fn(&msgs[i])
				touched = true
			}
		}
		if !touched {
			continue
		}
		payload, err := cache.EncodePayload(msgs)
		if err != nil {
			continue
		}
		entry.Payload = payload
		e.cache.SetEntry(entry)
	}
}

func (e *Engine) rememberListKey(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listKeys[key] = struct{}{}
}

func (e *Engine) rememberThreadKey(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.threadKeys[key] = struct{}{}
}

// observe records labelID -> threadID sightings feeding the label tree.
func (e *Engine) observe(msgs []mail.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range msgs {
		for _, labelID := range msgs[i].LabelIDs {
			set, ok := e.observed[labelID]
			if !ok {
				set = labels.ThreadSet{}
				e.observed[labelID] = set
			}
			set[msgs[i].ThreadID] = struct{}{}
		}
	}
}

func (e *Engine) observedSets() map[string]labels.ThreadSet {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]labels.ThreadSet, len(e.observed))
	for id, set := range e.observed {
		cp := make(labels.ThreadSet, len(set))
		for t := range set {
			cp[t] = struct{}{}
		}
		out[id] = cp
	}
	return out
}
