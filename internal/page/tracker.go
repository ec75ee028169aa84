// Package page tracks opaque pagination cursors per query so load-more
// requests are distinguishable from fresh fetches and never reuse stale
// cursors across profiles.
package page

import "sync"

// Tracker records the last continuation token seen per query. Cursors are
// opaque provider strings, echoed back unmodified on the next page request.
type Tracker struct {
	mu      sync.Mutex
	cursors map[string]string
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{cursors: make(map[string]string)}
}

// ShouldUseCache reports whether a list read may be served from cache.
// Pagination and forced refresh always bypass it.
func ShouldUseCache(paginated, forceRefresh bool) bool {
	return !paginated && !forceRefresh
}

// Record stores the continuation token returned for query. An empty token
// clears the cursor (last page reached).
func (t *Tracker) Record(query, token string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if token == "" {
		delete(t.cursors, query)
		return
	}
	t.cursors[query] = token
}

// Token returns the stored cursor for query, or "" when the query has no
// further pages.
func (t *Tracker) Token(query string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursors[query]
}

// Reset drops every cursor. Called on profile switch so a cursor obtained
// under one profile can never be sent under another.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursors = make(map[string]string)
}
