package cache

import (
	"sync"
	"time"
)

// Tier is one storage level of the composite cache. Implementations must be
// safe for concurrent use.
type Tier interface {
	Get(key string) (*Entry, bool)
	Set(e *Entry) error
	// Invalidate zeroes the entry's timestamp in place, forcing the next
	// read to treat it as stale while keeping the continuation token
	// recoverable.
	Invalidate(key string)
	// Purge drops every entry.
	Purge() error
	// PurgeExpired drops entries whose timestamp is older than now-ttl.
	PurgeExpired(now time.Time, ttl time.Duration) error
}

// Memory is the in-process tier.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemory returns an empty in-process tier.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*Entry)}
}

// Get returns the entry for key, if present.
func (m *Memory) Get(key string) (*Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}

// Set stores a copy of e.
func (m *Memory) Set(e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *e
	m.entries[e.Key] = &cp
	return nil
}

// Invalidate zeroes the timestamp of the entry for key, if present.
func (m *Memory) Invalidate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok {
		e.Timestamp = 0
	}
}

// Purge drops all entries.
func (m *Memory) Purge() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*Entry)
	return nil
}

// PurgeExpired drops entries older than now-ttl.
func (m *Memory) PurgeExpired(now time.Time, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-ttl).UnixMilli()
	for k, e := range m.entries {
		if e.Timestamp < cutoff {
			delete(m.entries, k)
		}
	}
	return nil
}

var _ Tier = (*Memory)(nil)
