package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Composite combines the memory tier and an optional persistent tier behind
// one read/write API. The memory tier is authoritative for the session; the
// persistent tier is best-effort and silently degrades on write failure.
type Composite struct {
	memory     Tier
	persistent Tier
	ttl        time.Duration
	log        *slog.Logger

	// Clock is injectable for TTL tests.
	Clock func() time.Time

	mu            sync.RWMutex
	activeProfile string
}

// NewComposite builds a composite cache; persistent may be nil for a
// memory-only configuration.
func NewComposite(memory, persistent Tier, ttl time.Duration, log *slog.Logger) *Composite {
	return &Composite{
		memory:     memory,
		persistent: persistent,
		ttl:        ttl,
		log:        log,
		Clock:      time.Now,
	}
}

// SetActiveProfile records the profile against which entry validity is
// checked. It does not invalidate; use InvalidateForProfileSwitch for that.
func (c *Composite) SetActiveProfile(profileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeProfile = profileID
}

// ActiveProfile returns the currently active profile ID.
func (c *Composite) ActiveProfile() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeProfile
}

// Get returns the entry for key if it is fresh and belongs to the active
// profile. A persistent-tier hit is promoted into memory before returning.
func (c *Composite) Get(key string) (*Entry, bool) {
	if e, ok := c.memory.Get(key); ok {
		if c.valid(e) {
			return e, true
		}
		return nil, false
	}

	if c.persistent == nil {
		return nil, false
	}

	e, ok := c.persistent.Get(key)
	if !ok || !c.valid(e) {
		return nil, false
	}

	if err := c.memory.Set(e); err != nil {
		c.log.Warn("memory promote failed", "key", key, "error", err)
	}
	return e, true
}

// Set writes payload under key to both tiers, stamped with the current time
// and active profile. Persistent failures are logged, never surfaced.
func (c *Composite) Set(key string, payload []byte, continuationToken string) {
	e := &Entry{
		Key:               key,
		ProfileID:         c.ActiveProfile(),
		Timestamp:         c.Clock().UnixMilli(),
		ContinuationToken: continuationToken,
		Payload:           payload,
	}

	if err := c.memory.Set(e); err != nil {
		c.log.Warn("memory set failed", "key", key, "error", err)
	}

	if c.persistent == nil {
		return
	}
	if err := c.persistent.Set(e); err != nil {
		// Memory stays authoritative for the session.
		c.log.Warn("persistent set failed, continuing memory-only", "key", key, "error", err)
	}
}

// SetEntry writes e to both tiers as-is, preserving its original timestamp.
// Used when a confirmed server mutation is folded into an existing entry's
// payload without extending its freshness window.
func (c *Composite) SetEntry(e *Entry) {
	if err := c.memory.Set(e); err != nil {
		c.log.Warn("memory set failed", "key", e.Key, "error", err)
	}
	if c.persistent == nil {
		return
	}
	if err := c.persistent.Set(e); err != nil {
		c.log.Warn("persistent set failed, continuing memory-only", "key", e.Key, "error", err)
	}
}

// Invalidate marks the entry for key stale in both tiers without deleting
// it, so the continuation token remains inspectable.
func (c *Composite) Invalidate(key string) {
	c.memory.Invalidate(key)
	if c.persistent != nil {
		c.persistent.Invalidate(key)
	}
}

// InvalidateAll drops every entry from both tiers.
func (c *Composite) InvalidateAll() {
	if err := c.memory.Purge(); err != nil {
		c.log.Warn("memory purge failed", "error", err)
	}
	if c.persistent != nil {
		if err := c.persistent.Purge(); err != nil {
			c.log.Warn("persistent purge failed", "error", err)
		}
	}
}

// InvalidateForProfileSwitch switches the active profile and synchronously
// drops all entries from both tiers, so nothing written under the previous
// profile can ever be served under the new one.
func (c *Composite) InvalidateForProfileSwitch(newProfileID string) {
	c.SetActiveProfile(newProfileID)
	c.InvalidateAll()
}

func (c *Composite) valid(e *Entry) bool {
	if c.Clock().UnixMilli()-e.Timestamp >= c.ttl.Milliseconds() {
		return false
	}
	if e.ProfileID == "" {
		return true
	}
	return e.ProfileID == c.ActiveProfile()
}
