package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key                TEXT PRIMARY KEY,
	profile_id         TEXT NOT NULL DEFAULT '',
	timestamp          INTEGER NOT NULL,
	continuation_token TEXT NOT NULL DEFAULT '',
	payload            BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_timestamp ON cache_entries(timestamp);
`

// SQLite is the persistent tier. Writes are best-effort: a failed insert
// (disk full, locked database) triggers one expired-entry purge and a single
// retry before the error is surfaced to the composite, which degrades to
// memory-only for the session.
type SQLite struct {
	mu  sync.Mutex
	db  *sqlx.DB
	ttl time.Duration

	clock func() time.Time
}

// NewSQLite opens (or creates) the cache database at dbPath and ensures the
// schema exists. Use ":memory:" for an ephemeral store in tests.
func NewSQLite(dbPath string, ttl time.Duration) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlx.Open failed: %w", err)
	}

	// One connection only: with this driver every ":memory:" connection
	// gets its own database, so a pool would hand out schema-less ones.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode failed: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema failed: %w", err)
	}

	return &SQLite{db: db, ttl: ttl, clock: time.Now}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get returns the entry for key, if present.
func (s *SQLite) Get(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var e Entry
	err := s.db.Get(&e, "SELECT key, profile_id, timestamp, continuation_token, payload FROM cache_entries WHERE key = ?", key)
	if err != nil {
		return nil, false
	}
	return &e, true
}

// Set upserts e, recovering once from a failed write by purging expired
// entries for this cache family.
func (s *SQLite) Set(e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.upsert(e); err != nil {
		if purgeErr := s.purgeExpiredLocked(s.clock(), s.ttl); purgeErr != nil {
			return fmt.Errorf("upsert failed (purge also failed: %v): %w", purgeErr, err)
		}
		if err := s.upsert(e); err != nil {
			return fmt.Errorf("upsert retry failed: %w", err)
		}
	}
	return nil
}

func (s *SQLite) upsert(e *Entry) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO cache_entries (key, profile_id, timestamp, continuation_token, payload)
		VALUES (?, ?, ?, ?, ?)`,
		e.Key, e.ProfileID, e.Timestamp, e.ContinuationToken, []byte(e.Payload),
	)
	return err
}

// Invalidate zeroes the timestamp of the entry for key, if present.
func (s *SQLite) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.db.Exec("UPDATE cache_entries SET timestamp = 0 WHERE key = ?", key)
}

// Purge drops every entry.
func (s *SQLite) Purge() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM cache_entries"); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}
	return nil
}

// PurgeExpired drops entries older than now-ttl.
func (s *SQLite) PurgeExpired(now time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.purgeExpiredLocked(now, ttl)
}

func (s *SQLite) purgeExpiredLocked(now time.Time, ttl time.Duration) error {
	cutoff := now.Add(-ttl).UnixMilli()
	if _, err := s.db.Exec("DELETE FROM cache_entries WHERE timestamp < ?", cutoff); err != nil {
		return fmt.Errorf("purge expired failed: %w", err)
	}
	return nil
}

var _ Tier = (*SQLite)(nil)
