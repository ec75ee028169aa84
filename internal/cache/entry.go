// Package cache implements the two-tier (memory + SQLite) cache that backs
// list, message and thread lookups, keyed by query and profile.
package cache

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Entry kinds, part of the persistent key.
const (
	KindList    = "list"
	KindMessage = "msg"
	KindThread  = "thread"
)

// Entry is one cached payload. The same shape serves message lists, single
// messages and threads; Payload stays opaque JSON until the caller decodes it.
type Entry struct {
	Key               string          `json:"key" db:"key"`
	ProfileID         string          `json:"profile_id" db:"profile_id"`
	Timestamp         int64           `json:"timestamp" db:"timestamp"` // epoch ms
	ContinuationToken string          `json:"continuation_token,omitempty" db:"continuation_token"`
	Payload           json.RawMessage `json:"payload" db:"payload"`
}

// Decode unmarshals the payload into v.
func (e *Entry) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %w", err)
	}
	return nil
}

// EncodePayload marshals v for storage in an Entry.
func EncodePayload(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal failed: %w", err)
	}
	return raw, nil
}

// BuildKey assembles the canonical {prefix}:{kind}:{ref}:{profile} key.
// Colons inside ref are escaped so keys stay unambiguous.
func BuildKey(prefix, kind, ref, profileID string) string {
	ref = strings.ReplaceAll(ref, ":", "%3A")
	return prefix + ":" + kind + ":" + ref + ":" + profileID
}
