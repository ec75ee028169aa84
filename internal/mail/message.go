// Package mail holds the provider-independent message model and the
// decoding helpers that build it from Gmail API payloads.
package mail

import (
	"strings"
	"time"
)

// Well-known Gmail system label IDs.
const (
	LabelUnread    = "UNREAD"
	LabelStarred   = "STARRED"
	LabelImportant = "IMPORTANT"
	LabelInbox     = "INBOX"
	LabelSent      = "SENT"
	LabelSpam      = "SPAM"
	LabelTrash     = "TRASH"
	LabelDraft     = "DRAFT"
)

// Address is an email address with optional display name.
type Address struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Attachment is provider attachment metadata; the binary lives remote
// and is fetched on demand by attachment ID.
type Attachment struct {
	Name         string `json:"name"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	AttachmentID string `json:"attachment_id"`
	PartID       string `json:"part_id"`
}

// Message is an immutable snapshot of a provider message. Read/starred/label
// state is flipped in place only after the server confirms the mutation.
type Message struct {
	ID          string       `json:"id"`
	ThreadID    string       `json:"thread_id"`
	From        Address      `json:"from"`
	To          []Address    `json:"to,omitempty"`
	CC          []Address    `json:"cc,omitempty"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Snippet     string       `json:"snippet,omitempty"`
	Date        time.Time    `json:"date"`
	Unread      bool         `json:"unread"`
	Starred     bool         `json:"starred"`
	Important   bool         `json:"important"`
	LabelIDs    []string     `json:"label_ids,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// HasLabel reports whether the message carries the given label ID.
func (m *Message) HasLabel(labelID string) bool {
	for _, id := range m.LabelIDs {
		if id == labelID {
			return true
		}
	}
	return false
}

// AddLabel appends labelID unless already present.
func (m *Message) AddLabel(labelID string) {
	if !m.HasLabel(labelID) {
		m.LabelIDs = append(m.LabelIDs, labelID)
	}
}

// RemoveLabel deletes labelID from the label set if present.
func (m *Message) RemoveLabel(labelID string) {
	out := m.LabelIDs[:0]
	for _, id := range m.LabelIDs {
		if id != labelID {
			out = append(out, id)
		}
	}
	m.LabelIDs = out
}

// SenderKey returns the lowercase sender address used as the dedup key for
// auto-replies.
func (m *Message) SenderKey() string {
	return strings.ToLower(strings.TrimSpace(m.From.Email))
}

// ListPage is one page of a provider message-list fetch.
type ListPage struct {
	Messages           []Message `json:"messages"`
	NextPageToken      string    `json:"next_page_token,omitempty"`
	ResultSizeEstimate int64     `json:"result_size_estimate"`
}

// Label is a provider label; Type distinguishes user labels from system
// labels such as INBOX or SPAM.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// IsUserLabel reports whether the label was created by the user (as opposed
// to a provider system label).
func (l Label) IsUserLabel() bool {
	return l.Type == "user"
}
