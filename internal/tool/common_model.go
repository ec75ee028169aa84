package tool

import (
	"time"

	"github.com/inboxcore/inboxcore/internal/mail"
)

// EmailAddress represents an email address with optional display name.
type EmailAddress struct {
	Name  string `json:"name,omitempty" jsonschema:"the display name"`
	Email string `json:"email" jsonschema:"the email address"`
}

// MessageSummary contains essential message metadata.
type MessageSummary struct {
	ID        string         `json:"id" jsonschema:"message ID"`
	ThreadID  string         `json:"thread_id" jsonschema:"thread ID"`
	Timestamp string         `json:"timestamp" jsonschema:"message timestamp, RFC 3339"`
	From      EmailAddress   `json:"from" jsonschema:"sender information"`
	To        []EmailAddress `json:"to,omitempty" jsonschema:"recipients"`
	CC        []EmailAddress `json:"cc,omitempty" jsonschema:"CC recipients"`
	Subject   string         `json:"subject" jsonschema:"email subject"`
	Snippet   string         `json:"snippet" jsonschema:"message preview"`
	Unread    bool           `json:"unread" jsonschema:"whether the message is unread"`
	Starred   bool           `json:"starred" jsonschema:"whether the message is starred"`
}

// AttachmentInfo describes one attachment surviving dedup and noise
// filtering.
type AttachmentInfo struct {
	ID       string `json:"id" jsonschema:"attachment ID"`
	Name     string `json:"name" jsonschema:"file name"`
	MimeType string `json:"mime_type" jsonschema:"MIME type"`
	Size     int64  `json:"size" jsonschema:"size in bytes"`
}

func toEmailAddress(a mail.Address) EmailAddress {
	return EmailAddress{Name: a.Name, Email: a.Email}
}

func toEmailAddresses(addrs []mail.Address) []EmailAddress {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]EmailAddress, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, toEmailAddress(a))
	}
	return out
}

func summarize(m mail.Message) MessageSummary {
	return MessageSummary{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		Timestamp: m.Date.Format(time.RFC3339),
		From:      toEmailAddress(m.From),
		To:        toEmailAddresses(m.To),
		CC:        toEmailAddresses(m.CC),
		Subject:   m.Subject,
		Snippet:   m.Snippet,
		Unread:    m.Unread,
		Starred:   m.Starred,
	}
}

func toAttachmentInfos(atts []mail.Attachment) []AttachmentInfo {
	if len(atts) == 0 {
		return nil
	}
	out := make([]AttachmentInfo, 0, len(atts))
	for _, a := range atts {
		out = append(out, AttachmentInfo{
			ID:       a.AttachmentID,
			Name:     a.Name,
			MimeType: a.MimeType,
			Size:     a.Size,
		})
	}
	return out
}
