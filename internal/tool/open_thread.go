package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inboxcore/inboxcore/internal/thread"
)

type OpenThreadRequest struct {
	ThreadID string `json:"thread_id" jsonschema:"the conversation thread ID"`
}

type OpenThreadResponse struct {
	ThreadID    string           `json:"thread_id" jsonschema:"thread ID"`
	Messages    []ThreadMessage  `json:"messages" jsonschema:"conversation messages, newest first"`
	Attachments []AttachmentInfo `json:"attachments,omitempty" jsonschema:"deduplicated thread attachments"`
}

// ThreadMessage is one message of a conversation, body already stripped of
// quoted history and sanitized for display.
type ThreadMessage struct {
	ID        string         `json:"id" jsonschema:"message ID"`
	Timestamp string         `json:"timestamp" jsonschema:"message timestamp, RFC 3339"`
	From      EmailAddress   `json:"from" jsonschema:"sender information"`
	To        []EmailAddress `json:"to,omitempty" jsonschema:"recipients"`
	CC        []EmailAddress `json:"cc,omitempty" jsonschema:"CC recipients"`
	Subject   string         `json:"subject" jsonschema:"email subject"`
	Body      string         `json:"body" jsonschema:"cleaned HTML body"`
	Preview   string         `json:"preview" jsonschema:"short plain-text preview"`
	Unread    bool           `json:"unread" jsonschema:"whether the message is unread"`
	Starred   bool           `json:"starred" jsonschema:"whether the message is starred"`
}

type openThreadSvc interface {
	OpenThread(ctx context.Context, threadID string) (thread.Conversation, error)
}

func NewOpenThread(svc openThreadSvc) *OpenThread {
	return &OpenThread{
		svc: svc,
	}
}

type OpenThread struct {
	svc openThreadSvc
}

func (t *OpenThread) OpenThread(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input OpenThreadRequest,
) (*mcp.CallToolResult, OpenThreadResponse, error) {
	conv, err := t.svc.OpenThread(ctx, input.ThreadID)
	if err != nil {
		return nil, OpenThreadResponse{}, fmt.Errorf("svc.OpenThread failed: %w", err)
	}

	messages := make([]ThreadMessage, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		messages = append(messages, ThreadMessage{
			ID:        m.ID,
			Timestamp: m.Date.Format(time.RFC3339),
			From:      toEmailAddress(m.From),
			To:        toEmailAddresses(m.To),
			CC:        toEmailAddresses(m.CC),
			Subject:   m.Subject,
			Body:      m.CleanBody,
			Preview:   m.Preview,
			Unread:    m.Unread,
			Starred:   m.Starred,
		})
	}

	return nil, OpenThreadResponse{
		ThreadID:    conv.ThreadID,
		Messages:    messages,
		Attachments: toAttachmentInfos(conv.Attachments),
	}, nil
}
