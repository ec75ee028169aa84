// Package provider adapts the Gmail API to the engine's remote-mail
// contract.
package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/inboxcore/inboxcore/internal/auth"
	"github.com/inboxcore/inboxcore/internal/mail"
)

const gmailUserID = "me"

// NewGmail builds the adapter; a fresh gmail.Service is constructed per call
// so the OAuth client always carries the current token.
func NewGmail(cfg *oauth2.Config, tok *auth.Token) *Gmail {
	return &Gmail{cfg: cfg, tok: tok}
}

// Gmail implements the remote mail contract on top of the Gmail API.
type Gmail struct {
	cfg *oauth2.Config
	tok *auth.Token
}

// ListMessages fetches one page of messages matching query, resolving each
// listed ID to a full message.
func (g *Gmail) ListMessages(ctx context.Context, query string, maxResults int64, pageToken string) (*mail.ListPage, error) {
	svc, err := g.newSvc(ctx)
	if err != nil {
		return nil, fmt.Errorf("newSvc failed: %w", err)
	}

	call := svc.Users.Messages.List(gmailUserID).
		Q(query).
		PageToken(pageToken).
		MaxResults(maxResults)

	list, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("messages.List failed: %w", err)
	}

	result := &mail.ListPage{
		NextPageToken:      list.NextPageToken,
		ResultSizeEstimate: list.ResultSizeEstimate,
	}

	for _, ref := range list.Messages {
		msg, err := svc.Users.Messages.Get(gmailUserID, ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("messages.Get %s failed: %w", ref.Id, err)
		}
		result.Messages = append(result.Messages, mail.FromGmail(msg))
	}

	return result, nil
}

// GetMessage fetches one full message.
func (g *Gmail) GetMessage(ctx context.Context, id string) (mail.Message, error) {
	svc, err := g.newSvc(ctx)
	if err != nil {
		return mail.Message{}, fmt.Errorf("newSvc failed: %w", err)
	}

	msg, err := svc.Users.Messages.Get(gmailUserID, id).Format("full").Context(ctx).Do()
	if err != nil {
		return mail.Message{}, fmt.Errorf("messages.Get failed: %w", err)
	}

	return mail.FromGmail(msg), nil
}

// GetThread fetches every message of one conversation.
func (g *Gmail) GetThread(ctx context.Context, threadID string) ([]mail.Message, error) {
	svc, err := g.newSvc(ctx)
	if err != nil {
		return nil, fmt.Errorf("newSvc failed: %w", err)
	}

	t, err := svc.Users.Threads.Get(gmailUserID, threadID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("threads.Get failed: %w", err)
	}

	msgs := make([]mail.Message, 0, len(t.Messages))
	for _, m := range t.Messages {
		msgs = append(msgs, mail.FromGmail(m))
	}
	return msgs, nil
}

// SendReply sends an HTML reply threaded into an existing conversation.
func (g *Gmail) SendReply(ctx context.Context, to mail.Address, subject, bodyHTML, threadID string) error {
	svc, err := g.newSvc(ctx)
	if err != nil {
		return fmt.Errorf("newSvc failed: %w", err)
	}

	raw := buildRawMessage(to, subject, bodyHTML)
	msg := &gmail.Message{
		Raw:      base64.RawURLEncoding.EncodeToString([]byte(raw)),
		ThreadId: threadID,
	}

	if _, err := svc.Users.Messages.Send(gmailUserID, msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("messages.Send failed: %w", err)
	}
	return nil
}

// ModifyLabels adds and removes labels on one message.
func (g *Gmail) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	svc, err := g.newSvc(ctx)
	if err != nil {
		return fmt.Errorf("newSvc failed: %w", err)
	}

	req := &gmail.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}
	if _, err := svc.Users.Messages.Modify(gmailUserID, id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("messages.Modify failed: %w", err)
	}
	return nil
}

// SetReadState marks one message read or unread.
func (g *Gmail) SetReadState(ctx context.Context, id string, read bool) error {
	if read {
		return g.ModifyLabels(ctx, id, nil, []string{mail.LabelUnread})
	}
	return g.ModifyLabels(ctx, id, []string{mail.LabelUnread}, nil)
}

// SetStarred stars or unstars one message.
func (g *Gmail) SetStarred(ctx context.Context, id string, starred bool) error {
	if starred {
		return g.ModifyLabels(ctx, id, []string{mail.LabelStarred}, nil)
	}
	return g.ModifyLabels(ctx, id, nil, []string{mail.LabelStarred})
}

// Trash moves one message to the trash.
func (g *Gmail) Trash(ctx context.Context, id string) error {
	svc, err := g.newSvc(ctx)
	if err != nil {
		return fmt.Errorf("newSvc failed: %w", err)
	}

	if _, err := svc.Users.Messages.Trash(gmailUserID, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("messages.Trash failed: %w", err)
	}
	return nil
}

// ListLabels returns all labels of the account.
func (g *Gmail) ListLabels(ctx context.Context) ([]mail.Label, error) {
	svc, err := g.newSvc(ctx)
	if err != nil {
		return nil, fmt.Errorf("newSvc failed: %w", err)
	}

	resp, err := svc.Users.Labels.List(gmailUserID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("labels.List failed: %w", err)
	}

	out := make([]mail.Label, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		out = append(out, mail.Label{ID: l.Id, Name: l.Name, Type: l.Type})
	}
	return out, nil
}

// GetAttachment fetches and decodes one attachment body.
func (g *Gmail) GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	svc, err := g.newSvc(ctx)
	if err != nil {
		return nil, fmt.Errorf("newSvc failed: %w", err)
	}

	att, err := svc.Users.Messages.Attachments.Get(gmailUserID, messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("attachments.Get failed: %w", err)
	}

	data, err := base64.URLEncoding.DecodeString(att.Data)
	if err != nil {
		data, err = base64.RawURLEncoding.DecodeString(att.Data)
		if err != nil {
			return nil, fmt.Errorf("attachment decode failed: %w", err)
		}
	}
	return data, nil
}

func (g *Gmail) newSvc(ctx context.Context) (*gmail.Service, error) {
	t, err := g.tok.OAuthToken()
	if err != nil {
		return nil, fmt.Errorf("tok.OAuthToken failed: %w", err)
	}

	clt := g.cfg.Client(ctx, t)

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(clt))
	if err != nil {
		return nil, fmt.Errorf("gmail.NewService failed: %w", err)
	}

	return svc, nil
}

func buildRawMessage(to mail.Address, subject, bodyHTML string) string {
	var b strings.Builder
	if to.Name != "" {
		fmt.Fprintf(&b, "To: %s <%s>\r\n", to.Name, to.Email)
	} else {
		fmt.Fprintf(&b, "To: %s\r\n", to.Email)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(bodyHTML)
	return b.String()
}
