package tool

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type GetAttachmentRequest struct {
	MessageID    string `json:"message_id" jsonschema:"the message holding the attachment"`
	AttachmentID string `json:"attachment_id" jsonschema:"the attachment to fetch"`
}

type GetAttachmentResponse struct {
	MessageID    string `json:"message_id" jsonschema:"the message holding the attachment"`
	AttachmentID string `json:"attachment_id" jsonschema:"the fetched attachment ID"`
	Data         string `json:"data" jsonschema:"base64url-encoded attachment bytes"`
	Size         int    `json:"size" jsonschema:"decoded size in bytes"`
}

type attachmentSvc interface {
	Attachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

func NewGetAttachment(svc attachmentSvc) *GetAttachment {
	return &GetAttachment{
		svc: svc,
	}
}

type GetAttachment struct {
	svc attachmentSvc
}

func (t *GetAttachment) GetAttachment(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetAttachmentRequest,
) (*mcp.CallToolResult, GetAttachmentResponse, error) {
	data, err := t.svc.Attachment(ctx, input.MessageID, input.AttachmentID)
	if err != nil {
		return nil, GetAttachmentResponse{}, fmt.Errorf("svc.Attachment failed: %w", err)
	}

	return nil, GetAttachmentResponse{
		MessageID:    input.MessageID,
		AttachmentID: input.AttachmentID,
		Data:         base64.RawURLEncoding.EncodeToString(data),
		Size:         len(data),
	}, nil
}
