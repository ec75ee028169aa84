package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type MarkReadRequest struct {
	MessageID string `json:"message_id" jsonschema:"the message to flip"`
	Read      bool   `json:"read" jsonschema:"true to mark read, false to mark unread"`
}

type SetStarredRequest struct {
	MessageID string `json:"message_id" jsonschema:"the message to flip"`
	Starred   bool   `json:"starred" jsonschema:"true to star, false to unstar"`
}

type ApplyLabelsRequest struct {
	MessageID    string   `json:"message_id" jsonschema:"the message to relabel"`
	AddLabels    []string `json:"add_labels,omitempty" jsonschema:"label IDs to add"`
	RemoveLabels []string `json:"remove_labels,omitempty" jsonschema:"label IDs to remove"`
}

type TrashRequest struct {
	MessageID string `json:"message_id" jsonschema:"the message to trash"`
}

// MutationResponse acknowledges a write that the remote confirmed.
type MutationResponse struct {
	MessageID string `json:"message_id" jsonschema:"the mutated message ID"`
}

type mutateSvc interface {
	MarkRead(ctx context.Context, id string, read bool) error
	SetStarred(ctx context.Context, id string, starred bool) error
	ApplyLabels(ctx context.Context, id string, add, remove []string) error
	Trash(ctx context.Context, id string) error
}

func NewMutate(svc mutateSvc) *Mutate {
	return &Mutate{
		svc: svc,
	}
}

// Mutate groups the remote-first write tools. Each returns an error when
// the remote rejects the write so the caller can surface it; nothing is
// changed locally in that case.
type Mutate struct {
	svc mutateSvc
}

func (t *Mutate) MarkRead(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input MarkReadRequest,
) (*mcp.CallToolResult, MutationResponse, error) {
	if err := t.svc.MarkRead(ctx, input.MessageID, input.Read); err != nil {
		return nil, MutationResponse{}, fmt.Errorf("svc.MarkRead failed: %w", err)
	}
	return nil, MutationResponse{MessageID: input.MessageID}, nil
}

func (t *Mutate) SetStarred(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SetStarredRequest,
) (*mcp.CallToolResult, MutationResponse, error) {
	if err := t.svc.SetStarred(ctx, input.MessageID, input.Starred); err != nil {
		return nil, MutationResponse{}, fmt.Errorf("svc.SetStarred failed: %w", err)
	}
	return nil, MutationResponse{MessageID: input.MessageID}, nil
}

func (t *Mutate) ApplyLabels(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ApplyLabelsRequest,
) (*mcp.CallToolResult, MutationResponse, error) {
	if err := t.svc.ApplyLabels(ctx, input.MessageID, input.AddLabels, input.RemoveLabels); err != nil {
		return nil, MutationResponse{}, fmt.Errorf("svc.ApplyLabels failed: %w", err)
	}
	return nil, MutationResponse{MessageID: input.MessageID}, nil
}

func (t *Mutate) Trash(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input TrashRequest,
) (*mcp.CallToolResult, MutationResponse, error) {
	if err := t.svc.Trash(ctx, input.MessageID); err != nil {
		return nil, MutationResponse{}, fmt.Errorf("svc.Trash failed: %w", err)
	}
	return nil, MutationResponse{MessageID: input.MessageID}, nil
}
