package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inboxcore/inboxcore/internal/engine"
)

type FetchListRequest struct {
	Query        string `json:"query" jsonschema:"the provider search query, e.g. in:inbox"`
	PageToken    string `json:"page_token,omitempty" jsonschema:"continuation token from a previous page"`
	ForceRefresh bool   `json:"force_refresh,omitempty" jsonschema:"bypass the cache for this read"`
}

type FetchListResponse struct {
	Messages      []MessageSummary `json:"messages" jsonschema:"array of message summaries"`
	NextPageToken string           `json:"next_page_token,omitempty" jsonschema:"token for next page"`
	Estimate      int64            `json:"estimate" jsonschema:"provider estimate of total matches"`
}

type fetchListSvc interface {
	FetchList(ctx context.Context, query string, opts engine.FetchOptions) (engine.Page, error)
}

func NewFetchList(svc fetchListSvc) *FetchList {
	return &FetchList{
		svc: svc,
	}
}

type FetchList struct {
	svc fetchListSvc
}

func (t *FetchList) FetchList(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input FetchListRequest,
) (*mcp.CallToolResult, FetchListResponse, error) {
	page, err := t.svc.FetchList(ctx, input.Query, engine.FetchOptions{
		ForceRefresh: input.ForceRefresh,
		PageToken:    input.PageToken,
	})
	if err != nil {
		return nil, FetchListResponse{}, fmt.Errorf("svc.FetchList failed: %w", err)
	}

	messages := make([]MessageSummary, 0, len(page.Items))
	for _, m := range page.Items {
		messages = append(messages, summarize(m))
	}

	return nil, FetchListResponse{
		Messages:      messages,
		NextPageToken: page.NextPageToken,
		Estimate:      page.Estimate,
	}, nil
}
