package tool_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxcore/inboxcore/internal/engine"
	"github.com/inboxcore/inboxcore/internal/labels"
	"github.com/inboxcore/inboxcore/internal/mail"
	"github.com/inboxcore/inboxcore/internal/thread"
	"github.com/inboxcore/inboxcore/internal/tool"
)

type engineSvcMock struct {
	FetchListFunc   func(ctx context.Context, query string, opts engine.FetchOptions) (engine.Page, error)
	OpenThreadFunc  func(ctx context.Context, threadID string) (thread.Conversation, error)
	LabelTreeFunc   func(ctx context.Context, topN int) ([]*labels.Node, error)
	MarkReadFunc    func(ctx context.Context, id string, read bool) error
	SetStarredFunc  func(ctx context.Context, id string, starred bool) error
	ApplyLabelsFunc func(ctx context.Context, id string, add, remove []string) error
	TrashFunc       func(ctx context.Context, id string) error
	AttachmentFunc  func(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

func (m *engineSvcMock) FetchList(ctx context.Context, query string, opts engine.FetchOptions) (engine.Page, error) {
	return m.FetchListFunc(ctx, query, opts)
}

func (m *engineSvcMock) OpenThread(ctx context.Context, threadID string) (thread.Conversation, error) {
	return m.OpenThreadFunc(ctx, threadID)
}

func (m *engineSvcMock) LabelTree(ctx context.Context, topN int) ([]*labels.Node, error) {
	return m.LabelTreeFunc(ctx, topN)
}

func (m *engineSvcMock) MarkRead(ctx context.Context, id string, read bool) error {
	return m.MarkReadFunc(ctx, id, read)
}

func (m *engineSvcMock) SetStarred(ctx context.Context, id string, starred bool) error {
	return m.SetStarredFunc(ctx, id, starred)
}

func (m *engineSvcMock) ApplyLabels(ctx context.Context, id string, add, remove []string) error {
	return m.ApplyLabelsFunc(ctx, id, add, remove)
}

func (m *engineSvcMock) Trash(ctx context.Context, id string) error {
	return m.TrashFunc(ctx, id)
}

func (m *engineSvcMock) Attachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	return m.AttachmentFunc(ctx, messageID, attachmentID)
}

func newFetchListSvc(byQuery map[string]engine.Page) *engineSvcMock {
	return &engineSvcMock{
		FetchListFunc: func(_ context.Context, query string, _ engine.FetchOptions) (engine.Page, error) {
			page, ok := byQuery[query]
			if !ok {
				return engine.Page{}, fmt.Errorf("simulated error: %s", query)
			}
			return page, nil
		},
	}
}

func TestFetchList(t *testing.T) {
	date := time.Date(2026, 3, 1, 12, 12, 32, 0, time.UTC)
	byQuery := map[string]engine.Page{
		"from:test@test.com": {
			Estimate:      2,
			NextPageToken: "next-page-token-1",
			Items: []mail.Message{
				{
					ID:       "m-001",
					ThreadID: "t-m-001",
					From:     mail.Address{Name: "Test User", Email: "test@test.com"},
					To:       []mail.Address{{Name: "My Name", Email: "me@test.com"}},
					Subject:  "Super important email m-001",
					Snippet:  "test summary m-001",
					Date:     date,
					Unread:   true,
				},
				{
					ID:       "m-002",
					ThreadID: "t-m-002",
					From:     mail.Address{Name: "Test User", Email: "test@test.com"},
					Subject:  "Super important email m-002",
					Snippet:  "test summary m-002",
					Date:     date,
					Starred:  true,
				},
			},
		},
	}

	cases := []struct {
		req         tool.FetchListRequest
		expected    tool.FetchListResponse
		expectedErr error
	}{
		{
			req: tool.FetchListRequest{Query: "from:test@test.com"},
			expected: tool.FetchListResponse{
				Estimate:      2,
				NextPageToken: "next-page-token-1",
				Messages: []tool.MessageSummary{
					{
						ID:        "m-001",
						ThreadID:  "t-m-001",
						Timestamp: "2026-03-01T12:12:32Z",
						From:      tool.EmailAddress{Name: "Test User", Email: "test@test.com"},
						To:        []tool.EmailAddress{{Name: "My Name", Email: "me@test.com"}},
						Subject:   "Super important email m-001",
						Snippet:   "test summary m-001",
						Unread:    true,
					},
					{
						ID:        "m-002",
						ThreadID:  "t-m-002",
						Timestamp: "2026-03-01T12:12:32Z",
						From:      tool.EmailAddress{Name: "Test User", Email: "test@test.com"},
						Subject:   "Super important email m-002",
						Snippet:   "test summary m-002",
						Starred:   true,
					},
				},
			},
		},
		{
			req:         tool.FetchListRequest{Query: "from:unknown@test.com"},
			expectedErr: fmt.Errorf("svc.FetchList failed: simulated error: from:unknown@test.com"),
		},
	}

	svc := newFetchListSvc(byQuery)
	handler := tool.NewFetchList(svc)

	for _, c := range cases {
		t.Run(c.req.Query, func(t *testing.T) {
			_, resp, err := handler.FetchList(context.Background(), nil, c.req)
			if c.expectedErr != nil {
				require.Error(t, err)
				assert.Equal(t, c.expectedErr.Error(), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expected, resp)
		})
	}
}

func TestFetchListForwardsOptions(t *testing.T) {
	var got engine.FetchOptions
	svc := &engineSvcMock{
		FetchListFunc: func(_ context.Context, _ string, opts engine.FetchOptions) (engine.Page, error) {
			got = opts
			return engine.Page{}, nil
		},
	}

	_, _, err := tool.NewFetchList(svc).FetchList(context.Background(), nil, tool.FetchListRequest{
		Query:        "in:inbox",
		PageToken:    "cursor-7",
		ForceRefresh: true,
	})
	require.NoError(t, err)
	assert.Equal(t, engine.FetchOptions{ForceRefresh: true, PageToken: "cursor-7"}, got)
}
