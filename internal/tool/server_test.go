package tool_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxcore/inboxcore/internal/engine"
	"github.com/inboxcore/inboxcore/internal/labels"
	"github.com/inboxcore/inboxcore/internal/mail"
	"github.com/inboxcore/inboxcore/internal/profile"
	"github.com/inboxcore/inboxcore/internal/thread"
	"github.com/inboxcore/inboxcore/internal/tool"
)

type cacheClearerMock struct {
	cleared int
}

func (c *cacheClearerMock) ClearCache() { c.cleared++ }

type serverFixture struct {
	client   *mcp.ClientSession
	server   *mcp.ServerSession
	profiles *profile.Store
	clearer  *cacheClearerMock
}

func newServerFixture(t *testing.T, svc *engineSvcMock) *serverFixture {
	t.Helper()

	profiles := profile.NewStore("profile-a",
		profile.Profile{ID: "profile-a", Name: "David"},
		profile.Profile{ID: "profile-b", Name: "Anna"},
	)
	clearer := &cacheClearerMock{}
	server := tool.NewServer(svc, profiles, clearer)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	ctx := context.Background()

	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	clientSession, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		clientSession.Close()
		serverSession.Close()
	})

	return &serverFixture{client: clientSession, server: serverSession, profiles: profiles, clearer: clearer}
}

func callTool[T any](ctx context.Context, t *testing.T, client *mcp.ClientSession, name string, args any) T {
	t.Helper()

	result, err := client.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.False(t, result.IsError, "tool %s failed: %v", name, result.Content)

	var out T
	require.NoError(t, json.Unmarshal(
		[]byte(result.Content[0].(*mcp.TextContent).Text),
		&out,
	))
	return out
}

func TestServerFetchListRoundTrip(t *testing.T) {
	svc := &engineSvcMock{
		FetchListFunc: func(_ context.Context, query string, _ engine.FetchOptions) (engine.Page, error) {
			return engine.Page{
				Items:    []mail.Message{{ID: "m-1", ThreadID: "t-1", Subject: "hello " + query}},
				Estimate: 1,
			}, nil
		},
	}
	f := newServerFixture(t, svc)

	resp := callTool[tool.FetchListResponse](context.Background(), t, f.client, "fetch_list",
		tool.FetchListRequest{Query: "in:inbox"})

	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "m-1", resp.Messages[0].ID)
	assert.Equal(t, "hello in:inbox", resp.Messages[0].Subject)
}

func TestServerOpenThreadRoundTrip(t *testing.T) {
	svc := &engineSvcMock{
		OpenThreadFunc: func(_ context.Context, threadID string) (thread.Conversation, error) {
			return thread.Conversation{
				ThreadID: threadID,
				Messages: []thread.RenderedMessage{{
					Message:   mail.Message{ID: "m-1", ThreadID: threadID, Subject: "status"},
					CleanBody: "<p>latest reply</p>",
					Preview:   "latest reply",
				}},
				Attachments: []mail.Attachment{{Name: "report.pdf", MimeType: "application/pdf", Size: 1024, AttachmentID: "att-1"}},
			}, nil
		},
	}
	f := newServerFixture(t, svc)

	resp := callTool[tool.OpenThreadResponse](context.Background(), t, f.client, "open_thread",
		tool.OpenThreadRequest{ThreadID: "t-42"})

	assert.Equal(t, "t-42", resp.ThreadID)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "<p>latest reply</p>", resp.Messages[0].Body)
	require.Len(t, resp.Attachments, 1)
	assert.Equal(t, "report.pdf", resp.Attachments[0].Name)
}

func TestServerLabelTreeRoundTrip(t *testing.T) {
	svc := &engineSvcMock{
		LabelTreeFunc: func(_ context.Context, _ int) ([]*labels.Node, error) {
			return []*labels.Node{{
				LabelID:  "l-work",
				Name:     "Work",
				FullPath: "Work",
				Count:    5,
				Children: []*labels.Node{{LabelID: "l-reports", Name: "Reports", FullPath: "Work/Reports", Count: 2}},
			}}, nil
		},
	}
	f := newServerFixture(t, svc)

	resp := callTool[tool.LabelTreeResponse](context.Background(), t, f.client, "label_tree",
		tool.LabelTreeRequest{})

	require.Len(t, resp.Labels, 1)
	assert.Equal(t, 5, resp.Labels[0].Count)
	require.Len(t, resp.Labels[0].Children, 1)
	assert.Equal(t, "Work/Reports", resp.Labels[0].Children[0].FullPath)
}

func TestServerGetAttachmentRoundTrip(t *testing.T) {
	svc := &engineSvcMock{
		AttachmentFunc: func(_ context.Context, messageID, attachmentID string) ([]byte, error) {
			return []byte("pdf bytes for " + messageID + "/" + attachmentID), nil
		},
	}
	f := newServerFixture(t, svc)

	resp := callTool[tool.GetAttachmentResponse](context.Background(), t, f.client, "get_attachment",
		tool.GetAttachmentRequest{MessageID: "m-1", AttachmentID: "att-9"})

	assert.Equal(t, "att-9", resp.AttachmentID)
	assert.Equal(t, len("pdf bytes for m-1/att-9"), resp.Size)

	data, err := base64.RawURLEncoding.DecodeString(resp.Data)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes for m-1/att-9", string(data))
}

func TestServerMutationError(t *testing.T) {
	svc := &engineSvcMock{
		MarkReadFunc: func(_ context.Context, _ string, _ bool) error {
			return errors.New("remote rejected the write")
		},
	}
	f := newServerFixture(t, svc)

	result, err := f.client.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "mark_read",
		Arguments: tool.MarkReadRequest{MessageID: "m-1", Read: true},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError, "remote write failures must surface to the caller")
}

func TestServerSwitchProfileAndClearCache(t *testing.T) {
	svc := &engineSvcMock{}
	f := newServerFixture(t, svc)

	resp := callTool[tool.SwitchProfileResponse](context.Background(), t, f.client, "switch_profile",
		tool.SwitchProfileRequest{ProfileID: "profile-b"})
	assert.Equal(t, "profile-b", resp.ActiveProfileID)
	assert.Equal(t, "profile-b", f.profiles.ActiveProfileID())

	cleared := callTool[tool.ClearCacheResponse](context.Background(), t, f.client, "clear_cache",
		tool.ClearCacheRequest{})
	assert.True(t, cleared.Cleared)
	assert.Equal(t, 1, f.clearer.cleared)
}
