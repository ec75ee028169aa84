package tool

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type engineSvc interface {
	fetchListSvc
	openThreadSvc
	labelTreeSvc
	mutateSvc
	attachmentSvc
}

// NewServer creates an MCP server exposing the mailbox engine.
func NewServer(svc engineSvc, profiles profileSwitcher, cache cacheClearer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "inboxcore", Version: "v1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "fetch_list",
		Description: "Fetch one page of messages for a search query, cache-backed for fresh non-paginated reads",
	}, NewFetchList(svc).FetchList)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "open_thread",
		Description: "Open a conversation: quote-stripped, sanitized messages newest first plus deduplicated attachments",
	}, NewOpenThread(svc).OpenThread)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "label_tree",
		Description: "Aggregate user labels into a counted hierarchy for the sidebar",
	}, NewLabelTree(svc).LabelTree)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_attachment",
		Description: "Fetch one attachment's bytes by message and attachment ID",
	}, NewGetAttachment(svc).GetAttachment)

	mutate := NewMutate(svc)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "mark_read",
		Description: "Mark a message read or unread",
	}, mutate.MarkRead)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_starred",
		Description: "Star or unstar a message",
	}, mutate.SetStarred)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "apply_labels",
		Description: "Add and remove labels on a message",
	}, mutate.ApplyLabels)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "trash",
		Description: "Move a message to trash",
	}, mutate.Trash)

	session := NewSession(profiles, cache)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "switch_profile",
		Description: "Activate another profile, invalidating caches, cursors and auto-reply state",
	}, session.SwitchProfile)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_cache",
		Description: "Drop all cached state including auto-reply dedup sets",
	}, session.ClearCache)

	return server
}
