package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inboxcore/inboxcore/internal/labels"
)

type LabelTreeRequest struct {
	TopN int `json:"top_n,omitempty" jsonschema:"maximum number of root labels to return"`
}

type LabelTreeResponse struct {
	Labels []LabelNode `json:"labels" jsonschema:"root labels sorted by thread count"`
}

// LabelNode is one node of the sidebar label hierarchy. Counts include
// descendants; synthesized intermediate nodes carry an empty label ID.
type LabelNode struct {
	ID       string      `json:"id,omitempty" jsonschema:"provider label ID, empty for synthesized nodes"`
	Name     string      `json:"name" jsonschema:"display name of this segment"`
	FullPath string      `json:"full_path" jsonschema:"slash-separated path"`
	Count    int         `json:"count" jsonschema:"thread count including descendants"`
	Children []LabelNode `json:"children,omitempty" jsonschema:"child labels sorted by thread count"`
}

type labelTreeSvc interface {
	LabelTree(ctx context.Context, topN int) ([]*labels.Node, error)
}

func NewLabelTree(svc labelTreeSvc) *LabelTree {
	return &LabelTree{
		svc: svc,
	}
}

type LabelTree struct {
	svc labelTreeSvc
}

func (t *LabelTree) LabelTree(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input LabelTreeRequest,
) (*mcp.CallToolResult, LabelTreeResponse, error) {
	roots, err := t.svc.LabelTree(ctx, input.TopN)
	if err != nil {
		return nil, LabelTreeResponse{}, fmt.Errorf("svc.LabelTree failed: %w", err)
	}

	return nil, LabelTreeResponse{Labels: toLabelNodes(roots)}, nil
}

func toLabelNodes(nodes []*labels.Node) []LabelNode {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]LabelNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, LabelNode{
			ID:       n.LabelID,
			Name:     n.Name,
			FullPath: n.FullPath,
			Count:    n.Count,
			Children: toLabelNodes(n.Children),
		})
	}
	return out
}
