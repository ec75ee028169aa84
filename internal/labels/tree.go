// Package labels builds a counted tree from flat "/"-delimited label paths
// and per-label thread observations.
package labels

import (
	"sort"
	"strings"
)

// DefaultTopN bounds root-level nodes when the caller passes no limit.
const DefaultTopN = 12

// ThreadSet is a set of distinct thread IDs observed for a label. Counting
// threads rather than messages keeps multi-message conversations from
// inflating counts.
type ThreadSet map[string]struct{}

// NewThreadSet builds a set from thread IDs.
func NewThreadSet(threadIDs ...string) ThreadSet {
	s := make(ThreadSet, len(threadIDs))
	for _, id := range threadIDs {
		s[id] = struct{}{}
	}
	return s
}

// Node is one node of the label forest. Synthesized intermediate nodes have
// no LabelID. A non-leaf node's Count includes its own leaf count plus all
// descendant counts.
type Node struct {
	LabelID  string  `json:"label_id,omitempty"`
	Name     string  `json:"name"`
	FullPath string  `json:"full_path"`
	Count    int     `json:"count"`
	IsLeaf   bool    `json:"is_leaf"`
	Depth    int     `json:"depth"`
	Children []*Node `json:"children,omitempty"`
}

// BuildTree aggregates label names (already filtered to user labels) and
// per-label thread sets into a forest. Only the top topN root nodes are
// returned; truncation never happens within a subtree.
func BuildTree(names map[string]string, threads map[string]ThreadSet, topN int) []*Node {
	if topN <= 0 {
		topN = DefaultTopN
	}

	byPath := make(map[string]*Node)

	// Leaves: one per named label, zero counts included.
	for labelID, name := range names {
		name = strings.Trim(name, "/")
		if name == "" {
			continue
		}
		segments := strings.Split(name, "/")
		byPath[name] = &Node{
			LabelID:  labelID,
			Name:     segments[len(segments)-1],
			FullPath: name,
			Count:    len(threads[labelID]),
			IsLeaf:   true,
			Depth:    len(segments) - 1,
		}
	}

	// Closure of path prefixes: synthesize an internal node for every
	// prefix with no corresponding label.
	for path := range byPath {
		segments := strings.Split(path, "/")
		for i := 1; i < len(segments); i++ {
			prefix := strings.Join(segments[:i], "/")
			if _, ok := byPath[prefix]; !ok {
				byPath[prefix] = &Node{
					Name:     segments[i-1],
					FullPath: prefix,
					Depth:    i - 1,
				}
			}
		}
	}

	// Link children to parents in ascending depth order so every parent
	// exists before its children attach.
	ordered := make([]*Node, 0, len(byPath))
	for _, n := range byPath {
		ordered = append(ordered, n)
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Depth < ordered[j].Depth })

	var roots []*Node
	for _, n := range ordered {
		if n.Depth == 0 {
			roots = append(roots, n)
			continue
		}
		idx := strings.LastIndex(n.FullPath, "/")
		parent := byPath[n.FullPath[:idx]]
		parent.IsLeaf = false
		parent.Children = append(parent.Children, n)
	}

	// Counts accumulate bottom-up: a parent keeps its own leaf count and
	// gains every descendant's.
	for _, root := range roots {
		accumulate(root)
	}

	sortSiblings(roots)
	for _, root := range roots {
		sortTree(root)
	}

	if len(roots) > topN {
		roots = roots[:topN]
	}
	return roots
}

func accumulate(n *Node) int {
	for _, child := range n.Children {
		n.Count += accumulate(child)
	}
	return n.Count
}

func sortTree(n *Node) {
	sortSiblings(n.Children)
	for _, child := range n.Children {
		sortTree(child)
	}
}

// sortSiblings orders descending by count; ties fall back to path order so
// output is deterministic across map iterations.
func sortSiblings(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Count != nodes[j].Count {
			return nodes[i].Count > nodes[j].Count
		}
		return nodes[i].FullPath < nodes[j].FullPath
	})
}
