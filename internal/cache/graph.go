package cache

import (
	"github.com/stowawayapp/stowaway-server/internal/domain"
)

// Node is a container augmented with its tag names and children.
// Nodes are built once per graph rebuild and never mutated afterwards;
// consumers treat them as read-only.
type Node struct {
	Container *domain.Container
	Tags      []string
	Children  []*Node
}

// ID returns the underlying container's ID.
func (n *Node) ID() string { return n.Container.ID }

// Graph is the materialized container tree for one user, derived from
// the flat row snapshot. It is rebuilt in full on every row change;
// personal inventories are small enough (hundreds to low thousands of
// rows) that incremental patching is not worth the complexity.
type Graph struct {
	nodes map[string]*Node
	roots []*Node
}

// BuildGraph materializes the container rows and tag rows into a tree.
//
// Tags are grouped by container in row order. Every container becomes a
// node; children are linked in row order. A node whose parent is not in
// the snapshot (orphaned) stays addressable by ID but is unreachable
// from the roots. This stage cannot fail: malformed rows are an
// upstream contract violation, not handled here.
func BuildGraph(containers []*domain.Container, tags []*domain.Tag) *Graph {
	tagsByContainer := make(map[string][]string)
	for _, tag := range tags {
		tagsByContainer[tag.ContainerID] = append(tagsByContainer[tag.ContainerID], tag.Name)
	}

	g := &Graph{
		nodes: make(map[string]*Node, len(containers)),
		roots: make([]*Node, 0),
	}

	for _, c := range containers {
		tags := tagsByContainer[c.ID]
		if tags == nil {
			tags = []string{}
		}
		g.nodes[c.ID] = &Node{
			Container: c,
			Tags:      tags,
			Children:  []*Node{},
		}
	}

	for _, c := range containers {
		node := g.nodes[c.ID]
		if c.IsRoot() {
			g.roots = append(g.roots, node)
			continue
		}
		if parent, ok := g.nodes[c.ParentID]; ok {
			parent.Children = append(parent.Children, node)
		}
	}

	return g
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*Node), roots: []*Node{}}
}

// Node looks up a node by container ID. Returns nil when absent; "not
// yet synced" and "does not exist" are indistinguishable here.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// Roots returns the nodes whose containers have no parent.
func (g *Graph) Roots() []*Node {
	return g.roots
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Subtree returns the IDs of the node rooted at id and all of its
// descendants, parents before children. Returns nil when id is absent.
// Uses a worklist rather than recursion so deep trees cannot blow the
// stack, and a visited set so a corrupt cyclic snapshot cannot loop.
func (g *Graph) Subtree(id string) []string {
	root := g.nodes[id]
	if root == nil {
		return nil
	}

	visited := make(map[string]bool)
	ids := make([]string, 0)
	work := []*Node{root}
	for len(work) > 0 {
		node := work[0]
		work = work[1:]
		if visited[node.ID()] {
			continue
		}
		visited[node.ID()] = true
		ids = append(ids, node.ID())
		work = append(work, node.Children...)
	}
	return ids
}
