package cache

import (
	"github.com/stowawayapp/stowaway-server/internal/domain"
)

// View selectors are pure functions over a materialized Graph. They
// never mutate and never fail: absent data comes back as nil or empty.

// RootContainers returns the root nodes that are containers, not items.
func RootContainers(g *Graph) []*Node {
	roots := make([]*Node, 0, len(g.Roots()))
	for _, node := range g.Roots() {
		if !node.Container.IsItem {
			roots = append(roots, node)
		}
	}
	return roots
}

// ContainerByID returns the node for id, or nil when absent. Absence
// covers both not-found and cross-user access, since the graph only
// ever holds the session user's rows.
func ContainerByID(g *Graph, id string) *Node {
	return g.Node(id)
}

// Breadcrumbs walks parent links upward from id and returns the trail
// root-first with the queried container last. Returns an empty slice
// when id is not in the graph. The visited set stops the walk on a
// cycle, which the move invariant should make impossible but must not
// hang the server if it ever appears.
func Breadcrumbs(g *Graph, id string) []*Node {
	node := g.Node(id)
	if node == nil {
		return []*Node{}
	}

	visited := make(map[string]bool)
	trail := []*Node{}
	for node != nil && !visited[node.ID()] {
		visited[node.ID()] = true
		trail = append(trail, node)
		if node.Container.IsRoot() {
			break
		}
		node = g.Node(node.Container.ParentID)
	}

	// Reverse to root-first order.
	for i, j := 0, len(trail)-1; i < j; i, j = i+1, j-1 {
		trail[i], trail[j] = trail[j], trail[i]
	}
	return trail
}

// FavoriteContainers maps favorites to their nodes, dropping favorites
// whose container is gone (favorited then deleted elsewhere).
func FavoriteContainers(g *Graph, favorites []*domain.Favorite) []*Node {
	nodes := make([]*Node, 0, len(favorites))
	for _, fav := range favorites {
		if node := g.Node(fav.ContainerID); node != nil {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// Destination is one eligible move target in the filtered forest
// returned by MoveDestinations. The tree shape is preserved so clients
// can render the hierarchy, not just a flat list.
type Destination struct {
	Container *domain.Container `json:"container"`
	Children  []*Destination    `json:"children"`
}

// MoveDestinations filters the root forest down to valid move targets
// for the container excludeID: items are dropped, and so are excludeID
// and its entire subtree (moving a container under its own descendant
// would create a cycle). A dropped node takes its branch with it.
func MoveDestinations(g *Graph, excludeID string) []*Destination {
	excluded := make(map[string]bool)
	for _, id := range g.Subtree(excludeID) {
		excluded[id] = true
	}

	var filter func(nodes []*Node) []*Destination
	filter = func(nodes []*Node) []*Destination {
		out := make([]*Destination, 0, len(nodes))
		for _, node := range nodes {
			if node.Container.IsItem || excluded[node.ID()] {
				continue
			}
			out = append(out, &Destination{
				Container: node.Container,
				Children:  filter(node.Children),
			})
		}
		return out
	}
	return filter(g.Roots())
}
