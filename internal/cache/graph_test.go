package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stowawayapp/stowaway-server/internal/cache"
	"github.com/stowawayapp/stowaway-server/internal/domain"
)

func ctr(id, parentID, name string, isItem bool) *domain.Container {
	c := &domain.Container{
		Name:     name,
		IsItem:   isItem,
		UserID:   "user-1",
		ParentID: parentID,
	}
	c.ID = id
	c.InitTimestamps()
	return c
}

func tag(id, containerID, name string) *domain.Tag {
	return &domain.Tag{ID: id, Name: name, ContainerID: containerID}
}

func TestBuildGraph_RootsAndChildren(t *testing.T) {
	g := cache.BuildGraph([]*domain.Container{
		ctr("ctr-a", "", "Garage", false),
		ctr("ctr-b", "ctr-a", "Toolbox", false),
		ctr("ctr-c", "ctr-a", "Shelf", false),
	}, nil)

	require.Len(t, g.Roots(), 1)
	root := g.Roots()[0]
	assert.Equal(t, "ctr-a", root.ID())
	require.Len(t, root.Children, 2)
	assert.Equal(t, "ctr-b", root.Children[0].ID())
	assert.Equal(t, "ctr-c", root.Children[1].ID())
}

func TestBuildGraph_EveryChildInExactlyOneParent(t *testing.T) {
	containers := []*domain.Container{
		ctr("ctr-a", "", "Garage", false),
		ctr("ctr-b", "ctr-a", "Toolbox", false),
		ctr("ctr-c", "ctr-b", "Hammer", true),
		ctr("ctr-d", "", "Attic", false),
	}
	g := cache.BuildGraph(containers, nil)

	childCount := make(map[string]int)
	var count func(nodes []*cache.Node)
	count = func(nodes []*cache.Node) {
		for _, n := range nodes {
			for _, c := range n.Children {
				childCount[c.ID()]++
			}
			count(n.Children)
		}
	}
	count(g.Roots())

	rootIDs := make(map[string]bool)
	for _, n := range g.Roots() {
		rootIDs[n.ID()] = true
	}

	for _, c := range containers {
		if c.IsRoot() {
			assert.True(t, rootIDs[c.ID], "%s should be a root", c.ID)
			assert.Zero(t, childCount[c.ID], "%s should be in no children list", c.ID)
		} else {
			assert.False(t, rootIDs[c.ID], "%s should not be a root", c.ID)
			assert.Equal(t, 1, childCount[c.ID], "%s should be in exactly one children list", c.ID)
		}
	}
}

func TestBuildGraph_TagsGroupedInRowOrder(t *testing.T) {
	g := cache.BuildGraph(
		[]*domain.Container{ctr("ctr-a", "", "Toolbox", false)},
		[]*domain.Tag{
			tag("tag-1", "ctr-a", "tools"),
			tag("tag-2", "ctr-a", "metal"),
		},
	)

	node := g.Node("ctr-a")
	require.NotNil(t, node)
	assert.Equal(t, []string{"tools", "metal"}, node.Tags)
}

func TestBuildGraph_NoTagsIsEmptyList(t *testing.T) {
	g := cache.BuildGraph([]*domain.Container{ctr("ctr-a", "", "Garage", false)}, nil)
	require.NotNil(t, g.Node("ctr-a"))
	assert.NotNil(t, g.Node("ctr-a").Tags)
	assert.Empty(t, g.Node("ctr-a").Tags)
}

func TestBuildGraph_OrphanAddressableButUnreachable(t *testing.T) {
	g := cache.BuildGraph([]*domain.Container{
		ctr("ctr-a", "", "Garage", false),
		ctr("ctr-orphan", "ctr-gone", "Lost", false),
	}, nil)

	// Addressable by ID but not reachable from any root.
	assert.NotNil(t, g.Node("ctr-orphan"))
	require.Len(t, g.Roots(), 1)
	assert.Empty(t, g.Roots()[0].Children)
}

func TestNode_ReferenceStableBetweenRebuilds(t *testing.T) {
	g := cache.BuildGraph([]*domain.Container{ctr("ctr-a", "", "Garage", false)}, nil)

	first := cache.ContainerByID(g, "ctr-a")
	second := cache.ContainerByID(g, "ctr-a")
	assert.Same(t, first, second)
}

func TestSubtree_WorklistCoversDescendants(t *testing.T) {
	g := cache.BuildGraph([]*domain.Container{
		ctr("ctr-a", "", "Garage", false),
		ctr("ctr-b", "ctr-a", "Toolbox", false),
		ctr("ctr-c", "ctr-b", "Hammer", true),
		ctr("ctr-d", "", "Attic", false),
	}, nil)

	assert.ElementsMatch(t, []string{"ctr-a", "ctr-b", "ctr-c"}, g.Subtree("ctr-a"))
	assert.Equal(t, "ctr-a", g.Subtree("ctr-a")[0], "parent comes before children")
	assert.Nil(t, g.Subtree("ctr-missing"))
}

func TestRootContainers_ExcludesItems(t *testing.T) {
	g := cache.BuildGraph([]*domain.Container{
		ctr("ctr-a", "", "Garage", false),
		ctr("ctr-b", "", "Loose Hammer", true),
	}, nil)

	roots := cache.RootContainers(g)
	require.Len(t, roots, 1)
	assert.Equal(t, "ctr-a", roots[0].ID())
}

func TestBreadcrumbs_ThreeLevelChain(t *testing.T) {
	g := cache.BuildGraph([]*domain.Container{
		ctr("ctr-a", "", "Garage", false),
		ctr("ctr-b", "ctr-a", "Toolbox", false),
		ctr("ctr-c", "ctr-b", "Hammer", true),
	}, nil)

	trail := cache.Breadcrumbs(g, "ctr-c")
	require.Len(t, trail, 3)
	assert.Equal(t, "ctr-a", trail[0].ID())
	assert.Equal(t, "ctr-b", trail[1].ID())
	assert.Equal(t, "ctr-c", trail[2].ID())
}

func TestBreadcrumbs_RootIsSingleElement(t *testing.T) {
	g := cache.BuildGraph([]*domain.Container{ctr("ctr-a", "", "Garage", false)}, nil)

	trail := cache.Breadcrumbs(g, "ctr-a")
	require.Len(t, trail, 1)
	assert.Equal(t, "ctr-a", trail[0].ID())
}

func TestBreadcrumbs_UnknownIDIsEmpty(t *testing.T) {
	g := cache.BuildGraph([]*domain.Container{ctr("ctr-a", "", "Garage", false)}, nil)
	assert.Empty(t, cache.Breadcrumbs(g, "ctr-missing"))
}

func TestBreadcrumbs_CycleDoesNotHang(t *testing.T) {
	// A cyclic snapshot violates the move invariant but must not hang.
	g := cache.BuildGraph([]*domain.Container{
		ctr("ctr-a", "ctr-b", "A", false),
		ctr("ctr-b", "ctr-a", "B", false),
	}, nil)

	trail := cache.Breadcrumbs(g, "ctr-a")
	assert.Len(t, trail, 2)
}

func TestFavoriteContainers_DropsDeleted(t *testing.T) {
	g := cache.BuildGraph([]*domain.Container{ctr("ctr-a", "", "Garage", false)}, nil)

	favorites := []*domain.Favorite{
		{ID: "fav-1", UserID: "user-1", ContainerID: "ctr-a"},
		{ID: "fav-2", UserID: "user-1", ContainerID: "ctr-deleted"},
	}

	nodes := cache.FavoriteContainers(g, favorites)
	require.Len(t, nodes, 1)
	assert.Equal(t, "ctr-a", nodes[0].ID())
}

func TestMoveDestinations_ExcludesSubtreeAndItems(t *testing.T) {
	g := cache.BuildGraph([]*domain.Container{
		ctr("ctr-a", "", "Garage", false),
		ctr("ctr-b", "ctr-a", "Toolbox", false),
		ctr("ctr-c", "ctr-b", "Hammer", true),
		ctr("ctr-d", "", "Attic", false),
		ctr("ctr-e", "ctr-d", "Box", false),
	}, nil)

	dests := cache.MoveDestinations(g, "ctr-b")

	// ctr-b and its subtree are gone, items are gone, tree shape kept.
	require.Len(t, dests, 2)
	assert.Equal(t, "ctr-a", dests[0].Container.ID)
	assert.Empty(t, dests[0].Children)
	assert.Equal(t, "ctr-d", dests[1].Container.ID)
	require.Len(t, dests[1].Children, 1)
	assert.Equal(t, "ctr-e", dests[1].Children[0].Container.ID)
}

func TestMoveDestinations_FlatSetLeavesOthers(t *testing.T) {
	containers := []*domain.Container{
		ctr("ctr-1", "", "One", false),
		ctr("ctr-2", "", "Two", false),
		ctr("ctr-3", "", "Three", false),
		ctr("ctr-4", "", "Four", false),
		ctr("ctr-5", "", "Five", false),
	}
	g := cache.BuildGraph(containers, nil)

	dests := cache.MoveDestinations(g, "ctr-3")
	require.Len(t, dests, 4)
	for _, d := range dests {
		assert.NotEqual(t, "ctr-3", d.Container.ID)
	}
}
