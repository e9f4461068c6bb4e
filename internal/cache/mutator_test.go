package cache_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stowawayapp/stowaway-server/internal/cache"
	apperrors "github.com/stowawayapp/stowaway-server/internal/errors"
	"github.com/stowawayapp/stowaway-server/internal/store"
	"github.com/stowawayapp/stowaway-server/internal/sync"
)

func setupSession(t *testing.T, userID string) (*cache.Session, *store.Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "cache-test-*")
	require.NoError(t, err)

	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil)
	require.NoError(t, err)

	engine := sync.NewEngine(s, slog.New(slog.DiscardHandler))
	session, err := cache.NewSession(context.Background(), userID, engine)
	require.NoError(t, err)

	cleanup := func() {
		session.Close()
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}
	return session, s, cleanup
}

func mustCreate(t *testing.T, session *cache.Session, in cache.CreateContainerInput) string {
	t.Helper()
	c, err := session.Mutate().CreateContainer(context.Background(), in)
	require.NoError(t, err)
	return c.ID
}

func TestCreateContainer_AppearsInGraph(t *testing.T) {
	session, _, cleanup := setupSession(t, "user-1")
	defer cleanup()

	garageID := mustCreate(t, session, cache.CreateContainerInput{Name: "Garage"})

	node := session.ContainerByID(garageID)
	require.NotNil(t, node)
	assert.Equal(t, "Garage", node.Container.Name)
	assert.False(t, node.Container.IsItem)

	roots := session.RootContainers()
	require.Len(t, roots, 1)
	assert.Equal(t, garageID, roots[0].ID())
}

func TestCreateContainer_SkipsBlankTags(t *testing.T) {
	session, _, cleanup := setupSession(t, "user-1")
	defer cleanup()

	id := mustCreate(t, session, cache.CreateContainerInput{
		Name: "Toolbox",
		Tags: []string{"tools", "  ", "", "metal"},
	})

	node := session.ContainerByID(id)
	require.NotNil(t, node)
	assert.Equal(t, []string{"tools", "metal"}, node.Tags)
}

func TestScenario_GarageToolboxHammer(t *testing.T) {
	session, _, cleanup := setupSession(t, "user-1")
	defer cleanup()

	garageID := mustCreate(t, session, cache.CreateContainerInput{Name: "Garage"})
	toolboxID := mustCreate(t, session, cache.CreateContainerInput{
		Name:     "Toolbox",
		ParentID: garageID,
		Tags:     []string{"tools", "metal"},
	})
	hammerID := mustCreate(t, session, cache.CreateContainerInput{
		Name:     "Hammer",
		IsItem:   true,
		ParentID: toolboxID,
	})

	roots := session.RootContainers()
	require.Len(t, roots, 1)
	assert.Equal(t, garageID, roots[0].ID())

	trail := session.Breadcrumbs(hammerID)
	require.Len(t, trail, 3)
	assert.Equal(t, garageID, trail[0].ID())
	assert.Equal(t, toolboxID, trail[1].ID())
	assert.Equal(t, hammerID, trail[2].ID())

	assert.Equal(t, []string{"tools", "metal"}, session.ContainerByID(toolboxID).Tags)
}

func TestUpdateContainer_PatchesOnlyProvidedFields(t *testing.T) {
	session, _, cleanup := setupSession(t, "user-1")
	defer cleanup()

	id := mustCreate(t, session, cache.CreateContainerInput{
		Name:        "Garage",
		Description: "ground floor",
	})

	newName := "Workshop"
	updated, err := session.Mutate().UpdateContainer(context.Background(), id, cache.UpdateContainerInput{
		Name: &newName,
	})
	require.NoError(t, err)

	assert.Equal(t, "Workshop", updated.Name)
	assert.Equal(t, "ground floor", updated.Description)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

	node := session.ContainerByID(id)
	assert.Equal(t, "Workshop", node.Container.Name)
}

func TestUpdateContainer_NotFound(t *testing.T) {
	session, _, cleanup := setupSession(t, "user-1")
	defer cleanup()

	name := "x"
	_, err := session.Mutate().UpdateContainer(context.Background(), "ctr-missing", cache.UpdateContainerInput{Name: &name})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMoveContainer_ReparentsAndToRoot(t *testing.T) {
	session, _, cleanup := setupSession(t, "user-1")
	defer cleanup()

	garageID := mustCreate(t, session, cache.CreateContainerInput{Name: "Garage"})
	atticID := mustCreate(t, session, cache.CreateContainerInput{Name: "Attic"})
	boxID := mustCreate(t, session, cache.CreateContainerInput{Name: "Box", ParentID: garageID})

	_, err := session.Mutate().MoveContainer(context.Background(), boxID, atticID)
	require.NoError(t, err)
	assert.Equal(t, atticID, session.ContainerByID(boxID).Container.ParentID)

	_, err = session.Mutate().MoveContainer(context.Background(), boxID, "")
	require.NoError(t, err)
	assert.True(t, session.ContainerByID(boxID).Container.IsRoot())
	assert.Len(t, session.RootContainers(), 3)
}

func TestMoveContainer_RejectsCycles(t *testing.T) {
	session, _, cleanup := setupSession(t, "user-1")
	defer cleanup()

	garageID := mustCreate(t, session, cache.CreateContainerInput{Name: "Garage"})
	toolboxID := mustCreate(t, session, cache.CreateContainerInput{Name: "Toolbox", ParentID: garageID})
	trayID := mustCreate(t, session, cache.CreateContainerInput{Name: "Tray", ParentID: toolboxID})

	ctx := context.Background()

	_, err := session.Mutate().MoveContainer(ctx, garageID, garageID)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = session.Mutate().MoveContainer(ctx, garageID, trayID)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = session.Mutate().MoveContainer(ctx, garageID, "ctr-missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// Nothing moved.
	assert.True(t, session.ContainerByID(garageID).Container.IsRoot())
}

func TestDeleteContainer_CascadeRemovesSubtree(t *testing.T) {
	session, s, cleanup := setupSession(t, "user-1")
	defer cleanup()

	ctx := context.Background()
	rootID := mustCreate(t, session, cache.CreateContainerInput{Name: "Garage", Tags: []string{"big"}})
	childA := mustCreate(t, session, cache.CreateContainerInput{Name: "Toolbox", ParentID: rootID, Tags: []string{"tools"}})
	childB := mustCreate(t, session, cache.CreateContainerInput{Name: "Shelf", ParentID: rootID})
	grandchild := mustCreate(t, session, cache.CreateContainerInput{Name: "Hammer", ParentID: childA, IsItem: true})

	_, err := session.Mutate().ToggleFavorite(ctx, childA)
	require.NoError(t, err)

	require.NoError(t, session.Mutate().DeleteContainer(ctx, rootID, true))

	for _, id := range []string{rootID, childA, childB, grandchild} {
		assert.Nil(t, session.ContainerByID(id))
		_, err := s.Containers.Get(ctx, id)
		assert.ErrorIs(t, err, store.ErrNotFound)
	}
	assert.Empty(t, session.Rows().Tags())
	assert.Empty(t, session.Favorites())
}

func TestDeleteContainer_ReparentsChildren(t *testing.T) {
	session, _, cleanup := setupSession(t, "user-1")
	defer cleanup()

	ctx := context.Background()
	garageID := mustCreate(t, session, cache.CreateContainerInput{Name: "Garage"})
	toolboxID := mustCreate(t, session, cache.CreateContainerInput{Name: "Toolbox", ParentID: garageID, Tags: []string{"tools"}})
	childA := mustCreate(t, session, cache.CreateContainerInput{Name: "Tray", ParentID: toolboxID, Tags: []string{"small"}})
	childB := mustCreate(t, session, cache.CreateContainerInput{Name: "Drill", ParentID: toolboxID, IsItem: true})

	require.NoError(t, session.Mutate().DeleteContainer(ctx, toolboxID, false))

	assert.Nil(t, session.ContainerByID(toolboxID))

	// Children moved up to the deleted container's former parent.
	assert.Equal(t, garageID, session.ContainerByID(childA).Container.ParentID)
	assert.Equal(t, garageID, session.ContainerByID(childB).Container.ParentID)

	// Only the deleted container's own tags are gone.
	assert.Equal(t, []string{"small"}, session.ContainerByID(childA).Tags)
	tags := session.Rows().Tags()
	require.Len(t, tags, 1)
	assert.Equal(t, "small", tags[0].Name)
}

func TestDeleteContainer_RootChildrenBecomeRoots(t *testing.T) {
	session, _, cleanup := setupSession(t, "user-1")
	defer cleanup()

	rootID := mustCreate(t, session, cache.CreateContainerInput{Name: "Garage"})
	childID := mustCreate(t, session, cache.CreateContainerInput{Name: "Toolbox", ParentID: rootID})

	require.NoError(t, session.Mutate().DeleteContainer(context.Background(), rootID, false))

	node := session.ContainerByID(childID)
	require.NotNil(t, node)
	assert.True(t, node.Container.IsRoot())
}

func TestUpdateContainerTags_ReplaceIsIdempotent(t *testing.T) {
	session, _, cleanup := setupSession(t, "user-1")
	defer cleanup()

	ctx := context.Background()
	id := mustCreate(t, session, cache.CreateContainerInput{Name: "Toolbox", Tags: []string{"old"}})

	require.NoError(t, session.Mutate().UpdateContainerTags(ctx, id, []string{"a", "b"}))
	require.NoError(t, session.Mutate().UpdateContainerTags(ctx, id, []string{"a", "b"}))

	node := session.ContainerByID(id)
	assert.Equal(t, []string{"a", "b"}, node.Tags)
	assert.Len(t, session.Rows().Tags(), 2)
}

func TestUpdateContainerTags_FiltersBlankNames(t *testing.T) {
	session, _, cleanup := setupSession(t, "user-1")
	defer cleanup()

	id := mustCreate(t, session, cache.CreateContainerInput{Name: "Toolbox"})
	require.NoError(t, session.Mutate().UpdateContainerTags(context.Background(), id, []string{"a", "", "  "}))

	assert.Equal(t, []string{"a"}, session.ContainerByID(id).Tags)
}

func TestToggleFavorite_InsertsThenRemoves(t *testing.T) {
	session, _, cleanup := setupSession(t, "user-1")
	defer cleanup()

	ctx := context.Background()
	id := mustCreate(t, session, cache.CreateContainerInput{Name: "Garage"})

	favorited, err := session.Mutate().ToggleFavorite(ctx, id)
	require.NoError(t, err)
	assert.True(t, favorited)
	require.Len(t, session.Favorites(), 1)
	assert.Equal(t, id, session.Favorites()[0].ContainerID)

	favorited, err = session.Mutate().ToggleFavorite(ctx, id)
	require.NoError(t, err)
	assert.False(t, favorited)
	assert.Empty(t, session.Favorites())
}

func TestCreateImage_AppendsAtNextSortOrder(t *testing.T) {
	session, _, cleanup := setupSession(t, "user-1")
	defer cleanup()

	ctx := context.Background()
	id := mustCreate(t, session, cache.CreateContainerInput{Name: "Garage"})

	first, err := session.Mutate().CreateImage(ctx, cache.CreateImageInput{
		ContainerID: id,
		Filename:    "front.jpg",
		Filepath:    "images/front.webp",
		MimeType:    "image/jpeg",
		Size:        1024,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, first.SortOrder)

	second, err := session.Mutate().CreateImage(ctx, cache.CreateImageInput{
		ContainerID: id,
		Filename:    "back.jpg",
		Filepath:    "images/back.webp",
		MimeType:    "image/jpeg",
		Size:        2048,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, second.SortOrder)

	images := session.Images(id)
	require.Len(t, images, 2)
}

func TestDeleteImage_ReturnsRowForFileCleanup(t *testing.T) {
	session, _, cleanup := setupSession(t, "user-1")
	defer cleanup()

	ctx := context.Background()
	id := mustCreate(t, session, cache.CreateContainerInput{Name: "Garage"})
	img, err := session.Mutate().CreateImage(ctx, cache.CreateImageInput{
		ContainerID: id,
		Filename:    "front.jpg",
		Filepath:    "images/front.webp",
		MimeType:    "image/jpeg",
	})
	require.NoError(t, err)

	deleted, err := session.Mutate().DeleteImage(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, "images/front.webp", deleted.Filepath)
	assert.Empty(t, session.Images(id))

	_, err = session.Mutate().DeleteImage(ctx, img.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDuplicateScanCodeConflicts(t *testing.T) {
	session, _, cleanup := setupSession(t, "user-1")
	defer cleanup()

	ctx := context.Background()
	_, err := session.Mutate().CreateContainer(ctx, cache.CreateContainerInput{Name: "Garage", Code: "QR-001"})
	require.NoError(t, err)

	_, err = session.Mutate().CreateContainer(ctx, cache.CreateContainerInput{Name: "Attic", Code: "QR-001"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestSession_AbsentUserIsEmpty(t *testing.T) {
	session, _, cleanup := setupSession(t, "")
	defer cleanup()

	assert.Empty(t, session.RootContainers())
	assert.Empty(t, session.Favorites())
	assert.Nil(t, session.ContainerByID("ctr-anything"))
}

func TestSessions_IsolatedPerUser(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "cache-test-*")
	require.NoError(t, err)
	defer func() { _ = os.RemoveAll(tmpDir) }()

	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	engine := sync.NewEngine(s, slog.New(slog.DiscardHandler))
	registry := cache.NewRegistry(engine, slog.New(slog.DiscardHandler))
	defer registry.Close()

	ctx := context.Background()
	alice, err := registry.Session(ctx, "user-alice")
	require.NoError(t, err)
	bob, err := registry.Session(ctx, "user-bob")
	require.NoError(t, err)

	_, err = alice.Mutate().CreateContainer(ctx, cache.CreateContainerInput{Name: "Garage"})
	require.NoError(t, err)

	assert.Len(t, alice.RootContainers(), 1)
	assert.Empty(t, bob.RootContainers())

	// Same user resolves to the same session.
	again, err := registry.Session(ctx, "user-alice")
	require.NoError(t, err)
	assert.Same(t, alice, again)
}
