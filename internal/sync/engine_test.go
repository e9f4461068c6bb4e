package sync_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stowawayapp/stowaway-server/internal/domain"
	"github.com/stowawayapp/stowaway-server/internal/store"
	"github.com/stowawayapp/stowaway-server/internal/sync"
)

func setupTestEngine(t *testing.T) (*sync.Engine, *store.Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "engine-test-*")
	require.NoError(t, err)

	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil)
	require.NoError(t, err)

	engine := sync.NewEngine(s, slog.New(slog.DiscardHandler))

	cleanup := func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}
	return engine, s, cleanup
}

func container(id, userID, parentID, name string) *domain.Container {
	c := &domain.Container{
		Name:     name,
		UserID:   userID,
		ParentID: parentID,
	}
	c.ID = id
	c.InitTimestamps()
	return c
}

func TestSubmit_InsertContainer(t *testing.T) {
	engine, s, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, engine.Submit(ctx, sync.InsertContainer(container("ctr-1", "user-1", "", "Garage"))))

	stored, err := s.Containers.Get(ctx, "ctr-1")
	require.NoError(t, err)
	assert.Equal(t, "Garage", stored.Name)
}

func TestSubmit_OpsApplyInOrder(t *testing.T) {
	engine, s, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()
	c := container("ctr-1", "user-1", "", "Garage")
	renamed := container("ctr-1", "user-1", "", "Workshop")

	require.NoError(t, engine.Submit(ctx,
		sync.InsertContainer(c),
		sync.UpdateContainer(renamed),
	))

	stored, err := s.Containers.Get(ctx, "ctr-1")
	require.NoError(t, err)
	assert.Equal(t, "Workshop", stored.Name)
}

func TestSubmit_PartialApplicationOnError(t *testing.T) {
	engine, s, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()
	err := engine.Submit(ctx,
		sync.InsertContainer(container("ctr-1", "user-1", "", "Garage")),
		sync.DeleteContainer("ctr-missing"),
		sync.InsertContainer(container("ctr-2", "user-1", "", "Attic")),
	)
	require.Error(t, err)

	// The op before the failure stays applied, the one after never runs.
	_, getErr := s.Containers.Get(ctx, "ctr-1")
	assert.NoError(t, getErr)
	_, getErr = s.Containers.Get(ctx, "ctr-2")
	assert.ErrorIs(t, getErr, store.ErrNotFound)
}

func TestSnapshot_ScopedToUser(t *testing.T) {
	engine, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, engine.Submit(ctx,
		sync.InsertContainer(container("ctr-1", "user-1", "", "Garage")),
		sync.InsertContainer(container("ctr-2", "user-2", "", "Kitchen")),
		sync.InsertTag(&domain.Tag{ID: "tag-1", Name: "tools", ContainerID: "ctr-1"}),
		sync.InsertTag(&domain.Tag{ID: "tag-2", Name: "food", ContainerID: "ctr-2"}),
	))

	rows, err := engine.Snapshot(ctx, "user-1")
	require.NoError(t, err)

	require.Len(t, rows.Containers, 1)
	assert.Equal(t, "ctr-1", rows.Containers[0].ID)
	require.Len(t, rows.Tags, 1)
	assert.Equal(t, "tools", rows.Tags[0].Name)
}

func TestSnapshot_UnknownUserIsEmpty(t *testing.T) {
	engine, _, cleanup := setupTestEngine(t)
	defer cleanup()

	rows, err := engine.Snapshot(context.Background(), "user-nobody")
	require.NoError(t, err)
	assert.Empty(t, rows.Containers)
	assert.Empty(t, rows.Tags)
	assert.Empty(t, rows.Images)
	assert.Empty(t, rows.Favorites)
}

func TestSubscribe_InitialSnapshotAndRedelivery(t *testing.T) {
	engine, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, engine.Submit(ctx, sync.InsertContainer(container("ctr-1", "user-1", "", "Garage"))))

	var deliveries []sync.Rows
	cancel, err := engine.Subscribe(ctx, "user-1", func(rows sync.Rows) {
		deliveries = append(deliveries, rows)
	})
	require.NoError(t, err)
	defer cancel()

	// Initial snapshot arrives before Subscribe returns.
	require.Len(t, deliveries, 1)
	require.Len(t, deliveries[0].Containers, 1)

	require.NoError(t, engine.Submit(ctx, sync.InsertContainer(container("ctr-2", "user-1", "ctr-1", "Toolbox"))))

	// Redelivery is synchronous with Submit and carries the full set.
	require.Len(t, deliveries, 2)
	assert.Len(t, deliveries[1].Containers, 2)
}

func TestSubscribe_NotNotifiedForOtherUsers(t *testing.T) {
	engine, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()
	var deliveries int
	cancel, err := engine.Subscribe(ctx, "user-1", func(sync.Rows) { deliveries++ })
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, engine.Submit(ctx, sync.InsertContainer(container("ctr-1", "user-2", "", "Kitchen"))))

	// Only the initial snapshot, no redelivery for another user's rows.
	assert.Equal(t, 1, deliveries)
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	engine, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()
	var deliveries int
	cancel, err := engine.Subscribe(ctx, "user-1", func(sync.Rows) { deliveries++ })
	require.NoError(t, err)

	cancel()
	require.NoError(t, engine.Submit(ctx, sync.InsertContainer(container("ctr-1", "user-1", "", "Garage"))))

	assert.Equal(t, 1, deliveries)
}

func TestSubmit_FavoriteRoundTrip(t *testing.T) {
	engine, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, engine.Submit(ctx, sync.InsertContainer(container("ctr-1", "user-1", "", "Garage"))))

	fav := &domain.Favorite{ID: "fav-1", UserID: "user-1", ContainerID: "ctr-1"}
	require.NoError(t, engine.Submit(ctx, sync.InsertFavorite(fav)))

	rows, err := engine.Snapshot(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, rows.Favorites, 1)

	require.NoError(t, engine.Submit(ctx, sync.DeleteFavorite("fav-1")))

	rows, err = engine.Snapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, rows.Favorites)
}
