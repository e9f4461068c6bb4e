// Package cache holds the per-user reactive view of synced rows: a row
// store fed by the sync engine, a materialized container graph rebuilt
// on every change, read-only selectors over that graph, and the
// mutation facade that turns user intent into row submissions.
package cache

import (
	stdsync "sync"

	"github.com/stowawayapp/stowaway-server/internal/domain"
	"github.com/stowawayapp/stowaway-server/internal/sync"
)

// RowStore caches the latest known row set for one user, as delivered
// by the sync engine. It is a pass-through cache: no validation, no
// transformation. Writers are engine delivery callbacks; readers are
// request goroutines, hence the lock (unlike a browser tab there is no
// single UI thread here).
type RowStore struct {
	mu         stdsync.RWMutex
	containers []*domain.Container
	tags       []*domain.Tag
	images     []*domain.Image
	favorites  []*domain.Favorite

	listenerMu stdsync.Mutex
	listeners  []func()
}

// NewRowStore creates an empty RowStore.
func NewRowStore() *RowStore {
	return &RowStore{}
}

// Apply replaces all four collections with the delivered row set and
// notifies listeners once.
func (rs *RowStore) Apply(rows sync.Rows) {
	rs.mu.Lock()
	rs.containers = rows.Containers
	rs.tags = rows.Tags
	rs.images = rows.Images
	rs.favorites = rows.Favorites
	rs.mu.Unlock()

	rs.notify()
}

// ApplyRows replaces the snapshot for a single row kind. Rows of the
// wrong type for the kind are ignored.
func (rs *RowStore) ApplyRows(kind sync.Kind, rows any) {
	rs.mu.Lock()
	switch kind {
	case sync.KindContainer:
		if v, ok := rows.([]*domain.Container); ok {
			rs.containers = v
		}
	case sync.KindTag:
		if v, ok := rows.([]*domain.Tag); ok {
			rs.tags = v
		}
	case sync.KindImage:
		if v, ok := rows.([]*domain.Image); ok {
			rs.images = v
		}
	case sync.KindFavorite:
		if v, ok := rows.([]*domain.Favorite); ok {
			rs.favorites = v
		}
	}
	rs.mu.Unlock()

	rs.notify()
}

// Subscribe registers fn to run after every applied change.
func (rs *RowStore) Subscribe(fn func()) {
	rs.listenerMu.Lock()
	rs.listeners = append(rs.listeners, fn)
	rs.listenerMu.Unlock()
}

// Snapshot returns a consistent copy of all four collections.
func (rs *RowStore) Snapshot() sync.Rows {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return sync.Rows{
		Containers: append([]*domain.Container(nil), rs.containers...),
		Tags:       append([]*domain.Tag(nil), rs.tags...),
		Images:     append([]*domain.Image(nil), rs.images...),
		Favorites:  append([]*domain.Favorite(nil), rs.favorites...),
	}
}

// Containers returns a copy of the container rows.
func (rs *RowStore) Containers() []*domain.Container {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return append([]*domain.Container(nil), rs.containers...)
}

// Tags returns a copy of the tag rows.
func (rs *RowStore) Tags() []*domain.Tag {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return append([]*domain.Tag(nil), rs.tags...)
}

// Images returns a copy of the image rows.
func (rs *RowStore) Images() []*domain.Image {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return append([]*domain.Image(nil), rs.images...)
}

// Favorites returns a copy of the favorite rows.
func (rs *RowStore) Favorites() []*domain.Favorite {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return append([]*domain.Favorite(nil), rs.favorites...)
}

// notify runs listeners outside the row lock so they can read back.
func (rs *RowStore) notify() {
	rs.listenerMu.Lock()
	listeners := append(([]func())(nil), rs.listeners...)
	rs.listenerMu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}
