// Package store provides durable row storage on Badger. It is the
// authoritative side of the sync engine: clients never write here
// directly, they submit row operations through the engine.
package store

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/stowawayapp/stowaway-server/internal/domain"
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// Generic entities, one per synced row kind plus users.
	Containers *Entity[domain.Container]
	Tags       *Entity[domain.Tag]
	Images     *Entity[domain.Image]
	Favorites  *Entity[domain.Favorite]
	Users      *Entity[domain.User]
}

// New creates a new Store instance with the given database path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &Store{
		db:     db,
		logger: logger,
	}

	store.initContainers()
	store.initTags()
	store.initImages()
	store.initFavorites()
	store.initUsers()

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return store, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// initContainers initializes the Containers entity on the store.
// Lookup indexes by owner and by parent drive the sync queries and the
// reparent/cascade paths; the code index enforces per-user scan code
// uniqueness (a conflict surfaces as ErrAlreadyExists at submit time).
func (s *Store) initContainers() {
	s.Containers = NewEntity[domain.Container](s, "container:").
		WithLookupIndex("user", func(c *domain.Container) []string {
			return []string{c.UserID}
		}).
		WithLookupIndex("parent", func(c *domain.Container) []string {
			if c.ParentID == "" {
				return nil
			}
			return []string{c.ParentID}
		}).
		WithUniqueIndex("code", func(c *domain.Container) []string {
			if c.Code == "" {
				return nil
			}
			return []string{CodeKey(c.UserID, c.Code)}
		})
}

// initTags initializes the Tags entity on the store.
func (s *Store) initTags() {
	s.Tags = NewEntity[domain.Tag](s, "tag:").
		WithLookupIndex("container", func(t *domain.Tag) []string {
			return []string{t.ContainerID}
		})
}

// initImages initializes the Images entity on the store.
func (s *Store) initImages() {
	s.Images = NewEntity[domain.Image](s, "image:").
		WithLookupIndex("container", func(i *domain.Image) []string {
			return []string{i.ContainerID}
		})
}

// initFavorites initializes the Favorites entity on the store.
func (s *Store) initFavorites() {
	s.Favorites = NewEntity[domain.Favorite](s, "favorite:").
		WithLookupIndex("user", func(f *domain.Favorite) []string {
			return []string{f.UserID}
		}).
		WithLookupIndex("container", func(f *domain.Favorite) []string {
			return []string{f.ContainerID}
		})
}

// initUsers initializes the Users entity on the store.
// Uses case-insensitive email indexing via normalizeEmail transformation.
func (s *Store) initUsers() {
	s.Users = NewEntity[domain.User](s, "user:").
		WithUniqueIndexTransform("email",
			func(u *domain.User) []string {
				return []string{normalizeEmail(u.Email)}
			},
			normalizeEmail, // Transform lookups to be case-insensitive
		)
}

// CodeKey builds the per-user unique index key for a scan code.
// Scan codes only need to be unique within one user's dataset.
func CodeKey(userID, code string) string {
	return userID + ":" + code
}

// normalizeEmail normalizes an email address for consistent lookups.
// Lowercases and trims whitespace.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
