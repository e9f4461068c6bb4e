package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Entity provides generic CRUD operations for any domain type.
//
// Two kinds of secondary indexes are supported:
//   - unique indexes map one key to exactly one entity ID (e.g. a user's
//     email, a container's scan code) and conflict on Create/Update.
//   - lookup indexes map one key to many entity IDs (e.g. all tags of a
//     container, all containers of a user) and never conflict.
type Entity[T any] struct {
	store         *Store
	prefix        string
	uniqueIndexes []uniqueIndex[T]
	lookupIndexes []lookupIndex[T]
}

// uniqueIndex defines a one-to-one secondary index on an entity.
type uniqueIndex[T any] struct {
	name            string
	keyGen          func(*T) []string
	lookupTransform func(string) string // Optional transformation for lookups
}

// lookupIndex defines a one-to-many secondary index on an entity.
type lookupIndex[T any] struct {
	name   string
	keyGen func(*T) []string
}

// NewEntity creates a new Entity instance for type T.
func NewEntity[T any](s *Store, prefix string) *Entity[T] {
	return &Entity[T]{
		store:  s,
		prefix: prefix,
	}
}

// WithUniqueIndex adds a unique secondary index to the entity.
// keyGen may return no keys for entities that don't participate
// (e.g. containers without a scan code).
func (e *Entity[T]) WithUniqueIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.uniqueIndexes = append(e.uniqueIndexes, uniqueIndex[T]{
		name:   name,
		keyGen: keyGen,
	})
	return e
}

// WithUniqueIndexTransform adds a unique secondary index with lookup transformation.
// The lookupTransform function is applied to search values before index lookup,
// enabling case-insensitive searches, normalization, etc.
func (e *Entity[T]) WithUniqueIndexTransform(name string, keyGen func(*T) []string, lookupTransform func(string) string) *Entity[T] {
	e.uniqueIndexes = append(e.uniqueIndexes, uniqueIndex[T]{
		name:            name,
		keyGen:          keyGen,
		lookupTransform: lookupTransform,
	})
	return e
}

// WithLookupIndex adds a one-to-many secondary index to the entity.
func (e *Entity[T]) WithLookupIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.lookupIndexes = append(e.lookupIndexes, lookupIndex[T]{
		name:   name,
		keyGen: keyGen,
	})
	return e
}

// Key layout under the entity prefix:
//
//	{prefix}{id}                         primary record (JSON)
//	{prefix}idx:{name}:{key}             unique index → entity ID
//	{prefix}ref:{name}:{key}:{id}        lookup index → empty value
func (e *Entity[T]) primaryKey(id string) []byte {
	return []byte(e.prefix + id)
}

func (e *Entity[T]) uniqueKey(name, key string) []byte {
	return []byte(e.prefix + "idx:" + name + ":" + key)
}

func (e *Entity[T]) lookupKey(name, key, id string) []byte {
	return []byte(e.prefix + "ref:" + name + ":" + key + ":" + id)
}

// Create creates a new entity with the given ID.
// Returns ErrAlreadyExists if an entity with this ID (or a conflicting
// unique index key) already exists.
func (e *Entity[T]) Create(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		// Check if key already exists
		_, err := txn.Get(e.primaryKey(id))
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check existing key: %w", err)
		}

		// Check for unique index conflicts
		for _, idx := range e.uniqueIndexes {
			for _, indexKey := range idx.keyGen(entity) {
				_, err := txn.Get(e.uniqueKey(idx.name, indexKey))
				if err == nil {
					return fmt.Errorf("index %s conflict on key %s: %w", idx.name, indexKey, ErrAlreadyExists)
				}
				if !errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("failed to check index key: %w", err)
				}
			}
		}

		if err := txn.Set(e.primaryKey(id), data); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}

		return e.writeIndexKeys(txn, id, entity)
	})
}

// Get retrieves an entity by ID.
// Returns ErrNotFound if the entity does not exist.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entity T
	err := e.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(e.primaryKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get key: %w", err)
		}

		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &entity); err != nil {
				return fmt.Errorf("failed to unmarshal entity: %w", err)
			}
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return &entity, nil
}

// GetByUniqueIndex retrieves an entity by unique secondary index.
// If the index has a lookup transform, it will be applied to the value before lookup.
func (e *Entity[T]) GetByUniqueIndex(ctx context.Context, indexName, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	transformedValue := value
	for _, idx := range e.uniqueIndexes {
		if idx.name == indexName && idx.lookupTransform != nil {
			transformedValue = idx.lookupTransform(value)
			break
		}
	}

	var id string
	err := e.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(e.uniqueKey(indexName, transformedValue))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return e.Get(ctx, id)
}

// Update updates an existing entity.
// Returns ErrNotFound if the entity does not exist.
func (e *Entity[T]) Update(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		// Get the old entity to clean up old index keys
		var oldEntity T
		item, err := txn.Get(e.primaryKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get existing key: %w", err)
		}

		err = item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &oldEntity); err != nil {
				return fmt.Errorf("failed to unmarshal old entity: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		if err := e.deleteIndexKeys(txn, id, &oldEntity); err != nil {
			return err
		}

		// Check for new unique index conflicts (excluding keys the old
		// entity already held).
		for _, idx := range e.uniqueIndexes {
			oldKeys := make(map[string]bool)
			for _, k := range idx.keyGen(&oldEntity) {
				oldKeys[k] = true
			}

			for _, indexKey := range idx.keyGen(entity) {
				if oldKeys[indexKey] {
					continue
				}
				_, err := txn.Get(e.uniqueKey(idx.name, indexKey))
				if err == nil {
					return fmt.Errorf("index %s conflict on key %s: %w", idx.name, indexKey, ErrAlreadyExists)
				}
				if !errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("failed to check index key: %w", err)
				}
			}
		}

		if err := txn.Set(e.primaryKey(id), data); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}

		return e.writeIndexKeys(txn, id, entity)
	})
}

// Delete deletes an entity by ID.
// This operation is idempotent - it does not return an error if the entity does not exist.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		var entity T
		item, err := txn.Get(e.primaryKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			// Idempotent - no error if doesn't exist
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get key: %w", err)
		}

		err = item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &entity); err != nil {
				return fmt.Errorf("failed to unmarshal entity: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		if err := e.deleteIndexKeys(txn, id, &entity); err != nil {
			return err
		}

		if err := txn.Delete(e.primaryKey(id)); err != nil {
			return fmt.Errorf("failed to delete key: %w", err)
		}

		return nil
	})
}

// writeIndexKeys writes all unique and lookup index keys for an entity.
func (e *Entity[T]) writeIndexKeys(txn *badger.Txn, id string, entity *T) error {
	for _, idx := range e.uniqueIndexes {
		for _, indexKey := range idx.keyGen(entity) {
			if err := txn.Set(e.uniqueKey(idx.name, indexKey), []byte(id)); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
	}
	for _, idx := range e.lookupIndexes {
		for _, indexKey := range idx.keyGen(entity) {
			if err := txn.Set(e.lookupKey(idx.name, indexKey, id), []byte{}); err != nil {
				return fmt.Errorf("failed to set lookup key: %w", err)
			}
		}
	}
	return nil
}

// deleteIndexKeys removes all unique and lookup index keys for an entity.
func (e *Entity[T]) deleteIndexKeys(txn *badger.Txn, id string, entity *T) error {
	for _, idx := range e.uniqueIndexes {
		for _, indexKey := range idx.keyGen(entity) {
			if err := txn.Delete(e.uniqueKey(idx.name, indexKey)); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}
	for _, idx := range e.lookupIndexes {
		for _, indexKey := range idx.keyGen(entity) {
			if err := txn.Delete(e.lookupKey(idx.name, indexKey, id)); err != nil {
				return fmt.Errorf("failed to delete lookup key: %w", err)
			}
		}
	}
	return nil
}

// ListByIndex returns all entities whose lookup index entry matches value.
// Results follow the key order of the index (entity ID order within a key).
func (e *Entity[T]) ListByIndex(ctx context.Context, indexName, value string) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(e.prefix + "ref:" + indexName + ":" + value + ":")
	var ids []string

	err := e.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, strings.TrimPrefix(key, string(prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entities := make([]*T, 0, len(ids))
	for _, entityID := range ids {
		entity, err := e.Get(ctx, entityID)
		if errors.Is(err, ErrNotFound) {
			continue // Index raced a delete, skip.
		}
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}

	return entities, nil
}

// List returns an iterator over all entities.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(e.prefix)
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek([]byte(e.prefix)); it.ValidForPrefix([]byte(e.prefix)); it.Next() {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return ctx.Err()
				}

				// Skip index keys
				key := string(it.Item().Key())
				remainder := key[len(e.prefix):]
				if strings.HasPrefix(remainder, "idx:") || strings.HasPrefix(remainder, "ref:") {
					continue
				}

				var entity T
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				})

				if err != nil {
					yield(nil, err)
					return err
				}

				if !yield(&entity, nil) {
					return nil // Consumer stopped early
				}
			}

			return nil
		})
	}
}
