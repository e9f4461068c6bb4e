package sync

import (
	"github.com/stowawayapp/stowaway-server/internal/domain"
)

// Kind identifies a synced row collection.
type Kind string

const (
	KindContainer Kind = "containers"
	KindTag       Kind = "tags"
	KindImage     Kind = "images"
	KindFavorite  Kind = "favorites"
)

// OpType identifies a row operation.
type OpType string

const (
	OpInsert OpType = "insert"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// Op is a single row operation submitted to the engine. Ops are built
// through the constructors below so every op carries the fields its
// kind and type require.
type Op struct {
	kind  Kind
	typ   OpType
	id    string
	row   any
	moved bool
}

// Kind returns the row collection this op targets.
func (o Op) Kind() Kind { return o.kind }

// Type returns the operation type.
func (o Op) Type() OpType { return o.typ }

// RowID returns the ID of the affected row.
func (o Op) RowID() string { return o.id }

// InsertContainer creates an op inserting a container row.
func InsertContainer(c *domain.Container) Op {
	return Op{kind: KindContainer, typ: OpInsert, id: c.ID, row: c}
}

// UpdateContainer creates an op replacing a container row.
func UpdateContainer(c *domain.Container) Op {
	return Op{kind: KindContainer, typ: OpUpdate, id: c.ID, row: c}
}

// MoveContainer creates an op replacing a container row after a
// reparent. It behaves like UpdateContainer but announces itself as a
// move to remote clients.
func MoveContainer(c *domain.Container) Op {
	return Op{kind: KindContainer, typ: OpUpdate, id: c.ID, row: c, moved: true}
}

// DeleteContainer creates an op removing a container row.
func DeleteContainer(containerID string) Op {
	return Op{kind: KindContainer, typ: OpDelete, id: containerID}
}

// InsertTag creates an op inserting a tag row.
func InsertTag(tag *domain.Tag) Op {
	return Op{kind: KindTag, typ: OpInsert, id: tag.ID, row: tag}
}

// DeleteTag creates an op removing a tag row.
func DeleteTag(tagID string) Op {
	return Op{kind: KindTag, typ: OpDelete, id: tagID}
}

// InsertImage creates an op inserting an image row.
func InsertImage(img *domain.Image) Op {
	return Op{kind: KindImage, typ: OpInsert, id: img.ID, row: img}
}

// DeleteImage creates an op removing an image row.
func DeleteImage(imageID string) Op {
	return Op{kind: KindImage, typ: OpDelete, id: imageID}
}

// InsertFavorite creates an op inserting a favorite row.
func InsertFavorite(fav *domain.Favorite) Op {
	return Op{kind: KindFavorite, typ: OpInsert, id: fav.ID, row: fav}
}

// DeleteFavorite creates an op removing a favorite row.
func DeleteFavorite(favoriteID string) Op {
	return Op{kind: KindFavorite, typ: OpDelete, id: favoriteID}
}
