package cache

import (
	"context"
	"strings"
	"time"

	"github.com/stowawayapp/stowaway-server/internal/domain"
	apperrors "github.com/stowawayapp/stowaway-server/internal/errors"
	"github.com/stowawayapp/stowaway-server/internal/id"
	"github.com/stowawayapp/stowaway-server/internal/sync"
)

// Submitter accepts ordered row operations. Implemented by sync.Engine.
type Submitter interface {
	Submit(ctx context.Context, ops ...sync.Op) error
}

// Mutator is the only path by which user intent becomes row
// submissions. It reads the session's materialized graph to expand
// multi-row mutations (cascades, reparents, tag replacement) into
// ordered op batches. Submissions apply in order with no rollback: a
// failure partway through a cascade leaves the completed steps applied,
// recoverable by retry.
type Mutator struct {
	session *Session
	submit  Submitter
}

// NewMutator creates a Mutator bound to a session and a submitter.
func NewMutator(session *Session, submit Submitter) *Mutator {
	return &Mutator{session: session, submit: submit}
}

// CreateContainerInput carries the fields for a new container.
type CreateContainerInput struct {
	Name        string
	Description string
	Code        string
	IsItem      bool
	ParentID    string
	Tags        []string
}

// CreateContainer inserts one container row plus one tag row per
// non-blank tag name, in list order.
func (m *Mutator) CreateContainer(ctx context.Context, in CreateContainerInput) (*domain.Container, error) {
	containerID, err := id.Generate(id.PrefixContainer)
	if err != nil {
		return nil, err
	}

	c := &domain.Container{
		Name:        in.Name,
		Description: in.Description,
		Code:        in.Code,
		IsItem:      in.IsItem,
		UserID:      m.session.UserID(),
		ParentID:    in.ParentID,
	}
	c.ID = containerID
	c.InitTimestamps()

	ops := []sync.Op{sync.InsertContainer(c)}
	for _, name := range in.Tags {
		if strings.TrimSpace(name) == "" {
			continue
		}
		tagID, err := id.Generate(id.PrefixTag)
		if err != nil {
			return nil, err
		}
		ops = append(ops, sync.InsertTag(&domain.Tag{
			ID:          tagID,
			Name:        name,
			ContainerID: containerID,
		}))
	}

	if err := m.submit.Submit(ctx, ops...); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateContainerInput patches a container. Nil fields are untouched.
type UpdateContainerInput struct {
	Name        *string
	Description *string
	Code        *string
}

// UpdateContainer patches only the provided fields and refreshes the
// container's updated timestamp.
func (m *Mutator) UpdateContainer(ctx context.Context, containerID string, in UpdateContainerInput) (*domain.Container, error) {
	node := m.session.Graph().Node(containerID)
	if node == nil {
		return nil, apperrors.NotFound("container not found")
	}

	updated := *node.Container
	if in.Name != nil {
		updated.Name = *in.Name
	}
	if in.Description != nil {
		updated.Description = *in.Description
	}
	if in.Code != nil {
		updated.Code = *in.Code
	}
	updated.Touch()

	if err := m.submit.Submit(ctx, sync.UpdateContainer(&updated)); err != nil {
		return nil, err
	}
	return &updated, nil
}

// ValidateMove checks the acyclicity invariant for moving containerID
// under newParentID. Empty newParentID means "to root" and is always
// valid for an existing container.
func (m *Mutator) ValidateMove(containerID, newParentID string) error {
	graph := m.session.Graph()
	if graph.Node(containerID) == nil {
		return apperrors.NotFound("container not found")
	}
	if newParentID == "" {
		return nil
	}
	if newParentID == containerID {
		return apperrors.Validation("a container cannot be moved into itself")
	}
	if graph.Node(newParentID) == nil {
		return apperrors.NotFound("destination container not found")
	}
	for _, descendantID := range graph.Subtree(containerID) {
		if descendantID == newParentID {
			return apperrors.Validation("a container cannot be moved into its own descendant")
		}
	}
	return nil
}

// MoveContainer reparents a container, empty newParentID moving it to
// the root. The move is validated against the acyclicity invariant
// before submission.
func (m *Mutator) MoveContainer(ctx context.Context, containerID, newParentID string) (*domain.Container, error) {
	if err := m.ValidateMove(containerID, newParentID); err != nil {
		return nil, err
	}

	node := m.session.Graph().Node(containerID)
	moved := *node.Container
	moved.ParentID = newParentID
	moved.Touch()

	if err := m.submit.Submit(ctx, sync.MoveContainer(&moved)); err != nil {
		return nil, err
	}
	return &moved, nil
}

// DeleteContainer removes a container. With deleteContents the entire
// subtree goes: every descendant's tags, images and favorites, then the
// descendant containers children-first, then this container's own
// dependents and finally the container itself. Without deleteContents
// each direct child is reparented to this container's former parent in
// an explicit per-child update, then only this container and its own
// dependents are removed.
func (m *Mutator) DeleteContainer(ctx context.Context, containerID string, deleteContents bool) error {
	graph := m.session.Graph()
	node := graph.Node(containerID)
	if node == nil {
		return apperrors.NotFound("container not found")
	}

	rows := m.session.Rows().Snapshot()
	tagsByContainer := make(map[string][]*domain.Tag)
	for _, tag := range rows.Tags {
		tagsByContainer[tag.ContainerID] = append(tagsByContainer[tag.ContainerID], tag)
	}
	imagesByContainer := make(map[string][]*domain.Image)
	for _, img := range rows.Images {
		imagesByContainer[img.ContainerID] = append(imagesByContainer[img.ContainerID], img)
	}
	favoritesByContainer := make(map[string][]*domain.Favorite)
	for _, fav := range rows.Favorites {
		favoritesByContainer[fav.ContainerID] = append(favoritesByContainer[fav.ContainerID], fav)
	}

	var ops []sync.Op
	dependents := func(cid string) {
		for _, tag := range tagsByContainer[cid] {
			ops = append(ops, sync.DeleteTag(tag.ID))
		}
		for _, img := range imagesByContainer[cid] {
			ops = append(ops, sync.DeleteImage(img.ID))
		}
		for _, fav := range favoritesByContainer[cid] {
			ops = append(ops, sync.DeleteFavorite(fav.ID))
		}
	}

	if deleteContents {
		// Subtree returns parents first; delete children first so no
		// applied prefix ever references a missing parent row.
		ids := graph.Subtree(containerID)
		for i := len(ids) - 1; i >= 0; i-- {
			dependents(ids[i])
			ops = append(ops, sync.DeleteContainer(ids[i]))
		}
	} else {
		former := node.Container.ParentID
		for _, child := range node.Children {
			moved := *child.Container
			moved.ParentID = former
			moved.Touch()
			ops = append(ops, sync.MoveContainer(&moved))
		}
		dependents(containerID)
		ops = append(ops, sync.DeleteContainer(containerID))
	}

	return m.submit.Submit(ctx, ops...)
}

// CreateTag inserts a single tag row on a container.
func (m *Mutator) CreateTag(ctx context.Context, containerID, name string) (*domain.Tag, error) {
	tagID, err := id.Generate(id.PrefixTag)
	if err != nil {
		return nil, err
	}
	tag := &domain.Tag{ID: tagID, Name: name, ContainerID: containerID}
	if err := m.submit.Submit(ctx, sync.InsertTag(tag)); err != nil {
		return nil, err
	}
	return tag, nil
}

// DeleteTag removes a single tag row.
func (m *Mutator) DeleteTag(ctx context.Context, tagID string) error {
	return m.submit.Submit(ctx, sync.DeleteTag(tagID))
}

// UpdateContainerTags replaces a container's tags wholesale: every
// existing tag row is deleted, then one row per non-blank name is
// inserted in list order. The two phases are one ordered batch, not a
// transaction; a failure can leave an incomplete tag set, acceptable
// because tags are non-authoritative metadata.
func (m *Mutator) UpdateContainerTags(ctx context.Context, containerID string, names []string) error {
	if m.session.Graph().Node(containerID) == nil {
		return apperrors.NotFound("container not found")
	}

	var ops []sync.Op
	for _, tag := range m.session.Rows().Tags() {
		if tag.ContainerID == containerID {
			ops = append(ops, sync.DeleteTag(tag.ID))
		}
	}
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		tagID, err := id.Generate(id.PrefixTag)
		if err != nil {
			return err
		}
		ops = append(ops, sync.InsertTag(&domain.Tag{
			ID:          tagID,
			Name:        name,
			ContainerID: containerID,
		}))
	}

	return m.submit.Submit(ctx, ops...)
}

// CreateImageInput carries the stored-file metadata for a new image
// row, as produced by the image processing pipeline.
type CreateImageInput struct {
	ContainerID string
	Filename    string
	Filepath    string
	MimeType    string
	Size        int64
	Width       int
	Height      int
	BlurHash    string
}

// CreateImage inserts an image row appended at the end of the
// container's display sequence.
func (m *Mutator) CreateImage(ctx context.Context, in CreateImageInput) (*domain.Image, error) {
	if m.session.Graph().Node(in.ContainerID) == nil {
		return nil, apperrors.NotFound("container not found")
	}

	imageID, err := id.Generate(id.PrefixImage)
	if err != nil {
		return nil, err
	}

	img := &domain.Image{
		Filename:    in.Filename,
		Filepath:    in.Filepath,
		MimeType:    in.MimeType,
		Size:        in.Size,
		Width:       in.Width,
		Height:      in.Height,
		BlurHash:    in.BlurHash,
		ContainerID: in.ContainerID,
		SortOrder:   m.NextImageSortOrder(in.ContainerID),
	}
	img.ID = imageID
	img.InitTimestamps()

	if err := m.submit.Submit(ctx, sync.InsertImage(img)); err != nil {
		return nil, err
	}
	return img, nil
}

// DeleteImage removes an image row and returns it so the caller can
// clean up the stored file.
func (m *Mutator) DeleteImage(ctx context.Context, imageID string) (*domain.Image, error) {
	var img *domain.Image
	for _, candidate := range m.session.Rows().Images() {
		if candidate.ID == imageID {
			img = candidate
			break
		}
	}
	if img == nil {
		return nil, apperrors.NotFound("image not found")
	}

	if err := m.submit.Submit(ctx, sync.DeleteImage(imageID)); err != nil {
		return nil, err
	}
	return img, nil
}

// NextImageSortOrder returns max(order)+1 over the container's current
// images, or 0 for the first image.
func (m *Mutator) NextImageSortOrder(containerID string) int {
	next := 0
	for _, img := range m.session.Rows().Images() {
		if img.ContainerID == containerID && img.SortOrder >= next {
			next = img.SortOrder + 1
		}
	}
	return next
}

// ToggleFavorite flips the favorite state of a container for the
// session user. Returns true when the container is now favorited.
func (m *Mutator) ToggleFavorite(ctx context.Context, containerID string) (bool, error) {
	if m.session.Graph().Node(containerID) == nil {
		return false, apperrors.NotFound("container not found")
	}

	for _, fav := range m.session.Rows().Favorites() {
		if fav.ContainerID == containerID {
			if err := m.submit.Submit(ctx, sync.DeleteFavorite(fav.ID)); err != nil {
				return true, err
			}
			return false, nil
		}
	}

	favID, err := id.Generate(id.PrefixFavorite)
	if err != nil {
		return false, err
	}
	fav := &domain.Favorite{
		ID:          favID,
		UserID:      m.session.UserID(),
		ContainerID: containerID,
		CreatedAt:   time.Now(),
	}
	if err := m.submit.Submit(ctx, sync.InsertFavorite(fav)); err != nil {
		return false, err
	}
	return true, nil
}
