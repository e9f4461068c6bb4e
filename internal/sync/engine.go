// Package sync applies submitted row operations to the store in order
// and redelivers the resulting row sets to live subscribers. It is the
// boundary between client sessions and durable storage: sessions never
// touch Badger directly, they submit ops and receive rows back.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	stdsync "sync"

	"github.com/stowawayapp/stowaway-server/internal/domain"
	"github.com/stowawayapp/stowaway-server/internal/id"
	"github.com/stowawayapp/stowaway-server/internal/sse"
	"github.com/stowawayapp/stowaway-server/internal/store"
)

// EventEmitter broadcasts change events to remote clients.
// Implemented by sse.Manager.
type EventEmitter interface {
	Emit(event any)
}

// Rows is the full synced row set for one user: their containers, the
// tags and images attached to those containers, and their favorites.
// Subscribers always receive complete sets, never diffs.
type Rows struct {
	Containers []*domain.Container
	Tags       []*domain.Tag
	Images     []*domain.Image
	Favorites  []*domain.Favorite
}

type subscription struct {
	id     string
	userID string
	fn     func(Rows)
}

// Engine serializes row submissions against the store and notifies
// subscribers after each applied batch.
type Engine struct {
	store   *store.Store
	emitter EventEmitter
	logger  *slog.Logger

	// mu serializes Submit. Ops within a batch and across batches are
	// applied in submission order, matching what clients observe.
	mu stdsync.Mutex

	subMu stdsync.RWMutex
	subs  map[string]*subscription
}

// NewEngine creates an Engine over the given store.
func NewEngine(st *store.Store, logger *slog.Logger) *Engine {
	return &Engine{
		store:  st,
		logger: logger,
		subs:   make(map[string]*subscription),
	}
}

// SetEmitter sets the remote-client event emitter. Optional; without
// one the engine still applies ops and notifies local subscribers.
func (e *Engine) SetEmitter(emitter EventEmitter) {
	e.emitter = emitter
}

// Submit applies ops to the store in order. On the first failing op it
// stops and returns the error; ops applied before the failure stay
// applied and are still delivered to subscribers. There is no rollback.
func (e *Engine) Submit(ctx context.Context, ops ...Op) error {
	if len(ops) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	affected := make(map[string]struct{})
	events := make([]sse.Event, 0, len(ops))

	var submitErr error
	for _, op := range ops {
		userID, event, err := e.applyOp(ctx, op)
		if err != nil {
			submitErr = fmt.Errorf("apply %s %s %s: %w", op.typ, op.kind, op.id, err)
			break
		}
		if userID != "" {
			affected[userID] = struct{}{}
		}
		events = append(events, event)
	}

	// Applied ops are visible regardless of a later failure, so
	// subscribers and remote clients hear about them either way.
	e.notify(ctx, affected)

	if e.emitter != nil {
		for _, event := range events {
			e.emitter.Emit(event)
		}
	}

	return submitErr
}

// Subscribe registers fn to receive the user's full row set after every
// submission that touches that user's rows. The current snapshot is
// delivered synchronously before Subscribe returns. The returned cancel
// func removes the subscription.
func (e *Engine) Subscribe(ctx context.Context, userID string, fn func(Rows)) (func(), error) {
	subID, err := id.Generate("sub")
	if err != nil {
		return nil, err
	}

	rows, err := e.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub := &subscription{id: subID, userID: userID, fn: fn}

	e.subMu.Lock()
	e.subs[subID] = sub
	e.subMu.Unlock()

	fn(rows)

	cancel := func() {
		e.subMu.Lock()
		delete(e.subs, subID)
		e.subMu.Unlock()
	}
	return cancel, nil
}

// Snapshot loads the full synced row set for one user. A user with no
// rows (or an unknown user) gets empty sets, not an error.
func (e *Engine) Snapshot(ctx context.Context, userID string) (Rows, error) {
	containers, err := e.store.Containers.ListByIndex(ctx, "user", userID)
	if err != nil {
		return Rows{}, fmt.Errorf("snapshot containers: %w", err)
	}

	favorites, err := e.store.Favorites.ListByIndex(ctx, "user", userID)
	if err != nil {
		return Rows{}, fmt.Errorf("snapshot favorites: %w", err)
	}

	rows := Rows{
		Containers: containers,
		Tags:       make([]*domain.Tag, 0),
		Images:     make([]*domain.Image, 0),
		Favorites:  favorites,
	}

	for _, c := range containers {
		tags, err := e.store.Tags.ListByIndex(ctx, "container", c.ID)
		if err != nil {
			return Rows{}, fmt.Errorf("snapshot tags for %s: %w", c.ID, err)
		}
		rows.Tags = append(rows.Tags, tags...)

		images, err := e.store.Images.ListByIndex(ctx, "container", c.ID)
		if err != nil {
			return Rows{}, fmt.Errorf("snapshot images for %s: %w", c.ID, err)
		}
		rows.Images = append(rows.Images, images...)
	}

	return rows, nil
}

// applyOp applies one op and returns the owning user's ID plus the
// change event to broadcast.
func (e *Engine) applyOp(ctx context.Context, op Op) (string, sse.Event, error) {
	switch op.kind {
	case KindContainer:
		return e.applyContainerOp(ctx, op)
	case KindTag:
		return e.applyTagOp(ctx, op)
	case KindImage:
		return e.applyImageOp(ctx, op)
	case KindFavorite:
		return e.applyFavoriteOp(ctx, op)
	default:
		return "", sse.Event{}, fmt.Errorf("unknown kind %q", op.kind)
	}
}

func (e *Engine) applyContainerOp(ctx context.Context, op Op) (string, sse.Event, error) {
	switch op.typ {
	case OpInsert:
		c, ok := op.row.(*domain.Container)
		if !ok {
			return "", sse.Event{}, fmt.Errorf("container op with %T row", op.row)
		}
		if err := e.store.Containers.Create(ctx, c.ID, c); err != nil {
			return "", sse.Event{}, err
		}
		return c.UserID, sse.NewContainerCreatedEvent(c), nil

	case OpUpdate:
		c, ok := op.row.(*domain.Container)
		if !ok {
			return "", sse.Event{}, fmt.Errorf("container op with %T row", op.row)
		}
		if err := e.store.Containers.Update(ctx, c.ID, c); err != nil {
			return "", sse.Event{}, err
		}
		if op.moved {
			return c.UserID, sse.NewContainerMovedEvent(c), nil
		}
		return c.UserID, sse.NewContainerUpdatedEvent(c), nil

	case OpDelete:
		c, err := e.store.Containers.Get(ctx, op.id)
		if err != nil {
			return "", sse.Event{}, err
		}
		if err := e.store.Containers.Delete(ctx, op.id); err != nil {
			return "", sse.Event{}, err
		}
		return c.UserID, sse.NewContainerDeletedEvent(c.UserID, c.ID, nil), nil

	default:
		return "", sse.Event{}, fmt.Errorf("unknown op type %q", op.typ)
	}
}

func (e *Engine) applyTagOp(ctx context.Context, op Op) (string, sse.Event, error) {
	switch op.typ {
	case OpInsert:
		tag, ok := op.row.(*domain.Tag)
		if !ok {
			return "", sse.Event{}, fmt.Errorf("tag op with %T row", op.row)
		}
		if err := e.store.Tags.Create(ctx, tag.ID, tag); err != nil {
			return "", sse.Event{}, err
		}
		userID := e.containerOwner(ctx, tag.ContainerID)
		return userID, sse.NewTagCreatedEvent(userID, tag), nil

	case OpDelete:
		tag, err := e.store.Tags.Get(ctx, op.id)
		if err != nil {
			return "", sse.Event{}, err
		}
		if err := e.store.Tags.Delete(ctx, op.id); err != nil {
			return "", sse.Event{}, err
		}
		userID := e.containerOwner(ctx, tag.ContainerID)
		return userID, sse.NewTagDeletedEvent(userID, tag), nil

	default:
		return "", sse.Event{}, fmt.Errorf("unknown op type %q for tags", op.typ)
	}
}

func (e *Engine) applyImageOp(ctx context.Context, op Op) (string, sse.Event, error) {
	switch op.typ {
	case OpInsert:
		img, ok := op.row.(*domain.Image)
		if !ok {
			return "", sse.Event{}, fmt.Errorf("image op with %T row", op.row)
		}
		if err := e.store.Images.Create(ctx, img.ID, img); err != nil {
			return "", sse.Event{}, err
		}
		userID := e.containerOwner(ctx, img.ContainerID)
		return userID, sse.NewImageCreatedEvent(userID, img), nil

	case OpDelete:
		img, err := e.store.Images.Get(ctx, op.id)
		if err != nil {
			return "", sse.Event{}, err
		}
		if err := e.store.Images.Delete(ctx, op.id); err != nil {
			return "", sse.Event{}, err
		}
		userID := e.containerOwner(ctx, img.ContainerID)
		return userID, sse.NewImageDeletedEvent(userID, img), nil

	default:
		return "", sse.Event{}, fmt.Errorf("unknown op type %q for images", op.typ)
	}
}

func (e *Engine) applyFavoriteOp(ctx context.Context, op Op) (string, sse.Event, error) {
	switch op.typ {
	case OpInsert:
		fav, ok := op.row.(*domain.Favorite)
		if !ok {
			return "", sse.Event{}, fmt.Errorf("favorite op with %T row", op.row)
		}
		if err := e.store.Favorites.Create(ctx, fav.ID, fav); err != nil {
			return "", sse.Event{}, err
		}
		return fav.UserID, sse.NewFavoriteCreatedEvent(fav), nil

	case OpDelete:
		fav, err := e.store.Favorites.Get(ctx, op.id)
		if err != nil {
			return "", sse.Event{}, err
		}
		if err := e.store.Favorites.Delete(ctx, op.id); err != nil {
			return "", sse.Event{}, err
		}
		return fav.UserID, sse.NewFavoriteDeletedEvent(fav), nil

	default:
		return "", sse.Event{}, fmt.Errorf("unknown op type %q for favorites", op.typ)
	}
}

// containerOwner resolves a container's owning user for event scoping.
// Returns "" when the container is gone, which broadcasts the event.
func (e *Engine) containerOwner(ctx context.Context, containerID string) string {
	c, err := e.store.Containers.Get(ctx, containerID)
	if err != nil {
		return ""
	}
	return c.UserID
}

// notify redelivers full row sets to subscribers of the affected users.
// Delivery is synchronous on the submitting goroutine, so a subscriber
// sees the new rows before Submit returns.
func (e *Engine) notify(ctx context.Context, users map[string]struct{}) {
	if len(users) == 0 {
		return
	}

	e.subMu.RLock()
	matched := make([]*subscription, 0, len(e.subs))
	for _, sub := range e.subs {
		if _, ok := users[sub.userID]; ok {
			matched = append(matched, sub)
		}
	}
	e.subMu.RUnlock()

	if len(matched) == 0 {
		return
	}

	snapshots := make(map[string]Rows, len(users))
	for _, sub := range matched {
		rows, ok := snapshots[sub.userID]
		if !ok {
			var err error
			rows, err = e.Snapshot(ctx, sub.userID)
			if err != nil {
				e.logger.Error("failed to snapshot rows for subscriber",
					slog.String("user_id", sub.userID),
					slog.String("error", err.Error()))
				continue
			}
			snapshots[sub.userID] = rows
		}
		sub.fn(rows)
	}
}
