package cache

import (
	"context"
	"log/slog"
	stdsync "sync"

	"github.com/stowawayapp/stowaway-server/internal/domain"
	"github.com/stowawayapp/stowaway-server/internal/sync"
)

// Session is one user's live view of their rows: a RowStore subscribed
// to the sync engine, a graph rebuilt on every delivery, and a Mutator
// for submitting changes. Sessions are constructed explicitly and
// passed to whoever needs them; there is no ambient global cache.
type Session struct {
	userID  string
	rows    *RowStore
	mutator *Mutator
	cancel  func()

	mu    stdsync.RWMutex
	graph *Graph
}

// NewSession creates a session for userID and primes it with the
// current row snapshot. An empty userID yields a session whose queries
// all return empty results. Close releases the engine subscription.
func NewSession(ctx context.Context, userID string, engine *sync.Engine) (*Session, error) {
	s := &Session{
		userID: userID,
		rows:   NewRowStore(),
		graph:  NewGraph(),
	}
	s.rows.Subscribe(s.rebuild)
	s.mutator = NewMutator(s, engine)

	cancel, err := engine.Subscribe(ctx, userID, s.rows.Apply)
	if err != nil {
		return nil, err
	}
	s.cancel = cancel
	return s, nil
}

// UserID returns the user this session belongs to.
func (s *Session) UserID() string { return s.userID }

// Rows returns the session's row store.
func (s *Session) Rows() *RowStore { return s.rows }

// Mutate returns the session's mutation facade.
func (s *Session) Mutate() *Mutator { return s.mutator }

// Graph returns the current materialized graph. The returned graph is
// immutable; a later rebuild swaps in a fresh one.
func (s *Session) Graph() *Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

// Close releases the session's engine subscription.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// rebuild materializes a fresh graph from the current row snapshot.
// Runs after every row delivery, on the delivering goroutine.
func (s *Session) rebuild() {
	rows := s.rows.Snapshot()
	graph := BuildGraph(rows.Containers, rows.Tags)

	s.mu.Lock()
	s.graph = graph
	s.mu.Unlock()
}

// RootContainers returns the session user's root containers.
func (s *Session) RootContainers() []*Node {
	return RootContainers(s.Graph())
}

// ContainerByID returns the node for id, or nil.
func (s *Session) ContainerByID(id string) *Node {
	return ContainerByID(s.Graph(), id)
}

// Breadcrumbs returns the root-first trail to id.
func (s *Session) Breadcrumbs(id string) []*Node {
	return Breadcrumbs(s.Graph(), id)
}

// FavoriteContainers returns the nodes for the user's favorites,
// dropping favorites whose container no longer exists.
func (s *Session) FavoriteContainers() []*Node {
	return FavoriteContainers(s.Graph(), s.rows.Favorites())
}

// Favorites returns the user's favorite rows.
func (s *Session) Favorites() []*domain.Favorite {
	return s.rows.Favorites()
}

// MoveDestinations returns the filtered forest of valid move targets
// for the given container.
func (s *Session) MoveDestinations(excludeID string) []*Destination {
	return MoveDestinations(s.Graph(), excludeID)
}

// Images returns the image rows for one container in stored order.
func (s *Session) Images(containerID string) []*domain.Image {
	images := make([]*domain.Image, 0)
	for _, img := range s.rows.Images() {
		if img.ContainerID == containerID {
			images = append(images, img)
		}
	}
	return images
}

// Registry hands out one session per user, created on first use.
type Registry struct {
	engine *sync.Engine
	logger *slog.Logger

	mu       stdsync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a session registry over the engine.
func NewRegistry(engine *sync.Engine, logger *slog.Logger) *Registry {
	return &Registry{
		engine:   engine,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Session returns the user's session, creating and priming it on first
// access.
func (r *Registry) Session(ctx context.Context, userID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[userID]; ok {
		return s, nil
	}

	s, err := NewSession(ctx, userID, r.engine)
	if err != nil {
		return nil, err
	}
	r.sessions[userID] = s

	r.logger.Debug("session created",
		slog.String("user_id", userID),
		slog.Int("containers", s.Graph().Len()))
	return s, nil
}

// Close releases every session's subscription.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, s := range r.sessions {
		s.Close()
		delete(r.sessions, userID)
	}
}
