package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/stowawayapp/stowaway-server/internal/cache"
	"github.com/stowawayapp/stowaway-server/internal/config"
	"github.com/stowawayapp/stowaway-server/internal/logger"
	"github.com/stowawayapp/stowaway-server/internal/sse"
	"github.com/stowawayapp/stowaway-server/internal/store"
	"github.com/stowawayapp/stowaway-server/internal/sync"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the database store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := filepath.Join(cfg.Data.BasePath, "db")
	db, err := store.New(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}

// SyncEngineHandle wraps the sync engine for DI.
type SyncEngineHandle struct {
	*sync.Engine
}

// ProvideSyncEngine provides the row sync engine, wired to emit SSE events.
func ProvideSyncEngine(i do.Injector) (*SyncEngineHandle, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	engine := sync.NewEngine(storeHandle.Store, log.Logger)
	engine.SetEmitter(sseHandle.Manager)

	return &SyncEngineHandle{Engine: engine}, nil
}

// SessionRegistryHandle wraps the per-user session registry.
type SessionRegistryHandle struct {
	*cache.Registry
}

// Shutdown implements do.Shutdownable.
func (h *SessionRegistryHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideSessionRegistry provides the per-user cache session registry.
func ProvideSessionRegistry(i do.Injector) (*SessionRegistryHandle, error) {
	engineHandle := do.MustInvoke[*SyncEngineHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return &SessionRegistryHandle{Registry: cache.NewRegistry(engineHandle.Engine, log.Logger)}, nil
}
