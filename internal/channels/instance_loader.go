package channels

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/whatsdex/gateway/internal/event"
	"github.com/whatsdex/gateway/internal/store"
)

// AdapterFactory builds an adapter from a persisted channel instance.
// Credentials and Config arrive as the instance's raw JSON.
type AdapterFactory func(inst *store.ChannelInstance) (Adapter, error)

// InstanceLoader loads enabled channel instances from the store, builds
// adapters through per-type factories, and registers them. LoadAll at
// startup, Reload on configuration change.
type InstanceLoader struct {
	store     store.ChannelInstanceStore
	registry  *Registry
	factories map[string]AdapterFactory
	handler   event.Handler

	mu     sync.Mutex
	loaded map[string]string // registry key -> instance row ID
}

// NewInstanceLoader creates a loader. The handler is wired into every
// adapter the loader builds; it is the single inbound entry point.
func NewInstanceLoader(s store.ChannelInstanceStore, registry *Registry, handler event.Handler) *InstanceLoader {
	return &InstanceLoader{
		store:     s,
		registry:  registry,
		factories: make(map[string]AdapterFactory),
		handler:   handler,
		loaded:    make(map[string]string),
	}
}

// RegisterFactory registers a factory for a channel type. Call before
// LoadAll; factories are not guarded for concurrent mutation.
func (l *InstanceLoader) RegisterFactory(channelType string, factory AdapterFactory) {
	l.factories[channelType] = factory
}

// LoadAll builds and registers adapters for every enabled instance, then
// connects them. An instance that fails to load or connect is skipped,
// never fatal: one tenant's bad token must not take down the rest.
func (l *InstanceLoader) LoadAll(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	instances, err := l.store.ListEnabled(ctx)
	if err != nil {
		return err
	}

	connected := 0
	for _, inst := range instances {
		if err := l.loadInstance(ctx, inst); err != nil {
			slog.Error("channel instance load failed",
				"name", inst.Name, "type", inst.ChannelType, "tenant_id", inst.TenantID, "error", err)
			continue
		}
		connected++
	}

	if connected > 0 {
		slog.Info("channel instances loaded", "count", connected)
	}
	return nil
}

// Reload disconnects all managed adapters and rebuilds from the store.
func (l *InstanceLoader) Reload(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopLocked(ctx)

	// Let external APIs (Telegram getUpdates) release their locks before
	// the replacement adapters dial in.
	time.Sleep(500 * time.Millisecond)

	instances, err := l.store.ListEnabled(ctx)
	if err != nil {
		slog.Error("channel instance reload failed", "error", err)
		return
	}

	connected := 0
	for _, inst := range instances {
		if err := l.loadInstance(ctx, inst); err != nil {
			slog.Error("channel instance reload failed",
				"name", inst.Name, "type", inst.ChannelType, "error", err)
			continue
		}
		connected++
	}
	slog.Info("channel instances reloaded", "count", connected)
}

// Stop disconnects and unregisters every managed adapter.
func (l *InstanceLoader) Stop(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked(ctx)
}

func (l *InstanceLoader) stopLocked(ctx context.Context) {
	for key, rowID := range l.loaded {
		if a, ok := l.registry.Get(key); ok {
			if err := a.Disconnect(ctx); err != nil {
				slog.Warn("channel instance disconnect failed", "key", key, "error", err)
			}
			l.setStatus(ctx, a.TenantID(), rowID, string(StateDisconnected))
		}
		l.registry.Unregister(key)
	}
	l.loaded = make(map[string]string)
}

// loadInstance builds, registers, and connects one adapter. Caller holds
// the loader lock.
func (l *InstanceLoader) loadInstance(ctx context.Context, inst *store.ChannelInstance) error {
	factory, ok := l.factories[inst.ChannelType]
	if !ok {
		slog.Warn("no factory for channel type", "type", inst.ChannelType, "name", inst.Name)
		return nil
	}

	a, err := factory(inst)
	if err != nil {
		return err
	}
	if a == nil {
		slog.Info("channel instance not ready (missing credentials)",
			"name", inst.Name, "type", inst.ChannelType)
		return nil
	}

	if err := a.Initialize(); err != nil {
		return err
	}
	a.OnMessage(l.handler)

	l.registry.Register(a)
	l.loaded[a.InstanceID()] = inst.ID

	l.setStatus(ctx, inst.TenantID, inst.ID, string(StateConnecting))
	if err := a.Connect(ctx); err != nil {
		l.setStatus(ctx, inst.TenantID, inst.ID, string(StateDisconnected))
		// Registered but down. Reload can revive it later.
		return err
	}
	l.setStatus(ctx, inst.TenantID, inst.ID, string(StateConnected))

	slog.Info("channel instance connected",
		"name", inst.Name, "type", inst.ChannelType, "tenant_id", inst.TenantID, "key", a.InstanceID())
	return nil
}

// setStatus mirrors the adapter state onto the instance row. Failures
// are logged only; status is advisory, not load-bearing.
func (l *InstanceLoader) setStatus(ctx context.Context, tenantID, rowID, status string) {
	if err := l.store.UpdateStatus(ctx, tenantID, rowID, status); err != nil {
		slog.Warn("instance status update failed", "id", rowID, "status", status, "error", err)
	}
}
