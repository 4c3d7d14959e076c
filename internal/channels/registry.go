package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Registry is the process-wide table mapping an instance key to a live
// adapter. It is a pure lookup structure: registration and lookup race
// across concurrently-connecting adapters, so the internal map sits
// behind a single RWMutex. The registry holds no tenant logic.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry. Construct once at
// process start and pass by reference to everything that needs it.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its own instance ID.
func (r *Registry) Register(a Adapter) {
	r.RegisterAs(a.InstanceID(), a)
}

// RegisterAs adds an adapter under an explicit key. Overwriting an
// existing key logs a warning but proceeds: last writer wins, which lets
// a reconnecting adapter hot-swap its dead predecessor.
func (r *Registry) RegisterAs(key string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, exists := r.adapters[key]; exists {
		slog.Warn("overwriting registered adapter",
			"key", key,
			"old_channel", old.ID(),
			"new_channel", a.ID(),
		)
	}
	r.adapters[key] = a
}

// Get returns the adapter registered under key, if any.
func (r *Registry) Get(key string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[key]
	return a, ok
}

// Unregister removes an adapter. Missing keys are a no-op.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adapters, key)
}

// Keys returns the instance keys of all registered adapters.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		keys = append(keys, k)
	}
	return keys
}

// SendMessage routes an outbound send to the adapter registered under
// key. A lookup miss returns ErrAdapterNotFound wrapped with the key.
func (r *Registry) SendMessage(ctx context.Context, key, target, content string) error {
	a, ok := r.Get(key)
	if !ok {
		return fmt.Errorf("send via %q: %w", key, ErrAdapterNotFound)
	}
	return a.SendMessage(ctx, target, content)
}
