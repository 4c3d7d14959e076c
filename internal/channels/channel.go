// Package channels provides the channel adapter abstraction for the
// multi-tenant messaging gateway. An adapter owns one protocol
// connection for one tenant and translates protocol-native events to and
// from the common inbound envelope.
package channels

import (
	"context"
	"net/http"
	"sync"

	"github.com/whatsdex/gateway/internal/event"
)

// ConnState is the connection lifecycle state of a channel instance.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// Adapter is the mandatory capability set every channel implementation
// must satisfy. Optional capabilities (reactions, polls, webhook ingress)
// are modeled as separate interfaces; callers feature-probe with a type
// assertion instead of assuming presence.
type Adapter interface {
	// ID returns the protocol tag ("whatsapp", "telegram", "discord").
	// It is constant for the lifetime of the instance.
	ID() string

	// InstanceID returns the registry key for this instance. It is stable
	// for the lifetime of the adapter; inbound events carry it as BotID.
	InstanceID() string

	// TenantID returns the owning tenant.
	TenantID() string

	// State reports the current connection state.
	State() ConnState

	// Initialize allocates internal state. Idempotent, no side effects
	// beyond local allocation.
	Initialize() error

	// Connect establishes the protocol-native connection, loading
	// credentials from the credential store (creating fresh ones if none
	// exist). Returns a *ConnectionError if authentication is rejected or
	// the transport cannot be established.
	Connect(ctx context.Context) error

	// Disconnect tears down the protocol connection. Calling it on an
	// already-disconnected adapter is a no-op, not an error. In-flight
	// event processing is never aborted, only new deliveries stop.
	Disconnect(ctx context.Context) error

	// SendMessage delivers outbound text to a protocol-native target.
	// Returns a *DeliveryError if the adapter is not connected or the
	// protocol rejects the payload.
	SendMessage(ctx context.Context, target, content string) error

	// OnMessage registers the handler invoked for every normalized
	// inbound event. Last registration wins; wiring happens once at
	// startup.
	OnMessage(h event.Handler)
}

// ReactionCapable is implemented by adapters whose protocol supports
// emoji reactions on messages.
type ReactionCapable interface {
	Adapter
	SendReaction(ctx context.Context, target, messageID, emoji string) error
}

// PollCapable is implemented by adapters whose protocol supports native
// polls.
type PollCapable interface {
	Adapter
	SendPoll(ctx context.Context, target, question string, options []string) error
}

// WebhookCapable is implemented by adapters that can ingest platform
// push deliveries over HTTP instead of (or in addition to) polling.
type WebhookCapable interface {
	Adapter
	HandleWebhook(w http.ResponseWriter, r *http.Request)
}

// BaseAdapter provides the shared identity, state, and handler plumbing.
// Adapter implementations embed it.
type BaseAdapter struct {
	id         string
	instanceID string
	tenantID   string

	mu      sync.RWMutex
	state   ConnState
	handler event.Handler
}

// NewBaseAdapter creates a BaseAdapter in the disconnected state.
func NewBaseAdapter(id, instanceID, tenantID string) *BaseAdapter {
	return &BaseAdapter{
		id:         id,
		instanceID: instanceID,
		tenantID:   tenantID,
		state:      StateDisconnected,
	}
}

// ID returns the protocol tag.
func (b *BaseAdapter) ID() string { return b.id }

// InstanceID returns the registry key for this instance.
func (b *BaseAdapter) InstanceID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.instanceID
}

// TenantID returns the owning tenant.
func (b *BaseAdapter) TenantID() string { return b.tenantID }

// State reports the current connection state.
func (b *BaseAdapter) State() ConnState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// SetState transitions the connection state.
func (b *BaseAdapter) SetState(s ConnState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
}

// OnMessage registers the inbound handler. Last registration wins.
func (b *BaseAdapter) OnMessage(h event.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

// Emit delivers a normalized event to the registered handler on the
// caller's goroutine. Protocol clients serialize a connection's event
// stream; delivering synchronously preserves that order, and the handler
// owns any further fan-out. Events arriving before a handler is
// registered are dropped.
func (b *BaseAdapter) Emit(ev event.Inbound) {
	b.mu.RLock()
	h := b.handler
	b.mu.RUnlock()
	if h == nil {
		return
	}
	h(ev)
}

// Truncate shortens a string to maxLen for log previews.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
