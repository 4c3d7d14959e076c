package store

import (
	"context"
	"time"
)

// Webhook is a tenant-configured outbound HTTP endpoint. Events lists
// the event names the endpoint subscribes to ("message.received", ...).
type Webhook struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"` // HMAC signing key, never serialized outward
	Events    []string  `json:"events"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// SubscribesTo reports whether the webhook wants the named event.
func (w *Webhook) SubscribesTo(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// WebhookStore manages tenant webhook rows.
type WebhookStore interface {
	Create(ctx context.Context, wh *Webhook) error
	ListActive(ctx context.Context, tenantID string) ([]*Webhook, error)
	Delete(ctx context.Context, tenantID, id string) error
}
