package store

import (
	"context"
	"encoding/json"
	"time"
)

// ChannelInstance is one configured connection slot: one protocol
// network for one tenant. Credentials hold the bootstrap secret (bot
// token, bridge URL); Config holds non-secret per-instance settings.
type ChannelInstance struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	ChannelType string          `json:"channel_type"` // "whatsapp", "telegram", "discord"
	Name        string          `json:"name"`
	Enabled     bool            `json:"enabled"`
	Status      string          `json:"status"` // mirrors channels.ConnState
	Credentials json.RawMessage `json:"credentials,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ChannelInstanceStore manages channel instance rows.
type ChannelInstanceStore interface {
	Create(ctx context.Context, inst *ChannelInstance) error
	Get(ctx context.Context, tenantID, id string) (*ChannelInstance, error)
	ListEnabled(ctx context.Context) ([]*ChannelInstance, error)
	UpdateStatus(ctx context.Context, tenantID, id, status string) error
	Delete(ctx context.Context, tenantID, id string) error
}
