// Package event defines the protocol-agnostic envelope every channel
// adapter produces for inbound traffic. Adapters translate their native
// update types into Inbound; everything protocol-specific rides along in
// Raw and is opaque to the core.
package event

import "time"

// Inbound is the common envelope for a message received on any channel.
// It flows by value through the middleware pipeline and the ingress
// router and is immutable once constructed by the adapter.
type Inbound struct {
	TenantID  string    `json:"tenant_id"`
	ChannelID string    `json:"channel_id"` // protocol tag: "whatsapp", "telegram", "discord"
	BotID     string    `json:"bot_id"`     // instance identifier within the registry
	Sender    string    `json:"sender"`     // protocol-native sender ID, only comparable within one channel type
	ChatID    string    `json:"chat_id"`    // protocol-native conversation locator, the target for replies
	MessageID string    `json:"message_id,omitempty"`
	Group     bool      `json:"group,omitempty"` // true when the conversation is a group, not a direct chat
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// FullPath is an optional fully-qualified locator
	// ("tenants/{t}/agents/{a}/channels/{c}") used when an explicit agent
	// binding must be honored without a lookup.
	FullPath string `json:"full_path,omitempty"`

	// Raw is the original protocol object, passed through untouched for
	// downstream consumers that need protocol-specific fields.
	Raw any `json:"-"`
}

// Handler consumes normalized inbound events. Each adapter invokes its
// registered handler once per event, in protocol-delivery order for a
// given connection; the handler owns all further processing (pipeline,
// routing) including any fan-out.
type Handler func(ev Inbound)
