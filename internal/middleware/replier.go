package middleware

import (
	"context"
	"fmt"

	"github.com/whatsdex/gateway/internal/channels"
	"github.com/whatsdex/gateway/internal/event"
)

// ChannelReplier implements Replier by routing through the adapter
// registry back to the chat the event came from. Reactions degrade to
// a no-op when the originating adapter does not support them.
type ChannelReplier struct {
	registry *channels.Registry
	ev       event.Inbound
}

// NewChannelReplier builds the replier for one inbound event.
func NewChannelReplier(registry *channels.Registry, ev event.Inbound) *ChannelReplier {
	return &ChannelReplier{registry: registry, ev: ev}
}

// Reply sends text back to the originating chat.
func (r *ChannelReplier) Reply(ctx context.Context, text string) error {
	target := r.ev.ChatID
	if target == "" {
		target = r.ev.Sender
	}
	return r.registry.SendMessage(ctx, r.ev.BotID, target, text)
}

// React adds an emoji reaction to the originating message.
func (r *ChannelReplier) React(ctx context.Context, emoji string) error {
	a, ok := r.registry.Get(r.ev.BotID)
	if !ok {
		return fmt.Errorf("react via %q: %w", r.ev.BotID, channels.ErrAdapterNotFound)
	}
	rc, ok := a.(channels.ReactionCapable)
	if !ok || r.ev.MessageID == "" {
		return nil
	}
	target := r.ev.ChatID
	if target == "" {
		target = r.ev.Sender
	}
	return rc.SendReaction(ctx, target, r.ev.MessageID, emoji)
}

var _ Replier = (*ChannelReplier)(nil)
