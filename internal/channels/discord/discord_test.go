package discord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/whatsdex/gateway/internal/channels"
	"github.com/whatsdex/gateway/internal/event"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := New(Config{Token: "test-token", BotID: "disc-1"}, "tenant-123")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func messageFrom(authorID string, bot bool, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "msg-1",
		ChannelID: "chan-9",
		Content:   content,
		Timestamp: time.Now(),
		Author:    &discordgo.User{ID: authorID, Bot: bot},
	}}
}

func receive(t *testing.T, ch <-chan event.Inbound) event.Inbound {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event emitted")
		return event.Inbound{}
	}
}

func TestNormalizesInboundMessage(t *testing.T) {
	a := newTestAdapter(t)
	got := make(chan event.Inbound, 1)
	a.OnMessage(func(ev event.Inbound) { got <- ev })

	a.handleMessageCreate(nil, messageFrom("user-42", false, "hello there"))

	ev := receive(t, got)
	if ev.ChannelID != "discord" {
		t.Errorf("channel = %q", ev.ChannelID)
	}
	if ev.TenantID != "tenant-123" || ev.BotID != "disc-1" {
		t.Errorf("identity fields = %q/%q", ev.TenantID, ev.BotID)
	}
	if ev.Sender != "user-42" || ev.Content != "hello there" {
		t.Errorf("sender/content = %q/%q", ev.Sender, ev.Content)
	}
	if ev.Timestamp.IsZero() {
		t.Error("timestamp must never be zero")
	}
}

func TestBotMessagesAreDropped(t *testing.T) {
	a := newTestAdapter(t)
	got := make(chan event.Inbound, 1)
	a.OnMessage(func(ev event.Inbound) { got <- ev })

	a.handleMessageCreate(nil, messageFrom("other-bot", true, "beep"))

	a.botUserID = "self-1"
	a.handleMessageCreate(nil, messageFrom("self-1", false, "echo"))

	select {
	case ev := <-got:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCapabilityProbing(t *testing.T) {
	var a channels.Adapter = newTestAdapter(t)

	if _, ok := a.(channels.ReactionCapable); !ok {
		t.Error("discord should support reactions")
	}
	if _, ok := a.(channels.PollCapable); ok {
		t.Error("discord must not advertise poll capability")
	}
	if _, ok := a.(channels.WebhookCapable); ok {
		t.Error("discord must not advertise webhook ingress")
	}
}

func TestAdapterIdentity(t *testing.T) {
	a := newTestAdapter(t)
	if a.ID() != "discord" {
		t.Errorf("protocol tag = %q", a.ID())
	}
	if a.State() != channels.StateDisconnected {
		t.Errorf("initial state = %q", a.State())
	}
}

func TestSendToEmptyTargetIsDeliveryError(t *testing.T) {
	a := newTestAdapter(t)
	err := a.SendMessage(context.Background(), "", "hi")
	var derr *channels.DeliveryError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want *DeliveryError", err)
	}
}
