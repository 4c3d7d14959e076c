// Package discord connects to Discord via the gateway WebSocket using
// discordgo. Reactions are supported; Discord has no native poll send in
// the bot API surface used here, so the adapter deliberately does not
// implement poll capability.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/whatsdex/gateway/internal/channels"
	"github.com/whatsdex/gateway/internal/event"
)

const channelID = "discord"

// Config holds the per-instance bot settings, decoded from the channel
// instance's config JSON.
type Config struct {
	Token string `json:"token"`
	BotID string `json:"bot_id"`
}

// Adapter is the Discord channel adapter.
type Adapter struct {
	*channels.BaseAdapter
	session   *discordgo.Session
	cfg       Config
	botUserID string // populated on connect, used to drop self-echo
}

// New creates a Discord adapter for a tenant.
func New(cfg Config, tenantID string) (*Adapter, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord token is required")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	a := &Adapter{
		BaseAdapter: channels.NewBaseAdapter(channelID, cfg.BotID, tenantID),
		session:     session,
		cfg:         cfg,
	}
	session.AddHandler(a.handleMessageCreate)
	return a, nil
}

// Initialize is a no-op; the session is built in New.
func (a *Adapter) Initialize() error { return nil }

// Connect opens the Discord gateway connection.
func (a *Adapter) Connect(_ context.Context) error {
	a.SetState(channels.StateConnecting)

	if err := a.session.Open(); err != nil {
		a.SetState(channels.StateDisconnected)
		return &channels.ConnectionError{
			Channel:  channelID,
			Instance: a.cfg.BotID,
			Err:      fmt.Errorf("open discord session: %w", err),
		}
	}

	user, err := a.session.User("@me")
	if err != nil {
		_ = a.session.Close()
		a.SetState(channels.StateDisconnected)
		return &channels.ConnectionError{
			Channel:  channelID,
			Instance: a.cfg.BotID,
			Err:      fmt.Errorf("fetch discord bot identity: %w", err),
		}
	}
	a.botUserID = user.ID

	a.SetState(channels.StateConnected)
	slog.Info("discord bot connected", "username", user.Username, "id", user.ID, "tenant_id", a.TenantID())
	return nil
}

// Disconnect closes the gateway connection. Safe to call repeatedly.
func (a *Adapter) Disconnect(_ context.Context) error {
	if a.State() == channels.StateDisconnected {
		return nil
	}
	a.SetState(channels.StateDisconnected)
	return a.session.Close()
}

// SendMessage delivers text to a Discord channel ID.
func (a *Adapter) SendMessage(_ context.Context, target, content string) error {
	if target == "" {
		return &channels.DeliveryError{Channel: channelID, Target: target, Err: fmt.Errorf("empty channel id")}
	}
	if _, err := a.session.ChannelMessageSend(target, content); err != nil {
		return &channels.DeliveryError{Channel: channelID, Target: target, Err: err}
	}
	return nil
}

// SendReaction adds an emoji reaction to a message.
func (a *Adapter) SendReaction(_ context.Context, target, messageID, emoji string) error {
	if err := a.session.MessageReactionAdd(target, messageID, emoji); err != nil {
		return &channels.DeliveryError{Channel: channelID, Target: target, Err: err}
	}
	return nil
}

// handleMessageCreate normalizes an inbound gateway message and emits it.
func (a *Adapter) handleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == a.botUserID || m.Author.Bot {
		return
	}

	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	slog.Debug("discord message received",
		"channel_id", m.ChannelID,
		"author_id", m.Author.ID,
		"preview", channels.Truncate(m.Content, 60),
	)

	a.Emit(event.Inbound{
		TenantID:  a.TenantID(),
		ChannelID: channelID,
		BotID:     a.InstanceID(),
		Sender:    m.Author.ID,
		ChatID:    m.ChannelID,
		MessageID: m.ID,
		Group:     m.GuildID != "",
		Content:   m.Content,
		Timestamp: ts,
		Raw:       m,
	})
}
