// Package telegram connects to Telegram via the Bot API, either long
// polling or webhook push.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/whatsdex/gateway/internal/channels"
	"github.com/whatsdex/gateway/internal/event"
)

const channelID = "telegram"

// Update delivery modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config holds the per-instance bot settings, decoded from the channel
// instance's config JSON.
type Config struct {
	Token string `json:"token"`
	BotID string `json:"bot_id"`
	Mode  string `json:"mode"` // polling (default) or webhook
}

// Adapter is the Telegram channel adapter.
type Adapter struct {
	*channels.BaseAdapter
	bot *telego.Bot
	cfg Config

	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New creates a Telegram adapter for a tenant.
func New(cfg Config, tenantID string) (*Adapter, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModePolling
	}
	if cfg.Mode != ModePolling && cfg.Mode != ModeWebhook {
		return nil, fmt.Errorf("telegram mode %q is not supported", cfg.Mode)
	}

	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Adapter{
		BaseAdapter: channels.NewBaseAdapter(channelID, cfg.BotID, tenantID),
		bot:         bot,
		cfg:         cfg,
	}, nil
}

// Initialize is a no-op; the bot client is built in New.
func (a *Adapter) Initialize() error { return nil }

// Connect starts update delivery. In webhook mode the platform pushes
// updates through HandleWebhook and there is no polling goroutine.
func (a *Adapter) Connect(ctx context.Context) error {
	a.SetState(channels.StateConnecting)

	if a.cfg.Mode == ModeWebhook {
		a.SetState(channels.StateConnected)
		slog.Info("telegram bot ready (webhook mode)", "bot_id", a.cfg.BotID, "tenant_id", a.TenantID())
		return nil
	}

	pollCtx, cancel := context.WithCancel(context.Background())

	updates, err := a.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		a.SetState(channels.StateDisconnected)
		return &channels.ConnectionError{
			Channel:  channelID,
			Instance: a.cfg.BotID,
			Err:      fmt.Errorf("start long polling: %w", err),
		}
	}

	a.pollCancel = cancel
	a.pollDone = make(chan struct{})

	go func() {
		defer close(a.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram updates channel closed", "bot_id", a.cfg.BotID)
					return
				}
				a.handleUpdate(update)
			}
		}
	}()

	a.SetState(channels.StateConnected)
	slog.Info("telegram bot connected (polling mode)", "bot_id", a.cfg.BotID, "tenant_id", a.TenantID())
	return nil
}

// Disconnect cancels polling and waits for the goroutine to exit so
// Telegram releases the getUpdates lock before any replacement starts.
// Safe on an already-disconnected adapter.
func (a *Adapter) Disconnect(_ context.Context) error {
	if a.pollCancel != nil {
		a.pollCancel()
		a.pollCancel = nil
	}

	if a.pollDone != nil {
		select {
		case <-a.pollDone:
		case <-time.After(10 * time.Second):
			slog.Warn("telegram polling goroutine did not exit within timeout", "bot_id", a.cfg.BotID)
		}
		a.pollDone = nil
	}

	a.SetState(channels.StateDisconnected)
	return nil
}

// SendMessage delivers text to a chat. Target is the numeric chat ID.
func (a *Adapter) SendMessage(ctx context.Context, target, content string) error {
	chatID, err := parseChatID(target)
	if err != nil {
		return &channels.DeliveryError{Channel: channelID, Target: target, Err: err}
	}
	if _, err := a.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), content)); err != nil {
		return &channels.DeliveryError{Channel: channelID, Target: target, Err: err}
	}
	return nil
}

// SendReaction sets an emoji reaction on a message.
func (a *Adapter) SendReaction(ctx context.Context, target, messageID, emoji string) error {
	chatID, err := parseChatID(target)
	if err != nil {
		return &channels.DeliveryError{Channel: channelID, Target: target, Err: err}
	}
	msgID, err := strconv.Atoi(messageID)
	if err != nil {
		return &channels.DeliveryError{Channel: channelID, Target: target, Err: fmt.Errorf("message id %q: %w", messageID, err)}
	}

	err = a.bot.SetMessageReaction(ctx, &telego.SetMessageReactionParams{
		ChatID:    tu.ID(chatID),
		MessageID: msgID,
		Reaction: []telego.ReactionType{
			&telego.ReactionTypeEmoji{Type: telego.ReactionEmoji, Emoji: emoji},
		},
	})
	if err != nil {
		return &channels.DeliveryError{Channel: channelID, Target: target, Err: err}
	}
	return nil
}

// SendPoll creates a native poll in the target chat.
func (a *Adapter) SendPoll(ctx context.Context, target, question string, options []string) error {
	chatID, err := parseChatID(target)
	if err != nil {
		return &channels.DeliveryError{Channel: channelID, Target: target, Err: err}
	}

	pollOptions := make([]telego.InputPollOption, 0, len(options))
	for _, o := range options {
		pollOptions = append(pollOptions, telego.InputPollOption{Text: o})
	}

	_, err = a.bot.SendPoll(ctx, &telego.SendPollParams{
		ChatID:   tu.ID(chatID),
		Question: question,
		Options:  pollOptions,
	})
	if err != nil {
		return &channels.DeliveryError{Channel: channelID, Target: target, Err: err}
	}
	return nil
}

// HandleWebhook ingests a platform push delivery. The caller (gateway
// HTTP layer) has already resolved the routing token to this adapter.
// Always acknowledges 200 so the platform never enters a retry storm;
// malformed bodies are logged, not surfaced.
func (a *Adapter) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusOK)

	var update telego.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		slog.Warn("telegram webhook body rejected", "bot_id", a.cfg.BotID, "error", err)
		return
	}
	a.handleUpdate(update)
}

// handleUpdate normalizes one Telegram update and emits it.
func (a *Adapter) handleUpdate(update telego.Update) {
	message := update.Message
	if message == nil {
		slog.Debug("telegram update skipped (no message)", "update_id", update.UpdateID)
		return
	}
	user := message.From
	if user == nil {
		return
	}

	sender := strconv.FormatInt(user.ID, 10)
	if user.Username != "" {
		sender = user.Username
	}

	content := message.Text
	if content == "" {
		content = message.Caption
	}

	ts := time.Now()
	if message.Date > 0 {
		ts = time.Unix(message.Date, 0)
	}

	slog.Debug("telegram message received",
		"chat_id", message.Chat.ID,
		"sender", sender,
		"preview", channels.Truncate(content, 60),
	)

	a.Emit(event.Inbound{
		TenantID:  a.TenantID(),
		ChannelID: channelID,
		BotID:     a.InstanceID(),
		Sender:    sender,
		ChatID:    strconv.FormatInt(message.Chat.ID, 10),
		MessageID: strconv.Itoa(message.MessageID),
		Group:     message.Chat.Type == telego.ChatTypeGroup || message.Chat.Type == telego.ChatTypeSupergroup,
		Content:   content,
		Timestamp: ts,
		Raw:       message,
	})
}

func parseChatID(target string) (int64, error) {
	id, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("chat id %q: %w", target, err)
	}
	return id, nil
}
