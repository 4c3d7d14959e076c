// Package whatsapp connects to a WhatsApp bridge via WebSocket.
// The bridge handles the actual WhatsApp protocol; this adapter exchanges
// JSON frames with it, normalizes inbound messages, and persists the
// account's credential material through the credential store so sessions
// survive process restarts.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/whatsdex/gateway/internal/channels"
	"github.com/whatsdex/gateway/internal/event"
	"github.com/whatsdex/gateway/internal/store"
)

const channelID = "whatsapp"

// Config holds the per-instance bridge settings, decoded from the channel
// instance's config JSON.
type Config struct {
	BridgeURL string `json:"bridge_url"`
	BotID     string `json:"bot_id"`
}

// frame is the JSON message exchanged with the bridge, both directions.
// Only the fields relevant to a frame's type are populated.
type frame struct {
	Type string `json:"type"`

	// inbound message
	From      string `json:"from,omitempty"`
	Chat      string `json:"chat,omitempty"`
	Content   string `json:"content,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	FullPath  string `json:"full_path,omitempty"`

	// connection lifecycle
	AccountID string `json:"account_id,omitempty"`

	// outbound sends
	To       string   `json:"to,omitempty"`
	Emoji    string   `json:"emoji,omitempty"`
	Question string   `json:"question,omitempty"`
	Options  []string `json:"options,omitempty"`

	// credential exchange
	Creds     json.RawMessage   `json:"creds,omitempty"`
	Fresh     bool              `json:"fresh,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Category  string            `json:"category,omitempty"`
	IDs       []string          `json:"ids,omitempty"`
	Values    map[string][]byte `json:"values,omitempty"`
}

// Adapter is the WhatsApp channel adapter. One adapter owns one bridge
// connection for one tenant account.
type Adapter struct {
	*channels.BaseAdapter
	cfg   Config
	creds store.CredentialStore

	mu      sync.Mutex
	conn    *websocket.Conn
	init    frame // re-sent after every reconnect
	account string
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a WhatsApp adapter for a tenant. The instance key is the
// configured bot ID; the phone-number account identifier the bridge
// reports after login is exposed separately via AccountID.
func New(cfg Config, tenantID string, creds store.CredentialStore) (*Adapter, error) {
	if cfg.BridgeURL == "" {
		return nil, fmt.Errorf("whatsapp bridge_url is required")
	}
	if creds == nil {
		return nil, fmt.Errorf("whatsapp requires a credential store")
	}

	return &Adapter{
		BaseAdapter: channels.NewBaseAdapter(channelID, cfg.BotID, tenantID),
		cfg:         cfg,
		creds:       creds,
	}, nil
}

// Initialize is a no-op for this adapter; all state is allocated in New.
// Kept idempotent so callers may invoke it unconditionally before Connect.
func (a *Adapter) Initialize() error { return nil }

// AccountID returns the phone-number identity the bridge reported for
// this session, or "" before the first successful login.
func (a *Adapter) AccountID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.account
}

// Connect loads (or synthesizes) credentials, dials the bridge, hands the
// credentials over in an init frame, and starts the listen loop. The
// credential store read happens first: connecting with partially-read
// state would fork the session.
func (a *Adapter) Connect(ctx context.Context) error {
	a.SetState(channels.StateConnecting)

	data, err := a.creds.Get(ctx, a.TenantID(), a.cfg.BotID, store.PrimaryRecordID)
	if err != nil {
		a.SetState(channels.StateDisconnected)
		return &channels.ConnectionError{Channel: channelID, Instance: a.cfg.BotID, Err: err}
	}

	fresh := data == nil
	if fresh {
		generated, err := newCredentials()
		if err != nil {
			a.SetState(channels.StateDisconnected)
			return &channels.ConnectionError{Channel: channelID, Instance: a.cfg.BotID, Err: err}
		}
		if data, err = generated.marshal(); err != nil {
			a.SetState(channels.StateDisconnected)
			return &channels.ConnectionError{Channel: channelID, Instance: a.cfg.BotID, Err: err}
		}
		slog.Info("whatsapp credentials synthesized", "tenant_id", a.TenantID(), "bot_id", a.cfg.BotID)
	}

	a.ctx, a.cancel = context.WithCancel(context.Background())

	if err := a.dial(); err != nil {
		a.SetState(channels.StateDisconnected)
		return &channels.ConnectionError{Channel: channelID, Instance: a.cfg.BotID, Err: err}
	}

	init := frame{Type: "init", To: a.cfg.BotID, Creds: data, Fresh: fresh}
	a.mu.Lock()
	a.init = init
	a.mu.Unlock()
	if err := a.write(init); err != nil {
		a.closeConn()
		a.SetState(channels.StateDisconnected)
		return &channels.ConnectionError{Channel: channelID, Instance: a.cfg.BotID, Err: err}
	}

	go a.listenLoop()

	a.SetState(channels.StateConnected)
	slog.Info("whatsapp bridge connected", "bridge_url", a.cfg.BridgeURL, "tenant_id", a.TenantID())
	return nil
}

// Disconnect closes the bridge connection. Safe on an already-disconnected
// adapter. In-flight event goroutines are never cancelled.
func (a *Adapter) Disconnect(_ context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.closeConn()
	a.SetState(channels.StateDisconnected)
	return nil
}

// SendMessage delivers text to a WhatsApp JID through the bridge.
func (a *Adapter) SendMessage(_ context.Context, target, content string) error {
	err := a.write(frame{Type: "message", To: target, Content: content})
	if err != nil {
		return &channels.DeliveryError{Channel: channelID, Target: target, Err: err}
	}
	return nil
}

// SendReaction attaches an emoji reaction to a message.
func (a *Adapter) SendReaction(_ context.Context, target, messageID, emoji string) error {
	err := a.write(frame{Type: "reaction", To: target, MessageID: messageID, Emoji: emoji})
	if err != nil {
		return &channels.DeliveryError{Channel: channelID, Target: target, Err: err}
	}
	return nil
}

// SendPoll creates a native poll in the target chat.
func (a *Adapter) SendPoll(_ context.Context, target, question string, options []string) error {
	err := a.write(frame{Type: "poll", To: target, Question: question, Options: options})
	if err != nil {
		return &channels.DeliveryError{Channel: channelID, Target: target, Err: err}
	}
	return nil
}

func (a *Adapter) dial() error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(a.cfg.BridgeURL, nil)
	if err != nil {
		return fmt.Errorf("dial whatsapp bridge %s: %w", a.cfg.BridgeURL, err)
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()
	return nil
}

func (a *Adapter) write(f frame) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return fmt.Errorf("whatsapp bridge not connected")
	}

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal bridge frame: %w", err)
	}
	return a.conn.WriteMessage(websocket.TextMessage, data)
}

func (a *Adapter) closeConn() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil {
		_ = a.conn.Close()
		a.conn = nil
	}
}

// listenLoop reads bridge frames with automatic reconnection.
func (a *Adapter) listenLoop() {
	backoff := time.Second

	for {
		select {
		case <-a.ctx.Done():
			return
		default:
		}

		a.mu.Lock()
		conn := a.conn
		a.mu.Unlock()

		if conn == nil {
			slog.Info("attempting whatsapp bridge reconnect", "backoff", backoff)

			select {
			case <-a.ctx.Done():
				return
			case <-time.After(backoff):
			}

			if err := a.dial(); err != nil {
				slog.Warn("whatsapp bridge reconnect failed", "error", err)
				backoff = min(backoff*2, 30*time.Second)
				continue
			}

			a.mu.Lock()
			init := a.init
			a.mu.Unlock()
			if err := a.write(init); err != nil {
				slog.Warn("whatsapp bridge re-init failed", "error", err)
				a.closeConn()
				continue
			}

			backoff = time.Second
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-a.ctx.Done():
				return
			default:
			}
			slog.Warn("whatsapp read error, will reconnect", "error", err)
			a.closeConn()
			continue
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			slog.Warn("invalid whatsapp bridge frame", "error", err)
			continue
		}

		a.handleFrame(f)
	}
}

func (a *Adapter) handleFrame(f frame) {
	switch f.Type {
	case "message":
		a.handleMessage(f)
	case "connected":
		a.handleConnected(f)
	case "creds.update":
		a.handleCredsUpdate(f)
	case "keys.get":
		a.handleKeysGet(f)
	case "keys.set":
		a.handleKeysSet(f)
	default:
		slog.Debug("unhandled whatsapp bridge frame", "type", f.Type)
	}
}

// handleMessage normalizes an inbound bridge message and emits it.
func (a *Adapter) handleMessage(f frame) {
	if f.From == "" {
		return
	}

	content := f.Content
	if content == "" {
		content = "[empty message]"
	}

	ts := time.Now()
	if f.Timestamp > 0 {
		ts = time.UnixMilli(f.Timestamp)
	}

	slog.Debug("whatsapp message received",
		"sender_id", f.From,
		"chat_id", f.Chat,
		"preview", channels.Truncate(content, 50),
	)

	a.Emit(event.Inbound{
		TenantID:  a.TenantID(),
		ChannelID: channelID,
		BotID:     a.InstanceID(),
		Sender:    f.From,
		ChatID:    f.Chat,
		MessageID: f.MessageID,
		Group:     strings.HasSuffix(f.Chat, "@g.us"),
		Content:   content,
		Timestamp: ts,
		FullPath:  f.FullPath,
		Raw:       f,
	})
}

// handleConnected records the logged-in account identity.
func (a *Adapter) handleConnected(f frame) {
	if f.AccountID == "" {
		return
	}
	account := strings.TrimSuffix(f.AccountID, "@s.whatsapp.net")
	a.mu.Lock()
	a.account = account
	a.mu.Unlock()
	a.SetState(channels.StateConnected)
	slog.Info("whatsapp account resolved", "account_id", account, "tenant_id", a.TenantID())
}

// handleCredsUpdate persists a credential mutation pushed by the bridge.
// Exactly one store write per update frame.
func (a *Adapter) handleCredsUpdate(f frame) {
	if len(f.Creds) == 0 {
		return
	}
	if err := a.creds.Set(a.ctx, a.TenantID(), a.cfg.BotID, store.PrimaryRecordID, f.Creds); err != nil {
		slog.Error("whatsapp credential persist failed",
			"tenant_id", a.TenantID(),
			"bot_id", a.cfg.BotID,
			"error", err,
		)
	}
}

// handleKeysGet answers a bulk auxiliary key read. Absent ids come back
// as null values; a partial miss never fails the batch. Categories
// outside the closed enum are answered all-null rather than hitting the
// store.
func (a *Adapter) handleKeysGet(f frame) {
	category := store.KeyCategory(f.Category)
	if !category.Valid() {
		slog.Warn("whatsapp key read for unknown category", "category", f.Category)
		values := make(map[string][]byte, len(f.IDs))
		for _, id := range f.IDs {
			values[id] = nil
		}
		reply := frame{Type: "keys.result", RequestID: f.RequestID, Category: f.Category, Values: values}
		if err := a.write(reply); err != nil {
			slog.Warn("whatsapp key result send failed", "error", err)
		}
		return
	}

	values, err := a.creds.GetKeys(a.ctx, a.TenantID(), a.cfg.BotID, category, f.IDs)
	if err != nil {
		slog.Error("whatsapp key read failed", "category", f.Category, "error", err)
		values = make(map[string][]byte, len(f.IDs))
		for _, id := range f.IDs {
			values[id] = nil
		}
	}

	reply := frame{Type: "keys.result", RequestID: f.RequestID, Category: f.Category, Values: values}
	if err := a.write(reply); err != nil {
		slog.Warn("whatsapp key result send failed", "error", err)
	}
}

// handleKeysSet applies a bulk auxiliary key write. Null values delete.
// Unknown categories are rejected without touching the store.
func (a *Adapter) handleKeysSet(f frame) {
	category := store.KeyCategory(f.Category)
	if !category.Valid() {
		slog.Warn("whatsapp key write for unknown category rejected", "category", f.Category)
		return
	}
	if err := a.creds.SetKeys(a.ctx, a.TenantID(), a.cfg.BotID, category, f.Values); err != nil {
		slog.Error("whatsapp key write failed", "category", f.Category, "error", err)
	}
}
