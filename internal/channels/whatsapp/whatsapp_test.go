package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/whatsdex/gateway/internal/channels"
	"github.com/whatsdex/gateway/internal/store"
)

// memStore is an in-memory credential store that records call counts.
type memStore struct {
	mu      sync.Mutex
	records map[string][]byte
	gets    int
	sets    int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string][]byte)}
}

func (m *memStore) key(tenantID, botID, recordID string) string {
	return tenantID + "/" + botID + "/" + recordID
}

func (m *memStore) Get(_ context.Context, tenantID, botID, recordID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	return m.records[m.key(tenantID, botID, recordID)], nil
}

func (m *memStore) Set(_ context.Context, tenantID, botID, recordID string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.records[m.key(tenantID, botID, recordID)] = value
	return nil
}

func (m *memStore) Delete(_ context.Context, tenantID, botID, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, m.key(tenantID, botID, recordID))
	return nil
}

func (m *memStore) GetKeys(_ context.Context, tenantID, botID string, category store.KeyCategory, ids []string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(ids))
	for _, id := range ids {
		out[id] = m.records[m.key(tenantID, botID, store.AuxRecordID(category, id))]
	}
	return out, nil
}

func (m *memStore) SetKeys(_ context.Context, tenantID, botID string, category store.KeyCategory, values map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, v := range values {
		k := m.key(tenantID, botID, store.AuxRecordID(category, id))
		if v == nil {
			delete(m.records, k)
			continue
		}
		m.records[k] = v
	}
	return nil
}

func (m *memStore) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// fakeBridge is a WebSocket server standing in for the WhatsApp bridge.
type fakeBridge struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conn     *websocket.Conn
	received chan frame
}

func newFakeBridge(t *testing.T) *fakeBridge {
	t.Helper()
	b := &fakeBridge{received: make(chan frame, 16)}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		b.mu.Lock()
		b.conn = conn
		b.mu.Unlock()

		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			b.received <- f
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBridge) url() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

func (b *fakeBridge) push(t *testing.T, f frame) {
	t.Helper()
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		t.Fatal("bridge has no client connection")
	}
	if err := conn.WriteJSON(f); err != nil {
		t.Fatalf("bridge write: %v", err)
	}
}

func (b *fakeBridge) awaitFrame(t *testing.T, frameType string) frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-b.received:
			if f.Type == frameType {
				return f
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q frame", frameType)
		}
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newTestAdapter(t *testing.T, bridge *fakeBridge, creds store.CredentialStore) *Adapter {
	t.Helper()
	a, err := New(Config{BridgeURL: bridge.url(), BotID: "chan-456"}, "tenant-123", creds)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Disconnect(context.Background()) })
	return a
}

func TestConnectSynthesizesFreshCredentials(t *testing.T) {
	bridge := newFakeBridge(t)
	creds := newMemStore()
	a := newTestAdapter(t, bridge, creds)

	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	init := bridge.awaitFrame(t, "init")
	if !init.Fresh {
		t.Error("init frame should be marked fresh when the store is empty")
	}

	var synthesized Credentials
	if err := json.Unmarshal(init.Creds, &synthesized); err != nil {
		t.Fatalf("unmarshal synthesized credentials: %v", err)
	}
	if len(synthesized.NoiseKey.Private) != 32 || len(synthesized.NoiseKey.Public) != 32 {
		t.Errorf("noise key pair not 32 bytes: %d/%d",
			len(synthesized.NoiseKey.Private), len(synthesized.NoiseKey.Public))
	}
	if synthesized.RegistrationID == 0 || synthesized.RegistrationID > maxRegistrationID {
		t.Errorf("registration id out of range: %d", synthesized.RegistrationID)
	}

	// Synthesis alone does not persist. Each update signal persists once.
	if n := creds.setCount(); n != 0 {
		t.Fatalf("store writes before any update signal = %d, want 0", n)
	}

	update, _ := json.Marshal(map[string]any{"registered": true})
	bridge.push(t, frame{Type: "creds.update", Creds: update})
	waitFor(t, func() bool { return creds.setCount() == 1 }, "first creds.update was not persisted")

	bridge.push(t, frame{Type: "creds.update", Creds: update})
	waitFor(t, func() bool { return creds.setCount() == 2 }, "second creds.update was not persisted")

	if n := creds.setCount(); n != 2 {
		t.Errorf("store writes = %d, want exactly one per update signal", n)
	}
}

func TestConnectReusesStoredCredentials(t *testing.T) {
	bridge := newFakeBridge(t)
	creds := newMemStore()
	stored := []byte(`{"registrationId":42,"registered":true}`)
	_ = creds.Set(context.Background(), "tenant-123", "chan-456", store.PrimaryRecordID, stored)

	a := newTestAdapter(t, bridge, creds)
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	init := bridge.awaitFrame(t, "init")
	if init.Fresh {
		t.Error("init frame marked fresh despite stored credentials")
	}
	if string(init.Creds) != string(stored) {
		t.Errorf("init creds = %s, want stored bytes verbatim", init.Creds)
	}
}

func TestKeysGetAnswersAbsentAsNull(t *testing.T) {
	bridge := newFakeBridge(t)
	creds := newMemStore()
	_ = creds.SetKeys(context.Background(), "tenant-123", "chan-456", store.KeyPreKey,
		map[string][]byte{"1": []byte("k1")})

	a := newTestAdapter(t, bridge, creds)
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	bridge.awaitFrame(t, "init")

	bridge.push(t, frame{
		Type:      "keys.get",
		RequestID: "req-1",
		Category:  string(store.KeyPreKey),
		IDs:       []string{"1", "2"},
	})

	result := bridge.awaitFrame(t, "keys.result")
	if result.RequestID != "req-1" {
		t.Errorf("request_id = %q", result.RequestID)
	}
	if string(result.Values["1"]) != "k1" {
		t.Errorf("present key = %q, want k1", result.Values["1"])
	}
	if v, ok := result.Values["2"]; !ok || v != nil {
		t.Errorf("absent key should resolve to an explicit null entry, got %v (present=%v)", v, ok)
	}
}

func TestUnknownKeyCategoryNeverReachesStore(t *testing.T) {
	bridge := newFakeBridge(t)
	creds := newMemStore()
	_ = creds.SetKeys(context.Background(), "tenant-123", "chan-456", store.KeyPreKey,
		map[string][]byte{"1": []byte("k1")})

	a := newTestAdapter(t, bridge, creds)
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	bridge.awaitFrame(t, "init")

	bridge.push(t, frame{
		Type:      "keys.set",
		Category:  "identity-key",
		Values:    map[string][]byte{"1": []byte("evil")},
		RequestID: "req-1",
	})
	bridge.push(t, frame{
		Type:      "keys.get",
		RequestID: "req-2",
		Category:  "identity-key",
		IDs:       []string{"1"},
	})

	result := bridge.awaitFrame(t, "keys.result")
	if result.RequestID != "req-2" {
		t.Errorf("request_id = %q", result.RequestID)
	}
	if v, ok := result.Values["1"]; !ok || v != nil {
		t.Errorf("unknown category must answer an explicit null, got %v (present=%v)", v, ok)
	}

	// The rejected write must not have landed anywhere.
	rejected, _ := creds.GetKeys(context.Background(), "tenant-123", "chan-456",
		store.KeyCategory("identity-key"), []string{"1"})
	if rejected["1"] != nil {
		t.Errorf("rejected write reached the store: %q", rejected["1"])
	}
	values, _ := creds.GetKeys(context.Background(), "tenant-123", "chan-456", store.KeyPreKey, []string{"1"})
	if string(values["1"]) != "k1" {
		t.Errorf("pre-key record disturbed: %q", values["1"])
	}
}

func TestConnectedFrameResolvesAccountID(t *testing.T) {
	bridge := newFakeBridge(t)
	a := newTestAdapter(t, bridge, newMemStore())

	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	bridge.awaitFrame(t, "init")

	if got := a.InstanceID(); got != "chan-456" {
		t.Fatalf("pre-login instance id = %q", got)
	}
	if got := a.AccountID(); got != "" {
		t.Fatalf("pre-login account id = %q", got)
	}

	bridge.push(t, frame{Type: "connected", AccountID: "15551234567@s.whatsapp.net"})
	waitFor(t, func() bool { return a.AccountID() == "15551234567" },
		"account id was not resolved from the connected frame")

	if got := a.InstanceID(); got != "chan-456" {
		t.Errorf("instance id changed after login: %q", got)
	}

	if a.ID() != "whatsapp" {
		t.Errorf("protocol tag = %q", a.ID())
	}
	if a.State() != channels.StateConnected {
		t.Errorf("state = %q", a.State())
	}
}

func TestSendWhileDisconnectedIsDeliveryError(t *testing.T) {
	bridge := newFakeBridge(t)
	a := newTestAdapter(t, bridge, newMemStore())

	err := a.SendMessage(context.Background(), "123@s.whatsapp.net", "hello")
	var derr *channels.DeliveryError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want *DeliveryError", err)
	}
	if derr.Channel != "whatsapp" || derr.Target != "123@s.whatsapp.net" {
		t.Errorf("delivery error fields = %+v", derr)
	}
}

func TestDisconnectTwiceIsNoop(t *testing.T) {
	bridge := newFakeBridge(t)
	a := newTestAdapter(t, bridge, newMemStore())

	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := a.Disconnect(context.Background()); err != nil {
		t.Fatalf("first Disconnect: %v", err)
	}
	if err := a.Disconnect(context.Background()); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}
	if a.State() != channels.StateDisconnected {
		t.Errorf("state = %q", a.State())
	}
}
