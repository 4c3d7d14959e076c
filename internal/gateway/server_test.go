package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/whatsdex/gateway/internal/channels"
)

// webhookStub is a webhook-capable adapter recording deliveries.
type webhookStub struct {
	*channels.BaseAdapter
	handled int
}

func (s *webhookStub) Initialize() error                { return nil }
func (s *webhookStub) Connect(context.Context) error    { return nil }
func (s *webhookStub) Disconnect(context.Context) error { return nil }
func (s *webhookStub) SendMessage(context.Context, string, string) error {
	return nil
}

func (s *webhookStub) HandleWebhook(w http.ResponseWriter, _ *http.Request) {
	s.handled++
	w.WriteHeader(http.StatusOK)
}

// plainStub has no webhook capability.
type plainStub struct {
	*channels.BaseAdapter
}

func (s *plainStub) Initialize() error                { return nil }
func (s *plainStub) Connect(context.Context) error    { return nil }
func (s *plainStub) Disconnect(context.Context) error { return nil }
func (s *plainStub) SendMessage(context.Context, string, string) error {
	return nil
}

func newTestServer(t *testing.T) (*Server, *channels.Registry) {
	t.Helper()
	r := channels.NewRegistry()
	s := NewServer("127.0.0.1:0", r)
	s.BuildMux()
	return s, r
}

func post(s *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"update_id":1}`))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthReportsChannelCount(t *testing.T) {
	s, r := newTestServer(t)
	r.RegisterAs("bot-1", &webhookStub{BaseAdapter: channels.NewBaseAdapter("telegram", "bot-1", "t1")})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" || body["channels"] != float64(1) {
		t.Errorf("body = %v", body)
	}
}

func TestWebhookRoutesToAdapter(t *testing.T) {
	s, r := newTestServer(t)
	stub := &webhookStub{BaseAdapter: channels.NewBaseAdapter("telegram", "bot-1", "t1")}
	r.Register(stub)

	rec := post(s, "/webhook/telegram/bot-1")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if stub.handled != 1 {
		t.Errorf("handled = %d", stub.handled)
	}
}

func TestUnknownTokenStillAcknowledged(t *testing.T) {
	s, _ := newTestServer(t)

	rec := post(s, "/webhook/telegram/ghost")
	if rec.Code != http.StatusOK {
		t.Errorf("unknown token status = %d, want 200", rec.Code)
	}
}

func TestNonWebhookAdapterStillAcknowledged(t *testing.T) {
	s, r := newTestServer(t)
	stub := &plainStub{BaseAdapter: channels.NewBaseAdapter("discord", "disc-1", "t1")}
	r.Register(stub)

	rec := post(s, "/webhook/telegram/disc-1")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestTokenRateLimiter(t *testing.T) {
	l := newTokenRateLimiter()
	for i := 0; i < rateMaxHits; i++ {
		if !l.Allow("tok") {
			t.Fatalf("denied within budget at hit %d", i)
		}
	}
	if l.Allow("tok") {
		t.Error("allowed beyond budget")
	}
	if !l.Allow("other") {
		t.Error("tokens must be limited independently")
	}
}
