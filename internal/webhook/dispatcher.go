// Package webhook delivers gateway events to tenant-configured HTTP
// endpoints, with HMAC signing and bounded retries.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/whatsdex/gateway/internal/store"
)

const (
	maxAttempts    = 3
	requestTimeout = 5 * time.Second
)

// Dispatcher fans events out to every active webhook of a tenant that
// subscribes to the event name. Deliveries run in their own goroutines;
// a slow endpoint never blocks the event unit of work.
type Dispatcher struct {
	webhooks store.WebhookStore
	http     *http.Client
}

// NewDispatcher creates a dispatcher over the given webhook store.
func NewDispatcher(webhooks store.WebhookStore) *Dispatcher {
	return &Dispatcher{
		webhooks: webhooks,
		http:     &http.Client{Timeout: requestTimeout},
	}
}

type envelope struct {
	Event     string         `json:"event"`
	Timestamp int64          `json:"timestamp"`
	TenantID  string         `json:"tenantId"`
	Data      map[string]any `json:"data"`
}

// Dispatch sends the event to all matching webhooks. The store lookup is
// synchronous; deliveries are not awaited.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID, eventName string, payload map[string]any) error {
	if d.webhooks == nil {
		return nil // standalone mode: webhooks disabled
	}
	hooks, err := d.webhooks.ListActive(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("list webhooks for %s: %w", tenantID, err)
	}

	body, err := json.Marshal(envelope{
		Event:     eventName,
		Timestamp: time.Now().UnixMilli(),
		TenantID:  tenantID,
		Data:      payload,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	for _, hook := range hooks {
		if !hook.SubscribesTo(eventName) {
			continue
		}
		go d.deliver(hook, eventName, body)
	}
	return nil
}

// deliver posts one payload with retries and exponential backoff.
// Failures are operational: logged, never surfaced to the chat.
func (d *Dispatcher) deliver(hook *store.Webhook, eventName string, body []byte) {
	signature := sign(hook.Secret, body)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequest(http.MethodPost, hook.URL, bytes.NewReader(body))
		if err != nil {
			slog.Error("webhook request build failed", "url", hook.URL, "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Gateway-Signature", signature)
		req.Header.Set("X-Gateway-Timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		req.Header.Set("User-Agent", "whatsdex-gateway/1.0")

		resp, err := d.http.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				slog.Debug("webhook delivered", "event", eventName, "url", hook.URL)
				return
			}
			err = fmt.Errorf("endpoint returned %d", resp.StatusCode)
		}

		if attempt < maxAttempts {
			time.Sleep(time.Duration(1<<attempt) * time.Second)
			continue
		}
		slog.Warn("webhook delivery failed",
			"event", eventName,
			"url", hook.URL,
			"attempts", maxAttempts,
			"error", err,
		)
	}
}

// sign computes the hex HMAC-SHA256 of body under the webhook secret.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
