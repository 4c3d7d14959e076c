package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/whatsdex/gateway/internal/store"
)

// WebhookStore implements store.WebhookStore on SQLite.
type WebhookStore struct {
	db *sql.DB
}

func NewWebhookStore(db *sql.DB) *WebhookStore {
	return &WebhookStore{db: db}
}

func (s *WebhookStore) Create(ctx context.Context, wh *store.Webhook) error {
	if wh.TenantID == "" {
		return store.ErrMissingTenant
	}
	if wh.ID == "" {
		wh.ID = uuid.Must(uuid.NewV7()).String()
	}
	wh.CreatedAt = time.Now()
	events, err := json.Marshal(wh.Events)
	if err != nil {
		return fmt.Errorf("marshal webhook events: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO webhooks (id, tenant_id, name, url, secret, events, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		wh.ID, wh.TenantID, wh.Name, wh.URL, wh.Secret, string(events), wh.Active,
		wh.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}
	return nil
}

func (s *WebhookStore) ListActive(ctx context.Context, tenantID string) ([]*store.Webhook, error) {
	if tenantID == "" {
		return nil, store.ErrMissingTenant
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, url, secret, events, active, created_at
		 FROM webhooks WHERE tenant_id = ? AND active = 1`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var out []*store.Webhook
	for rows.Next() {
		wh := &store.Webhook{}
		var events, createdAt string
		if err := rows.Scan(&wh.ID, &wh.TenantID, &wh.Name, &wh.URL, &wh.Secret,
			&events, &wh.Active, &createdAt); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		if err := json.Unmarshal([]byte(events), &wh.Events); err != nil {
			return nil, fmt.Errorf("unmarshal webhook events: %w", err)
		}
		wh.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, wh)
	}
	return out, rows.Err()
}

func (s *WebhookStore) Delete(ctx context.Context, tenantID, id string) error {
	if tenantID == "" {
		return store.ErrMissingTenant
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM webhooks WHERE tenant_id = ? AND id = ?`,
		tenantID, id,
	); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}
