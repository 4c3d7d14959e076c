package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/whatsdex/gateway/internal/store"
)

// PGWebhookStore implements store.WebhookStore on Postgres.
type PGWebhookStore struct {
	db *sql.DB
}

func NewPGWebhookStore(db *sql.DB) *PGWebhookStore {
	return &PGWebhookStore{db: db}
}

func (s *PGWebhookStore) Create(ctx context.Context, wh *store.Webhook) error {
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		wh.ID, wh.TenantID, wh.Name, wh.URL, wh.Secret, events, wh.Active, wh.CreatedAt,
	); err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}
	return nil
}

func (s *PGWebhookStore) ListActive(ctx context.Context, tenantID string) ([]*store.Webhook, error) {
	if tenantID == "" {
		return nil, store.ErrMissingTenant
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, url, secret, events, active, created_at
		 FROM webhooks WHERE tenant_id = $1 AND active = true`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var out []*store.Webhook
	for rows.Next() {
		wh := &store.Webhook{}
		var events []byte
		if err := rows.Scan(&wh.ID, &wh.TenantID, &wh.Name, &wh.URL, &wh.Secret,
			&events, &wh.Active, &wh.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		if err := json.Unmarshal(events, &wh.Events); err != nil {
			return nil, fmt.Errorf("unmarshal webhook events: %w", err)
		}
		out = append(out, wh)
	}
	return out, rows.Err()
}

func (s *PGWebhookStore) Delete(ctx context.Context, tenantID, id string) error {
	if tenantID == "" {
		return store.ErrMissingTenant
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM webhooks WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}
