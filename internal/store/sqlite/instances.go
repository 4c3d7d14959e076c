package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/whatsdex/gateway/internal/store"
)

// ChannelInstanceStore implements store.ChannelInstanceStore on SQLite.
type ChannelInstanceStore struct {
	db *sql.DB
}

func NewChannelInstanceStore(db *sql.DB) *ChannelInstanceStore {
	return &ChannelInstanceStore{db: db}
}

func (s *ChannelInstanceStore) Create(ctx context.Context, inst *store.ChannelInstance) error {
	if inst.TenantID == "" {
		return store.ErrMissingTenant
	}
	if inst.ID == "" {
		inst.ID = uuid.Must(uuid.NewV7()).String()
	}
	now := time.Now()
	inst.CreatedAt = now
	inst.UpdatedAt = now
	if inst.Status == "" {
		inst.Status = "disconnected"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_instances (id, tenant_id, channel_type, name, enabled, status, credentials, config, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID, inst.TenantID, inst.ChannelType, inst.Name, inst.Enabled, inst.Status,
		string(inst.Credentials), string(inst.Config),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create channel instance: %w", err)
	}
	return nil
}

func (s *ChannelInstanceStore) Get(ctx context.Context, tenantID, id string) (*store.ChannelInstance, error) {
	if tenantID == "" {
		return nil, store.ErrMissingTenant
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, channel_type, name, enabled, status, credentials, config, created_at, updated_at
		 FROM channel_instances WHERE tenant_id = ? AND id = ?`,
		tenantID, id,
	)
	inst, err := scanInstance(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return inst, err
}

func (s *ChannelInstanceStore) ListEnabled(ctx context.Context) ([]*store.ChannelInstance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, channel_type, name, enabled, status, credentials, config, created_at, updated_at
		 FROM channel_instances WHERE enabled = 1 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list channel instances: %w", err)
	}
	defer rows.Close()

	var out []*store.ChannelInstance
	for rows.Next() {
		inst, err := scanInstance(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *ChannelInstanceStore) UpdateStatus(ctx context.Context, tenantID, id, status string) error {
	if tenantID == "" {
		return store.ErrMissingTenant
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE channel_instances SET status = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		status, time.Now().Format(time.RFC3339Nano), tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("update channel instance status: %w", err)
	}
	return nil
}

func (s *ChannelInstanceStore) Delete(ctx context.Context, tenantID, id string) error {
	if tenantID == "" {
		return store.ErrMissingTenant
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM channel_instances WHERE tenant_id = ? AND id = ?`,
		tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("delete channel instance: %w", err)
	}
	return nil
}

// scanInstance maps one row; TEXT timestamps parse as RFC 3339.
func scanInstance(scan func(...any) error) (*store.ChannelInstance, error) {
	inst := &store.ChannelInstance{}
	var creds, cfg, createdAt, updatedAt string
	err := scan(&inst.ID, &inst.TenantID, &inst.ChannelType, &inst.Name, &inst.Enabled,
		&inst.Status, &creds, &cfg, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan channel instance: %w", err)
	}
	if creds != "" {
		inst.Credentials = []byte(creds)
	}
	if cfg != "" {
		inst.Config = []byte(cfg)
	}
	inst.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	inst.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return inst, nil
}
