package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/whatsdex/gateway/internal/store"
)

// PGChannelInstanceStore implements store.ChannelInstanceStore on Postgres.
type PGChannelInstanceStore struct {
	db *sql.DB
}

func NewPGChannelInstanceStore(db *sql.DB) *PGChannelInstanceStore {
	return &PGChannelInstanceStore{db: db}
}

func (s *PGChannelInstanceStore) Create(ctx context.Context, inst *store.ChannelInstance) error {
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		inst.ID, inst.TenantID, inst.ChannelType, inst.Name, inst.Enabled, inst.Status,
		inst.Credentials, inst.Config, inst.CreatedAt, inst.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create channel instance: %w", err)
	}
	return nil
}

func (s *PGChannelInstanceStore) Get(ctx context.Context, tenantID, id string) (*store.ChannelInstance, error) {
	if tenantID == "" {
		return nil, store.ErrMissingTenant
	}
	inst := &store.ChannelInstance{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, channel_type, name, enabled, status, credentials, config, created_at, updated_at
		 FROM channel_instances WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&inst.ID, &inst.TenantID, &inst.ChannelType, &inst.Name, &inst.Enabled,
		&inst.Status, &inst.Credentials, &inst.Config, &inst.CreatedAt, &inst.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel instance: %w", err)
	}
	return inst, nil
}

func (s *PGChannelInstanceStore) ListEnabled(ctx context.Context) ([]*store.ChannelInstance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, channel_type, name, enabled, status, credentials, config, created_at, updated_at
		 FROM channel_instances WHERE enabled = true ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list channel instances: %w", err)
	}
	defer rows.Close()

	var out []*store.ChannelInstance
	for rows.Next() {
		inst := &store.ChannelInstance{}
		if err := rows.Scan(&inst.ID, &inst.TenantID, &inst.ChannelType, &inst.Name, &inst.Enabled,
			&inst.Status, &inst.Credentials, &inst.Config, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan channel instance: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *PGChannelInstanceStore) UpdateStatus(ctx context.Context, tenantID, id, status string) error {
	if tenantID == "" {
		return store.ErrMissingTenant
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE channel_instances SET status = $1, updated_at = now() WHERE tenant_id = $2 AND id = $3`,
		status, tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("update channel instance status: %w", err)
	}
	return nil
}

func (s *PGChannelInstanceStore) Delete(ctx context.Context, tenantID, id string) error {
	if tenantID == "" {
		return store.ErrMissingTenant
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM channel_instances WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("delete channel instance: %w", err)
	}
	return nil
}
