package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/whatsdex/gateway/internal/store"
)

// PGCredentialStore implements store.CredentialStore on Postgres. Values
// are stored as BYTEA, so binary protocol keys round-trip without any
// encoding layer. Deletes are hard deletes; Postgres handles them
// cheaply.
type PGCredentialStore struct {
	db   *sql.DB
	keys store.KeyMutex
}

func NewPGCredentialStore(db *sql.DB) *PGCredentialStore {
	return &PGCredentialStore{db: db}
}

func scopeKey(tenantID, botID, recordID string) string {
	return tenantID + "/" + botID + "/" + recordID
}

func (s *PGCredentialStore) Get(ctx context.Context, tenantID, botID, recordID string) ([]byte, error) {
	if tenantID == "" || botID == "" {
		return nil, store.ErrMissingTenant
	}
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM credentials WHERE tenant_id = $1 AND bot_id = $2 AND record_id = $3`,
		tenantID, botID, recordID,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &store.StoreError{Op: "get", Err: err}
	}
	return value, nil
}

func (s *PGCredentialStore) Set(ctx context.Context, tenantID, botID, recordID string, value []byte) error {
	if tenantID == "" || botID == "" {
		return store.ErrMissingTenant
	}
	unlock := s.keys.Lock(scopeKey(tenantID, botID, recordID))
	defer unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (tenant_id, bot_id, record_id, value, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (tenant_id, bot_id, record_id)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		tenantID, botID, recordID, value,
	)
	if err != nil {
		return &store.StoreError{Op: "set", Err: err}
	}
	return nil
}

func (s *PGCredentialStore) Delete(ctx context.Context, tenantID, botID, recordID string) error {
	if tenantID == "" || botID == "" {
		return store.ErrMissingTenant
	}
	unlock := s.keys.Lock(scopeKey(tenantID, botID, recordID))
	defer unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE tenant_id = $1 AND bot_id = $2 AND record_id = $3`,
		tenantID, botID, recordID,
	)
	if err != nil {
		return &store.StoreError{Op: "delete", Err: err}
	}
	return nil
}

func (s *PGCredentialStore) GetKeys(ctx context.Context, tenantID, botID string, category store.KeyCategory, ids []string) (map[string][]byte, error) {
	if tenantID == "" || botID == "" {
		return nil, store.ErrMissingTenant
	}
	// Absent ids resolve to nil entries, never a batch failure.
	result := make(map[string][]byte, len(ids))
	for _, id := range ids {
		result[id] = nil
	}

	recordIDs := make([]string, len(ids))
	for i, id := range ids {
		recordIDs[i] = store.AuxRecordID(category, id)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, value FROM credentials
		 WHERE tenant_id = $1 AND bot_id = $2 AND record_id = ANY($3)`,
		tenantID, botID, recordIDs,
	)
	if err != nil {
		return nil, &store.StoreError{Op: "get-keys", Err: err}
	}
	defer rows.Close()

	prefix := string(category) + "-"
	for rows.Next() {
		var recordID string
		var value []byte
		if err := rows.Scan(&recordID, &value); err != nil {
			return nil, &store.StoreError{Op: "get-keys", Err: err}
		}
		result[recordID[len(prefix):]] = value
	}
	if err := rows.Err(); err != nil {
		return nil, &store.StoreError{Op: "get-keys", Err: err}
	}
	return result, nil
}

func (s *PGCredentialStore) SetKeys(ctx context.Context, tenantID, botID string, category store.KeyCategory, values map[string][]byte) error {
	if tenantID == "" || botID == "" {
		return store.ErrMissingTenant
	}
	unlock := s.keys.Lock(scopeKey(tenantID, botID, string(category)))
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &store.StoreError{Op: "set-keys", Err: err}
	}
	defer tx.Rollback()

	for id, value := range values {
		recordID := store.AuxRecordID(category, id)
		if value == nil {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM credentials WHERE tenant_id = $1 AND bot_id = $2 AND record_id = $3`,
				tenantID, botID, recordID,
			); err != nil {
				return &store.StoreError{Op: "set-keys", Err: err}
			}
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO credentials (tenant_id, bot_id, record_id, value, updated_at)
			 VALUES ($1, $2, $3, $4, now())
			 ON CONFLICT (tenant_id, bot_id, record_id)
			 DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			tenantID, botID, recordID, value,
		); err != nil {
			return &store.StoreError{Op: "set-keys", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &store.StoreError{Op: "set-keys", Err: err}
	}
	return nil
}
