// Package sqlite implements the credential store on SQLite for
// standalone (single-node) deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/whatsdex/gateway/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
    tenant_id  TEXT NOT NULL,
    bot_id     TEXT NOT NULL,
    record_id  TEXT NOT NULL,
    value      BLOB,
    deleted    INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY (tenant_id, bot_id, record_id)
);

CREATE TABLE IF NOT EXISTS channel_instances (
    id           TEXT PRIMARY KEY,
    tenant_id    TEXT NOT NULL,
    channel_type TEXT NOT NULL,
    name         TEXT NOT NULL,
    enabled      INTEGER NOT NULL DEFAULT 1,
    status       TEXT NOT NULL DEFAULT 'disconnected',
    credentials  TEXT,
    config       TEXT,
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS webhooks (
    id         TEXT PRIMARY KEY,
    tenant_id  TEXT NOT NULL,
    name       TEXT NOT NULL DEFAULT '',
    url        TEXT NOT NULL,
    secret     TEXT NOT NULL,
    events     TEXT NOT NULL,
    active     INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL
);
`

// CredentialStore implements store.CredentialStore on SQLite. Deletes are
// tombstone writes: SQLite holds the whole database in one file and hard
// deletes churn pages under concurrent readers; Get treats a tombstone as
// absence.
type CredentialStore struct {
	db   *sql.DB
	keys store.KeyMutex
}

// OpenDB opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for tests.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single writer: SQLite serializes writes anyway, and a pool of one
	// avoids SQLITE_BUSY under concurrent adapters.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return db, nil
}

// Open opens the database at path and returns a credential store over it.
func Open(path string) (*CredentialStore, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return &CredentialStore{db: db}, nil
}

// NewCredentialStore wraps an already-open database handle.
func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Close releases the underlying database handle.
func (s *CredentialStore) Close() error { return s.db.Close() }

func scopeKey(tenantID, botID, recordID string) string {
	return tenantID + "/" + botID + "/" + recordID
}

func (s *CredentialStore) Get(ctx context.Context, tenantID, botID, recordID string) ([]byte, error) {
	if tenantID == "" || botID == "" {
		return nil, store.ErrMissingTenant
	}
	var value []byte
	var deleted int
	err := s.db.QueryRowContext(ctx,
		`SELECT value, deleted FROM credentials WHERE tenant_id = ? AND bot_id = ? AND record_id = ?`,
		tenantID, botID, recordID,
	).Scan(&value, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &store.StoreError{Op: "get", Err: err}
	}
	if deleted != 0 {
		return nil, nil
	}
	return value, nil
}

func (s *CredentialStore) Set(ctx context.Context, tenantID, botID, recordID string, value []byte) error {
	if tenantID == "" || botID == "" {
		return store.ErrMissingTenant
	}
	unlock := s.keys.Lock(scopeKey(tenantID, botID, recordID))
	defer unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (tenant_id, bot_id, record_id, value, deleted, updated_at)
		 VALUES (?, ?, ?, ?, 0, datetime('now'))
		 ON CONFLICT (tenant_id, bot_id, record_id)
		 DO UPDATE SET value = excluded.value, deleted = 0, updated_at = excluded.updated_at`,
		tenantID, botID, recordID, value,
	)
	if err != nil {
		return &store.StoreError{Op: "set", Err: err}
	}
	return nil
}

func (s *CredentialStore) Delete(ctx context.Context, tenantID, botID, recordID string) error {
	if tenantID == "" || botID == "" {
		return store.ErrMissingTenant
	}
	unlock := s.keys.Lock(scopeKey(tenantID, botID, recordID))
	defer unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET value = NULL, deleted = 1, updated_at = datetime('now')
		 WHERE tenant_id = ? AND bot_id = ? AND record_id = ?`,
		tenantID, botID, recordID,
	)
	if err != nil {
		return &store.StoreError{Op: "delete", Err: err}
	}
	return nil
}

func (s *CredentialStore) GetKeys(ctx context.Context, tenantID, botID string, category store.KeyCategory, ids []string) (map[string][]byte, error) {
	if tenantID == "" || botID == "" {
		return nil, store.ErrMissingTenant
	}
	result := make(map[string][]byte, len(ids))
	for _, id := range ids {
		result[id] = nil
	}
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+2)
	args = append(args, tenantID, botID)
	for _, id := range ids {
		args = append(args, store.AuxRecordID(category, id))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, value FROM credentials
		 WHERE tenant_id = ? AND bot_id = ? AND deleted = 0 AND record_id IN (`+placeholders+`)`,
		args...,
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
		result[strings.TrimPrefix(recordID, prefix)] = value
	}
	if err := rows.Err(); err != nil {
		return nil, &store.StoreError{Op: "get-keys", Err: err}
	}
	return result, nil
}

func (s *CredentialStore) SetKeys(ctx context.Context, tenantID, botID string, category store.KeyCategory, values map[string][]byte) error {
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
				`UPDATE credentials SET value = NULL, deleted = 1, updated_at = datetime('now')
				 WHERE tenant_id = ? AND bot_id = ? AND record_id = ?`,
				tenantID, botID, recordID,
			); err != nil {
				return &store.StoreError{Op: "set-keys", Err: err}
			}
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO credentials (tenant_id, bot_id, record_id, value, deleted, updated_at)
			 VALUES (?, ?, ?, ?, 0, datetime('now'))
			 ON CONFLICT (tenant_id, bot_id, record_id)
			 DO UPDATE SET value = excluded.value, deleted = 0, updated_at = excluded.updated_at`,
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
