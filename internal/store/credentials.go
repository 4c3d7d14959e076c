// Package store defines the storage interfaces consumed by the gateway
// core. Backends live in store/pg (managed mode) and store/sqlite
// (standalone mode).
package store

import (
	"context"
	"errors"
)

// ErrMissingTenant is returned when a store operation is attempted
// without a tenant or bot scope. Scoping is mandatory: silently
// defaulting to a shared scope would leak data across tenants.
var ErrMissingTenant = errors.New("store: tenant and bot scope required")

// StoreError wraps a storage-layer failure (network, serialization).
// Adapters must not proceed to Connect with partially-read credentials
// when one of these surfaces.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "credential store " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

// KeyCategory names a class of auxiliary rotating key material persisted
// alongside the primary credential record. The set is closed: records
// are keyed "{category}-{id}" and anything outside these categories is a
// programming error.
type KeyCategory string

const (
	KeyPreKey          KeyCategory = "pre-key"
	KeySession         KeyCategory = "session"
	KeySenderKey       KeyCategory = "sender-key"
	KeyAppStateSyncKey KeyCategory = "app-state-sync-key"
	KeyAppStateVersion KeyCategory = "app-state-sync-version"
)

// KnownCategories lists every valid auxiliary key category.
var KnownCategories = []KeyCategory{
	KeyPreKey, KeySession, KeySenderKey, KeyAppStateSyncKey, KeyAppStateVersion,
}

// Valid reports whether the category is one of KnownCategories.
func (c KeyCategory) Valid() bool {
	for _, known := range KnownCategories {
		if c == known {
			return true
		}
	}
	return false
}

// PrimaryRecordID is the record ID of the one mandatory credentials
// record per (tenant, bot). All other records are "{category}-{id}".
const PrimaryRecordID = "creds"

// CredentialStore is durable per-tenant, per-bot key/value persistence
// for protocol authentication material. Payloads are opaque binary and
// must round-trip byte-exact.
type CredentialStore interface {
	// Get returns the record value, or (nil, nil) when absent. Absence is
	// not an error.
	Get(ctx context.Context, tenantID, botID, recordID string) ([]byte, error)

	// Set upserts a record. Writes to the same (tenant, bot, record) key
	// are serialized to avoid lost updates from read-then-write patterns.
	Set(ctx context.Context, tenantID, botID, recordID string, value []byte) error

	// Delete logically removes a record. Backends that cannot hard-delete
	// cheaply may write a tombstone; Get treats tombstones as absence.
	Delete(ctx context.Context, tenantID, botID, recordID string) error

	// GetKeys bulk-reads auxiliary records "{category}-{id}" for each id.
	// Absent ids resolve to a nil value in the result map; one missing
	// sub-key never fails the batch.
	GetKeys(ctx context.Context, tenantID, botID string, category KeyCategory, ids []string) (map[string][]byte, error)

	// SetKeys bulk-writes auxiliary records. A nil value deletes the
	// record for that id.
	SetKeys(ctx context.Context, tenantID, botID string, category KeyCategory, values map[string][]byte) error
}

// AuxRecordID builds the composite record ID for an auxiliary key.
func AuxRecordID(category KeyCategory, id string) string {
	return string(category) + "-" + id
}
