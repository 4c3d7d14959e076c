package sqlite

import (
	"fmt"

	"github.com/whatsdex/gateway/internal/store"
)

// NewSQLiteStores creates all stores backed by one SQLite file
// (standalone mode).
func NewSQLiteStores(cfg store.StoreConfig) (*store.Stores, error) {
	db, err := OpenDB(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &store.Stores{
		Credentials: NewCredentialStore(db),
		Instances:   NewChannelInstanceStore(db),
		Webhooks:    NewWebhookStore(db),
	}, nil
}
