package pg

import (
	"fmt"

	"github.com/whatsdex/gateway/internal/store"
)

// NewPGStores creates all stores backed by Postgres (managed mode).
func NewPGStores(cfg store.StoreConfig) (*store.Stores, error) {
	db, err := OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &store.Stores{
		Credentials: NewPGCredentialStore(db),
		Instances:   NewPGChannelInstanceStore(db),
		Webhooks:    NewPGWebhookStore(db),
	}, nil
}
