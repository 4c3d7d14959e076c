package store

// Stores is the top-level container for all storage backends: Postgres
// in managed mode, one SQLite file in standalone mode.
type Stores struct {
	Credentials CredentialStore
	Instances   ChannelInstanceStore
	Webhooks    WebhookStore
}

// StoreConfig carries backend connection settings.
type StoreConfig struct {
	PostgresDSN string
	SQLitePath  string
}
