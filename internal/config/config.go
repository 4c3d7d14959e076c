// Package config holds the process configuration: a JSON5 file overlaid
// with environment variables. Secrets (DSNs, API keys) are never read
// from the file, only from env.
package config

// Config is the root configuration for the gateway.
type Config struct {
	Gateway    GatewayConfig    `json:"gateway"`
	Database   DatabaseConfig   `json:"database,omitempty"`
	Cooldown   CooldownConfig   `json:"cooldown,omitempty"`
	Moderation ModerationConfig `json:"moderation,omitempty"`
	Access     AccessConfig     `json:"access,omitempty"`
	Features   FeaturesConfig   `json:"features,omitempty"`
	Agents     []AgentConfig    `json:"agents,omitempty"`
	Bindings   []AgentBinding   `json:"bindings,omitempty"`
	Commands   []CommandConfig  `json:"commands,omitempty"`
}

// GatewayConfig configures the HTTP listener.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseConfig selects the storage backend.
// PostgresDSN is NEVER read from the config file (secret) — only from env
// WHATSDEX_POSTGRES_DSN.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`
	Mode        string `json:"mode,omitempty"`        // "standalone" (default) or "managed"
	SQLitePath  string `json:"sqlite_path,omitempty"` // standalone mode storage file
}

// IsManagedMode reports whether the gateway runs multi-tenant on Postgres.
func (c *Config) IsManagedMode() bool {
	return c.Database.Mode == "managed" && c.Database.PostgresDSN != ""
}

// CooldownConfig configures the bot-wide message budget per user.
type CooldownConfig struct {
	Points          int `json:"points"`           // messages allowed per window
	DurationSeconds int `json:"duration_seconds"` // window length
}

// ModerationConfig configures the content moderation collaborator.
// APIKey comes from env WHATSDEX_MODERATION_API_KEY only.
type ModerationConfig struct {
	Enabled  bool   `json:"enabled,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	APIKey   string `json:"-"`
}

// AccessConfig lists process-wide privileged and blocked user IDs.
type AccessConfig struct {
	Owners    []string `json:"owners,omitempty"`
	BotAdmins []string `json:"bot_admins,omitempty"`
	Banned    []string `json:"banned,omitempty"`
}

// FeaturesConfig holds per-tenant capability switches. Messaging is on
// unless a tenant is listed here.
type FeaturesConfig struct {
	MessagingDisabledTenants []string `json:"messaging_disabled_tenants,omitempty"`
}

// AgentConfig declares a statically-configured agent.
type AgentConfig struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TenantID string `json:"tenant_id"`
}

// AgentBinding maps a channel instance to an agent.
type AgentBinding struct {
	AgentID   string `json:"agent_id"`
	TenantID  string `json:"tenant_id"`
	ChannelID string `json:"channel_id"` // channel instance key
}

// CommandConfig declares one chat command with its permission set and
// optional per-command cooldown.
type CommandConfig struct {
	Name             string `json:"name"`
	Owner            bool   `json:"owner,omitempty"`
	Group            bool   `json:"group,omitempty"`
	Private          bool   `json:"private,omitempty"`
	Admin            bool   `json:"admin,omitempty"`
	BotAdmin         bool   `json:"bot_admin,omitempty"`
	Premium          bool   `json:"premium,omitempty"`
	CooldownPoints   int    `json:"cooldown_points,omitempty"`
	CooldownDuration int    `json:"cooldown_duration_seconds,omitempty"`
}
