package config

import (
	"fmt"
	"os"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults: standalone mode on a
// local SQLite file, cooldown 10 messages per 60 seconds.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18890,
		},
		Database: DatabaseConfig{
			Mode:       "standalone",
			SQLitePath: "~/.whatsdex/gateway.db",
		},
		Cooldown: CooldownConfig{
			Points:          10,
			DurationSeconds: 60,
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error: defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// ExpandHome replaces a leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}

// applyEnvOverrides overlays env vars onto the config. Env wins over
// file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("WHATSDEX_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("WHATSDEX_SQLITE_PATH", &c.Database.SQLitePath)
	envStr("WHATSDEX_MODE", &c.Database.Mode)
	envStr("WHATSDEX_MODERATION_API_KEY", &c.Moderation.APIKey)
}
