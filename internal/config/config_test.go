package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Port != 18890 {
		t.Errorf("port = %d", cfg.Gateway.Port)
	}
	if cfg.Database.Mode != "standalone" {
		t.Errorf("mode = %q", cfg.Database.Mode)
	}
	if cfg.Cooldown.Points != 10 || cfg.Cooldown.DurationSeconds != 60 {
		t.Errorf("cooldown defaults = %+v", cfg.Cooldown)
	}
}

func TestLoadParsesJSON5(t *testing.T) {
	// Comments and trailing commas are allowed.
	path := writeConfig(t, `{
		// listener
		gateway: { host: "127.0.0.1", port: 9999, },
		bindings: [
			{ agent_id: "agent-1", tenant_id: "t1", channel_id: "bot-1" },
		],
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Host != "127.0.0.1" || cfg.Gateway.Port != 9999 {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}
	if len(cfg.Bindings) != 1 || cfg.Bindings[0].AgentID != "agent-1" {
		t.Errorf("bindings = %+v", cfg.Bindings)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{ database: { mode: "standalone" } }`)
	t.Setenv("WHATSDEX_POSTGRES_DSN", "postgres://u:p@localhost/db")
	t.Setenv("WHATSDEX_MODE", "managed")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsManagedMode() {
		t.Errorf("managed mode not detected: %+v", cfg.Database)
	}
	if cfg.Database.PostgresDSN != "postgres://u:p@localhost/db" {
		t.Errorf("dsn = %q", cfg.Database.PostgresDSN)
	}
}

func TestDSNNeverComesFromFile(t *testing.T) {
	path := writeConfig(t, `{ database: { mode: "managed", postgres_dsn: "postgres://leak" } }`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.PostgresDSN != "" {
		t.Errorf("dsn leaked from file: %q", cfg.Database.PostgresDSN)
	}
	if cfg.IsManagedMode() {
		t.Error("managed mode must require an env DSN")
	}
}
