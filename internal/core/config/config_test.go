package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ticketkeeper.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults under ZENHOME", func(t *testing.T) {
		t.Setenv("ZENHOME", "/opt/zenoss")

		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.RulesFile != "/opt/zenoss/etc/ticketkeeper.conf" {
			t.Errorf("RulesFile = %q", cfg.RulesFile)
		}
		if cfg.PIDFile != "/opt/zenoss/var/ticketkeeper.pid" {
			t.Errorf("PIDFile = %q", cfg.PIDFile)
		}
		if cfg.DBURL != "sqlite:///opt/zenoss/var/events.db" {
			t.Errorf("DBURL = %q", cfg.DBURL)
		}
		if cfg.Log.MaxSizeMB != 10 || cfg.Log.MaxBackups != 3 {
			t.Errorf("log rotation = %d/%d, want 10/3", cfg.Log.MaxSizeMB, cfg.Log.MaxBackups)
		}
		if cfg.TicketTimeout != 0 {
			t.Errorf("TicketTimeout = %v, want 0", cfg.TicketTimeout)
		}
	})

	t.Run("config file values", func(t *testing.T) {
		t.Setenv("ZENHOME", "/opt/zenoss")
		path := writeConfig(t, `
rules_file: /etc/tt/rules.conf
db_url: postgres://tt@db/events
log:
  level: debug
  format: json
metrics:
  addr: ":9108"
ticket:
  timeout: 45s
`)

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.RulesFile != "/etc/tt/rules.conf" {
			t.Errorf("RulesFile = %q", cfg.RulesFile)
		}
		if cfg.DBURL != "postgres://tt@db/events" {
			t.Errorf("DBURL = %q", cfg.DBURL)
		}
		if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
			t.Errorf("Log = %+v", cfg.Log)
		}
		if cfg.MetricsAddr != ":9108" {
			t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
		}
		if cfg.TicketTimeout != 45*time.Second {
			t.Errorf("TicketTimeout = %v, want 45s", cfg.TicketTimeout)
		}
	})

	t.Run("environment overrides config file", func(t *testing.T) {
		path := writeConfig(t, "log:\n  level: warn\n")
		t.Setenv("TT_LOG_LEVEL", "error")

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Log.Level != "error" {
			t.Errorf("Log.Level = %q, want error", cfg.Log.Level)
		}
	})

	t.Run("home moves path defaults", func(t *testing.T) {
		t.Setenv("ZENHOME", "")
		path := writeConfig(t, "home: /srv/tt\n")

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.PIDFile != "/srv/tt/var/ticketkeeper.pid" {
			t.Errorf("PIDFile = %q, want under /srv/tt", cfg.PIDFile)
		}
	})

	t.Run("invalid log format", func(t *testing.T) {
		t.Setenv("TT_LOG_FORMAT", "xml")

		if _, err := LoadConfig(""); err == nil {
			t.Error("expected error for invalid log format")
		}
	})

	t.Run("invalid log level", func(t *testing.T) {
		t.Setenv("TT_LOG_LEVEL", "loud")

		if _, err := LoadConfig(""); err == nil {
			t.Error("expected error for invalid log level")
		}
	})

	t.Run("missing config file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}
