// Package config provides configuration management for ticketkeeper.
//
// Two files configure the daemon: a YAML settings file (viper) for where
// things live and how the process logs, and the INI rule file holding the
// ticket command, cycle time and the rule sections.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
)

// LogConfig controls logger construction.
type LogConfig struct {
	File       string
	Level      string
	Format     string
	MaxSizeMB  int
	MaxBackups int
}

// DaemonConfig holds process-level settings for the ticket daemon.
type DaemonConfig struct {
	Home          string
	RulesFile     string
	DBURL         string
	PIDFile       string
	Log           LogConfig
	MetricsAddr   string
	HealthAddr    string
	TicketTimeout time.Duration
}

// DefaultHome returns $ZENHOME when set, else ~/.ticketkeeper.
func DefaultHome() string {
	if home := os.Getenv("ZENHOME"); home != "" {
		return home
	}
	home, err := homedir.Expand("~/.ticketkeeper")
	if err != nil {
		return ".ticketkeeper"
	}
	return home
}

// DefaultDaemonConfig returns configuration with default values rooted at home.
func DefaultDaemonConfig(home string) *DaemonConfig {
	return &DaemonConfig{
		Home:      home,
		RulesFile: filepath.Join(home, "etc", "ticketkeeper.conf"),
		DBURL:     "sqlite://" + filepath.Join(home, "var", "events.db"),
		PIDFile:   filepath.Join(home, "var", "ticketkeeper.pid"),
		Log: LogConfig{
			File:       filepath.Join(home, "log", "ticketkeeper.log"),
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// expandPath resolves a leading ~ to the user's home directory.
func expandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("failed to expand path %q: %w", p, err)
	}
	return expanded, nil
}

// validateConfig checks log settings, paths and timeouts.
func validateConfig(cfg *DaemonConfig) error {
	if cfg.RulesFile == "" {
		return fmt.Errorf("rules_file must be set")
	}
	if cfg.PIDFile == "" {
		return fmt.Errorf("pid_file must be set")
	}
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level %q: %w", cfg.Log.Level, err)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format)
	}
	if cfg.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be positive, got %d", cfg.Log.MaxSizeMB)
	}
	if cfg.Log.MaxBackups < 0 {
		return fmt.Errorf("log.max_backups must not be negative, got %d", cfg.Log.MaxBackups)
	}
	if cfg.TicketTimeout < 0 {
		return fmt.Errorf("ticket.timeout must not be negative, got %v", cfg.TicketTimeout)
	}
	return nil
}
