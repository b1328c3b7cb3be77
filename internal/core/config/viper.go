package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads daemon settings using viper.
// CLI flags > environment (TT_*) > config file > defaults precedence; flags are
// applied by the caller.
func LoadConfig(configPath string) (*DaemonConfig, error) {
	v := viper.New()

	home := DefaultHome()
	if err := v.BindEnv("home", "ZENHOME"); err != nil {
		return nil, fmt.Errorf("failed to bind ZENHOME: %w", err)
	}
	v.SetDefault("home", home)

	v.SetEnvPrefix("TT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		path, err := expandPath(configPath)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Path defaults depend on home, which the file or environment may move.
	defaults := DefaultDaemonConfig(v.GetString("home"))
	v.SetDefault("rules_file", defaults.RulesFile)
	v.SetDefault("db_url", defaults.DBURL)
	v.SetDefault("pid_file", defaults.PIDFile)
	v.SetDefault("log.file", defaults.Log.File)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("log.max_size_mb", defaults.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", defaults.Log.MaxBackups)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("health.addr", "")
	v.SetDefault("ticket.timeout", "0s")

	cfg := &DaemonConfig{
		Home:      v.GetString("home"),
		RulesFile: v.GetString("rules_file"),
		DBURL:     v.GetString("db_url"),
		PIDFile:   v.GetString("pid_file"),
		Log: LogConfig{
			File:       v.GetString("log.file"),
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
		},
		MetricsAddr:   v.GetString("metrics.addr"),
		HealthAddr:    v.GetString("health.addr"),
		TicketTimeout: v.GetDuration("ticket.timeout"),
	}

	for _, p := range []*string{&cfg.Home, &cfg.RulesFile, &cfg.PIDFile, &cfg.Log.File} {
		expanded, err := expandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
