package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/solatis/ticketkeeper/internal/core/config"
	"github.com/solatis/ticketkeeper/internal/core/logging"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

const usage = "usage: ticketkeeper start|stop|restart|status|fg|genxmlconfigs"

var (
	configFile string
	dbURL      string
	rulesFile  string
	logLevel   string
	logFormat  string
)

// usageError marks invocations that exit with status 2.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

var rootCmd = &cobra.Command{
	Use:          "ticketkeeper",
	Short:        "ticketkeeper trouble ticket daemon",
	Long:         `ticketkeeper polls open monitoring events, opens trouble tickets for events matching the rule file and auto-clears the rest.`,
	Version:      Version,
	SilenceUsage: true,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return &usageError{msg: fmt.Sprintf("unknown command %q\n%s", args[0], usage)}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return &usageError{msg: usage}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&rulesFile, "rules", "", "rule file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (json, text)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// ExitCode maps an Execute error to a process exit status.
func ExitCode(err error) int {
	var ue *usageError
	if errors.As(err, &ue) {
		return 2
	}
	return 1
}

// loadConfig reads daemon settings and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.DaemonConfig, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("db-url") {
		cfg.DBURL = dbURL
	}
	if cmd.Flags().Changed("rules") {
		cfg.RulesFile = rulesFile
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = logFormat
	}

	return cfg, nil
}

// consoleLogger builds a stderr-only logger for the short-lived commands.
func consoleLogger(cfg *config.DaemonConfig) (*logrus.Logger, io.Closer, error) {
	return logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Console: os.Stderr,
	})
}
