package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/ticketkeeper/internal/core/config"
	"github.com/solatis/ticketkeeper/internal/core/process"
	"github.com/solatis/ticketkeeper/internal/types"
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background ticket daemon",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop, then start the background ticket daemon",
	Args:  cobra.NoArgs,
	RunE:  runRestart,
}

func init() {
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	for _, c := range []*cobra.Command{stopCmd, restartCmd} {
		c.Flags().Duration("timeout", 30*time.Second, "how long to wait for the daemon to exit")
	}
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return stopDaemon(cmd, cfg)
}

func runRestart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := stopDaemon(cmd, cfg); err != nil {
		return err
	}

	pid, err := startDaemon(cmd, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "started; pid=%d\n", pid)
	return nil
}

// stopDaemon terminates the daemon recorded in the PID file. A daemon that
// is not running is reported, not treated as an error.
func stopDaemon(cmd *cobra.Command, cfg *config.DaemonConfig) error {
	out := cmd.OutOrStdout()

	pid, err := process.Running(cfg.PIDFile)
	if errors.Is(err, types.ErrNotRunning) {
		fmt.Fprintf(out, "pid file %s does not exist; daemon not running?\n", cfg.PIDFile)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "stopping...")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if err := process.Terminate(ctx, pid); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	return nil
}
