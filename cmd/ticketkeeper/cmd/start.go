package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/solatis/ticketkeeper/internal/core/config"
	"github.com/solatis/ticketkeeper/internal/core/process"
	"github.com/solatis/ticketkeeper/internal/types"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	startTimeout = 10 * time.Second
	pollInterval = 100 * time.Millisecond
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ticket daemon in the background",
	Args:  cobra.NoArgs,
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	pid, err := startDaemon(cmd, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "started; pid=%d\n", pid)
	return nil
}

// startDaemon launches `run --background` as a detached child and waits for
// it to take the PID file.
func startDaemon(cmd *cobra.Command, cfg *config.DaemonConfig) (int, error) {
	if _, err := os.Stat(cfg.RulesFile); err != nil {
		return 0, fmt.Errorf("%s is missing, aborting start", cfg.RulesFile)
	}
	if pid, err := process.Running(cfg.PIDFile); err == nil {
		return 0, fmt.Errorf("%w: pid=%d", types.ErrAlreadyRunning, pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to locate executable: %w", err)
	}

	pid, err := process.Detach(childArgs(exe, cmd), os.Environ())
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), startTimeout)
	defer cancel()
	if err := waitStarted(ctx, cfg.PIDFile, pid); err != nil {
		return 0, fmt.Errorf("%w (see %s)", err, cfg.Log.File)
	}
	return pid, nil
}

// childArgs forwards the persistent flags set on this invocation.
func childArgs(exe string, cmd *cobra.Command) []string {
	argv := []string{exe, "run", "--background"}
	persistent := cmd.Root().PersistentFlags()
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if persistent.Lookup(f.Name) != nil {
			argv = append(argv, "--"+f.Name+"="+f.Value.String())
		}
	})
	return argv
}

func waitStarted(ctx context.Context, pidPath string, child int) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		pid, err := process.Running(pidPath)
		if err == nil && pid == child {
			return nil
		}
		if err != nil && !errors.Is(err, types.ErrNotRunning) {
			return err
		}
		if !process.Alive(child) {
			return fmt.Errorf("daemon exited during startup")
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("daemon did not write its pid file: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
