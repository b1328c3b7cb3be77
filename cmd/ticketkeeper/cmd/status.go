package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/ticketkeeper/internal/core/process"
	"github.com/solatis/ticketkeeper/internal/core/server"
	"github.com/solatis/ticketkeeper/internal/types"
	"github.com/spf13/cobra"
)

const healthProbeTimeout = 2 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the ticket daemon is running",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	pid, err := process.Running(cfg.PIDFile)
	if errors.Is(err, types.ErrNotRunning) {
		fmt.Fprintln(out, "not running")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "program running; pid=%d\n", pid)

	if cfg.HealthAddr == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), healthProbeTimeout)
	defer cancel()
	status, err := server.Check(ctx, cfg.HealthAddr)
	if err != nil {
		fmt.Fprintf(out, "health: unreachable (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "health: %s\n", status)
	return nil
}
