package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/solatis/ticketkeeper/internal/core/config"
	"github.com/solatis/ticketkeeper/internal/core/daemon"
	"github.com/solatis/ticketkeeper/internal/core/db"
	"github.com/solatis/ticketkeeper/internal/core/logging"
	"github.com/solatis/ticketkeeper/internal/core/metrics"
	"github.com/solatis/ticketkeeper/internal/core/process"
	"github.com/solatis/ticketkeeper/internal/core/server"
	"github.com/solatis/ticketkeeper/internal/core/store"
	"github.com/solatis/ticketkeeper/internal/ticket"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:     "run",
	Aliases: []string{"fg"},
	Short:   "Run the ticket daemon in the foreground",
	Args:    cobra.NoArgs,
	RunE:    runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("background", false, "log to the log file only (used by start)")
	_ = runCmd.Flags().MarkHidden("background")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.RulesFile); err != nil {
		return fmt.Errorf("%s is missing, aborting: %w", cfg.RulesFile, err)
	}

	background, _ := cmd.Flags().GetBool("background")
	logOpts := logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}
	if !background {
		logOpts.Console = os.Stderr
		if !cmd.Flags().Changed("log-level") {
			logOpts.Level = "debug"
		}
	}
	log, logCloser, err := logging.New(logOpts)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logCloser.Close()

	pidFile, err := process.Acquire(cfg.PIDFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := pidFile.Release(); err != nil {
			log.WithError(err).Warn("failed to remove pid file")
		}
	}()

	log.WithFields(logrus.Fields{
		"version":    Version,
		"pid":        os.Getpid(),
		"rules":      cfg.RulesFile,
		"background": background,
	}).Info("Starting ticketkeeper")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rules, err := config.LoadRuleFile(cfg.RulesFile)
	if err != nil {
		return fmt.Errorf("failed to load rule file: %w", err)
	}

	database, err := db.Open(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := db.MigrateUp(ctx, database, log); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		srv, err := metrics.Listen(cfg.MetricsAddr, m)
		if err != nil {
			return err
		}
		go serveBackground(log, "metrics", srv.Serve)
		defer shutdownBackground(log, "metrics", srv.Shutdown)
		log.WithField("addr", srv.Addr().String()).Info("metrics endpoint listening")
	}

	var health daemon.HealthReporter
	if cfg.HealthAddr != "" {
		srv, err := server.NewGRPCServer(cfg.HealthAddr)
		if err != nil {
			return fmt.Errorf("failed to create health server: %w", err)
		}
		go serveBackground(log, "health", srv.Start)
		defer shutdownBackground(log, "health", srv.Shutdown)
		health = srv
		log.WithField("addr", srv.Addr().String()).Info("health endpoint listening")
	}

	d, err := daemon.New(daemon.Options{
		Rules:   rules,
		Store:   store.NewSQLStore(queries, store.DefaultUser),
		Runner:  ticket.NewExecRunner(cfg.TicketTimeout, log),
		Metrics: m,
		Health:  health,
		Log:     log,
	})
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Run(ctx); err != nil {
		return err
	}
	log.Info("ticketkeeper shutting down")
	return nil
}

func serveBackground(log logrus.FieldLogger, name string, serve func() error) {
	if err := serve(); err != nil {
		log.WithError(err).Errorf("%s server stopped", name)
	}
}

func shutdownBackground(log logrus.FieldLogger, name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.WithError(err).Warnf("%s server shutdown", name)
	}
}
