package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kebairia/bacli/internal/config"
	"github.com/kebairia/bacli/internal/logger"
	"github.com/kebairia/bacli/internal/operations"
)

// ConfigFile is the path to the YAML configuration.
var (
	ConfigFile string
	// rootCmd is the base command for bacli.
	rootCmd = &cobra.Command{
		Use:   "bacli",
		Short: "CLI tool for document store backup, restore and retention",
		Long: `bacli captures the document store into compressed archives,
uploads them to object storage, restores them collection by collection
and prunes old backups, based on your YAML configuration file.`,
		SilenceUsage: true,
	}
)

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	logger.Cleanup()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&ConfigFile, "config", "c", "./configs/config.yaml", "path to YAML config file")

	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(incrementalCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(scheduleCmd)
}

// session is one command invocation's configuration, logger and connected
// operation manager.
type session struct {
	cfg config.Config
	log logger.Logger
	ops *operations.OperationManager
}

// openSession loads ConfigFile, initializes logging and connects to the
// stores. reg may be nil for one-shot commands.
func openSession(ctx context.Context, reg prometheus.Registerer) (*session, error) {
	var cfg config.Config
	if err := cfg.Load(ConfigFile); err != nil {
		return nil, err
	}

	log, err := logger.Init(logger.Options{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	ops, err := operations.NewOperationManager(ctx, cfg, log, reg)
	if err != nil {
		log.Error("operation manager init failed", "error", err.Error())
		return nil, err
	}
	return &session{cfg: cfg, log: log, ops: ops}, nil
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.ops.Close(ctx); err != nil {
		s.log.Warn("closing connections failed", "error", err.Error())
	}
}

// withSession runs fn with a connected session and a context bounded by
// backup.timeout.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), s.cfg.Backup.Timeout)
	defer cancel()

	if err := fn(ctx, s); err != nil {
		s.log.Error("command failed", "command", cmd.Name(), "error", err.Error())
		return err
	}
	return nil
}
