// Package cmd provides the CLI commands for logseek.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/logseek/logseek/internal/config"
	"github.com/logseek/logseek/internal/logging"
	"github.com/logseek/logseek/internal/store"
	"github.com/logseek/logseek/pkg/version"
)

var (
	configPath string
	debugMode  bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the logseek CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logseek",
		Short: "Local full-text search over log records",
		Long: `logseek imports line-oriented log files into a local record store
and answers full-text queries over them.

Records are deduplicated by content fingerprint, imports are committed
in atomic batches, and every committed record is searchable immediately.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("logseek version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: built-in defaults)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.logseek/logs/")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

func setupLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	// Command output owns the terminal; logs go to the file only.
	logCfg.WriteToStderr = false
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Logging is best-effort; the CLI still works without it.
		return nil
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	if debugMode {
		slog.Info("debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}
	return nil
}

// loadConfig resolves configuration for the current invocation.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// openStore opens the record store described by cfg and logs a
// startup snapshot of its contents.
func openStore(cfg *config.Config) (*store.Store, error) {
	s, err := store.Open(store.Options{
		Path:    cfg.Store.Path,
		Backend: cfg.Index.Backend,
	})
	if err != nil {
		return nil, err
	}
	if stats, err := s.Stats(context.Background()); err == nil {
		slog.Info("store_opened",
			slog.String("path", cfg.Store.Path),
			slog.String("backend", cfg.Index.Backend),
			slog.Int64("records", stats.RecordCount),
			slog.Int64("size_bytes", stats.SizeOnDiskBytes))
	}
	return s, nil
}
