package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/logseek/logseek/internal/importer"
	"github.com/logseek/logseek/internal/output"
	"github.com/logseek/logseek/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch a spool directory and import dropped files",
		Long: `Watch a directory and import any log file dropped into it.

Files are imported once they stop changing. Runs until interrupted.

Examples:
  logseek watch /var/spool/logseek
  logseek watch --debounce 5s`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			dir := cfg.Watch.Dir
			if len(args) > 0 {
				dir = args[0]
			}
			if dir == "" {
				return fmt.Errorf("no spool directory: pass one or set watch.dir in config")
			}

			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			imp := importer.New(s, importer.Config{
				BatchSize:     cfg.Import.BatchSize,
				Dedupe:        cfg.Import.Dedupe,
				MaxRecordSize: cfg.Import.MaxRecordSize,
			})

			opts := watch.Options{
				Extensions:    cfg.Watch.Extensions,
				MaxFileSizeMB: cfg.Import.MaxFileSizeMB,
			}
			if debounce > 0 {
				opts.Debounce = debounce
			} else if d, err := time.ParseDuration(cfg.Watch.Debounce); err == nil {
				opts.Debounce = d
			}

			w := watch.New(imp, opts)
			out := output.New(cmd.OutOrStdout())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go func() {
				for r := range w.Results() {
					if r.Err != nil {
						out.Errorf("%s: %v", r.Path, r.Err)
						continue
					}
					out.Successf("%s: %d imported, %d duplicates",
						r.Path, r.Stats.Inserted, r.Stats.Duplicates)
				}
			}()

			out.Statusf("👀", "watching %s", dir)
			if err := w.Run(ctx, dir); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Settle time before importing a new file")

	return cmd
}
