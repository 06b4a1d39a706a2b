package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/logseek/logseek/internal/importer"
	"github.com/logseek/logseek/internal/output"
)

// importOptions holds CLI flags for import.
type importOptions struct {
	batchSize     int
	noDedupe      bool
	maxRecordSize int
	quiet         bool
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import log files into the record store",
		Long: `Import one or more line-oriented log files.

Each non-empty line becomes one record. Records whose content was
already imported are skipped. Files ending in .gz are decompressed
on the fly; "-" reads from stdin.

Examples:
  logseek import /var/log/app.log
  logseek import dump-*.log.gz
  zcat archive.gz | logseek import -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Records per atomic commit (default from config)")
	cmd.Flags().BoolVar(&opts.noDedupe, "no-dedupe", false, "Keep duplicate records instead of skipping them")
	cmd.Flags().IntVar(&opts.maxRecordSize, "max-record-size", 0, "Per-line byte ceiling (default from config)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress progress output")

	return cmd
}

func runImport(ctx context.Context, cmd *cobra.Command, paths []string, opts importOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	out := output.New(cmd.OutOrStdout())

	// Ctrl-C finishes the current batch, then stops; committed
	// batches stay committed.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	impCfg := importer.Config{
		BatchSize:     cfg.Import.BatchSize,
		Dedupe:        cfg.Import.Dedupe && !opts.noDedupe,
		MaxRecordSize: cfg.Import.MaxRecordSize,
	}
	if opts.batchSize > 0 {
		impCfg.BatchSize = opts.batchSize
	}
	if opts.maxRecordSize > 0 {
		impCfg.MaxRecordSize = opts.maxRecordSize
	}
	if !opts.quiet {
		impCfg.Progress = func(p importer.Progress) {
			if p.SizeHint > 0 {
				out.Progress(int(p.BytesRead), int(p.SizeHint),
					fmt.Sprintf("%d records", p.Inserted))
			} else {
				out.Progress(p.LinesRead, 0,
					fmt.Sprintf("%s lines read", humanize.Comma(int64(p.LinesRead))))
			}
		}
	}

	imp := importer.New(s, impCfg)

	var total importer.RunStats
	for _, path := range paths {
		stats, err := runOneImport(ctx, imp, path)
		if !opts.quiet {
			out.ProgressDone()
		}
		total.LinesRead += stats.LinesRead
		total.Inserted += stats.Inserted
		total.Duplicates += stats.Duplicates
		total.Invalid += stats.Invalid
		total.Oversized += stats.Oversized
		total.Empty += stats.Empty
		if err != nil {
			out.Errorf("%s: %v", path, err)
			return err
		}
	}

	out.Successf("imported %s records (%s duplicates skipped, %d lines rejected)",
		humanize.Comma(int64(total.Inserted)),
		humanize.Comma(int64(total.Duplicates)),
		total.Skipped())
	return nil
}

func runOneImport(ctx context.Context, imp *importer.Importer, path string) (importer.RunStats, error) {
	if path == "-" {
		return imp.Run(ctx, importer.NewReaderSource(os.Stdin))
	}
	return imp.RunFile(ctx, path)
}
