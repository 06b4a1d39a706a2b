package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show record store statistics",
		Long:  `Show the number of stored records and the size of the store on disk.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			stats, err := s.Stats(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Records   int64  `json:"records"`
					SizeBytes int64  `json:"size_bytes"`
					Path      string `json:"path"`
					Backend   string `json:"backend"`
				}{
					Records:   stats.RecordCount,
					SizeBytes: stats.SizeOnDiskBytes,
					Path:      cfg.Store.Path,
					Backend:   cfg.Index.Backend,
				})
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "Records:  %s\n", humanize.Comma(stats.RecordCount))
			_, _ = fmt.Fprintf(w, "Size:     %s\n", humanize.Bytes(uint64(stats.SizeOnDiskBytes)))
			_, _ = fmt.Fprintf(w, "Store:    %s\n", cfg.Store.Path)
			_, _ = fmt.Fprintf(w, "Backend:  %s\n", cfg.Index.Backend)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output stats as JSON")

	return cmd
}
