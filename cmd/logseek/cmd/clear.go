package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/logseek/logseek/internal/output"
)

func newClearCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all records and index data",
		Long: `Delete every record and all index data from the store.

This cannot be undone; pass --force to confirm.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				return fmt.Errorf("refusing to clear without --force")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			count, err := s.Count(cmd.Context())
			if err != nil {
				return err
			}

			if err := s.ClearAll(cmd.Context()); err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("cleared %s records", humanize.Comma(count))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm deletion of all records")

	return cmd
}
