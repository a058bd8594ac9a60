package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var changedCollections []string

var incrementalCmd = &cobra.Command{
	Use:   "incremental",
	Short: "Back up only the collections that changed",
	Long: `incremental captures the given collections that belong to the catalog.
It is skipped when the previous incremental backup is less than five
minutes old.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			res, err := s.ops.RunIncrementalBackup(ctx, changedCollections)
			if err != nil {
				return err
			}
			if res.Throttled {
				fmt.Fprintf(cmd.OutOrStdout(), "throttled: backup %s is too recent, retry in %s\n",
					res.LastIncremental.BackupID, res.RetryAfter.Round(time.Second))
				return nil
			}
			printRecord(cmd.OutOrStdout(), res.Record)
			return nil
		})
	},
}

func init() {
	incrementalCmd.Flags().
		StringSliceVar(&changedCollections, "collections", nil, "changed collections, comma separated")
	_ = incrementalCmd.MarkFlagRequired("collections")
}
