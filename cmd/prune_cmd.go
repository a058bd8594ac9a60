package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kebairia/bacli/internal/config"
	"github.com/kebairia/bacli/internal/operations"
)

var (
	keepScheduled   int
	keepIncremental int
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete backups outside the retention window",
	Long: `prune keeps the newest scheduled and incremental backups and deletes
the rest, history record first and archive second. Manual backups are
never pruned. Counts default to the retention section of the config.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			policy := retentionPolicy(s.cfg.Retention)
			if cmd.Flags().Changed("keep-scheduled") {
				policy.KeepScheduled = keepScheduled
			}
			if cmd.Flags().Changed("keep-incremental") {
				policy.KeepIncremental = keepIncremental
			}

			deleted, err := s.ops.Prune(ctx, policy)
			for _, id := range deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d backups pruned\n", len(deleted))
			return nil
		})
	},
}

func init() {
	pruneCmd.Flags().
		IntVar(&keepScheduled, "keep-scheduled", operations.DefaultKeepScheduled, "scheduled backups to keep")
	pruneCmd.Flags().
		IntVar(&keepIncremental, "keep-incremental", operations.DefaultKeepIncremental, "incremental backups to keep")
}

func retentionPolicy(rc config.RetentionConfig) operations.Policy {
	return operations.Policy{
		KeepScheduled:   rc.KeepScheduled,
		KeepIncremental: rc.KeepIncremental,
		KeepWeekly:      rc.KeepWeekly,
	}
}
