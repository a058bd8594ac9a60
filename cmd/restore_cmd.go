package cmd

import (
	"context"
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/kebairia/bacli/internal/backup"
	"github.com/kebairia/bacli/internal/operations"
)

var restoreCollections []string

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-id|archive>",
	Short: "Restore collections from a backup",
	Long: `restore replaces live collections with the content of a backup.
The argument is a backup id from history, a local archive file or an
archive name in object storage. Every requested collection is wiped and
re-inserted on its own; one failing collection does not stop the rest.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			rec, err := s.ops.Restore(ctx, args[0], restoreCollections)
			if rec != nil {
				printRestore(cmd, rec)
			}
			if err != nil {
				return err
			}
			if failed := rec.Tally()[backup.RestoreError]; failed > 0 {
				return fmt.Errorf("%d of %d collections failed to restore", failed, len(rec.Results))
			}
			return nil
		})
	},
}

func init() {
	restoreCmd.Flags().
		StringSliceVar(&restoreCollections, "collections", []string{operations.AllCollections}, "collections to restore, or all")
}

func printRestore(cmd *cobra.Command, rec *backup.RestoreRecord) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "restore %s from backup %s\n\n", rec.RestoreID, rec.SourceBackupID)

	table := uitable.New()
	table.MaxColWidth = 60
	table.Wrap = true
	table.RightAlign(2)
	table.RightAlign(3)
	table.AddRow("COLLECTION", "STATUS", "DELETED", "INSERTED", "DETAIL")

	for _, name := range rec.CollectionsRequested {
		res := rec.Results[name]
		detail := res.Reason
		if res.Error != "" {
			detail = res.Error
		}
		table.AddRow(name, string(res.Status), res.DeletedCount, res.InsertedCount, detail)
	}
	fmt.Fprintln(out, table)
}
