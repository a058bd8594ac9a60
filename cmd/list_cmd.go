package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/kebairia/bacli/internal/backup"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the backup history, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			records, err := s.ops.ListBackups(ctx, listLimit)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), records)
			return nil
		})
	},
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "maximum records to show, 0 for all")
}

func printHistory(w io.Writer, records []backup.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no backups recorded")
		return
	}

	table := uitable.New()
	table.MaxColWidth = 50
	for _, col := range []int{3, 4, 5} {
		table.RightAlign(col)
	}
	table.AddRow("ID", "TYPE", "DATE", "COLLECTIONS", "DOCUMENTS", "SIZE", "UPLOADED")
	for _, rec := range records {
		table.AddRow(
			rec.BackupID,
			string(rec.BackupType),
			humanize.Time(rec.BackupDate),
			rec.CollectionsCount,
			humanize.Comma(int64(rec.TotalDocuments)),
			humanize.Bytes(uint64(rec.FileSizeBytes)),
			rec.Uploaded(),
		)
	}
	fmt.Fprintln(w, table)
}
