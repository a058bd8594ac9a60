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

var backupType string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up every catalog collection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			rec, err := s.ops.RunFullBackup(ctx, backup.Type(backupType))
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		})
	},
}

func init() {
	backupCmd.Flags().
		StringVarP(&backupType, "type", "t", string(backup.Manual), "backup type (manual or scheduled)")
}

// printRecord writes a single backup record as a two column table.
func printRecord(w io.Writer, rec *backup.Record) {
	location := rec.LocalStagingPath + " (upload failed)"
	if rec.Uploaded() {
		location = *rec.StorageURL
	}

	table := uitable.New()
	table.MaxColWidth = 80
	table.AddRow("Backup ID:", rec.BackupID)
	table.AddRow("Type:", string(rec.BackupType))
	table.AddRow("Date:", rec.BackupDate.Format("2006-01-02 15:04:05 MST"))
	table.AddRow("Collections:", rec.CollectionsCount)
	if len(rec.ChangedCollections) > 0 {
		table.AddRow("Changed:", fmt.Sprint(rec.ChangedCollections))
	}
	table.AddRow("Documents:", humanize.Comma(int64(rec.TotalDocuments)))
	table.AddRow("Size:", humanize.Bytes(uint64(rec.FileSizeBytes)))
	table.AddRow("Location:", location)
	fmt.Fprintln(w, table)
}
