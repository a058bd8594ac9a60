package operations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kebairia/bacli/internal/archive"
	"github.com/kebairia/bacli/internal/backup"
	"github.com/kebairia/bacli/internal/database"
)

const (
	DefaultKeepScheduled   = 7
	DefaultKeepIncremental = 50
)

// Policy says how many backups of each automatic type survive pruning.
// Manual backups are never pruned.
type Policy struct {
	KeepScheduled   int
	KeepIncremental int
	// KeepWeekly is reserved; no backup is classified as weekly yet.
	KeepWeekly int
}

// DefaultPolicy keeps a week of scheduled backups and fifty incrementals.
func DefaultPolicy() Policy {
	return Policy{KeepScheduled: DefaultKeepScheduled, KeepIncremental: DefaultKeepIncremental}
}

func (p Policy) validate() error {
	if p.KeepScheduled < 0 || p.KeepIncremental < 0 || p.KeepWeekly < 0 {
		return fmt.Errorf("%w: keep counts must not be negative", ErrInvalidPolicy)
	}
	return nil
}

// SelectExpired returns the records outside the keep window of p, newest
// first. records is not modified.
func SelectExpired(records []backup.Record, p Policy) []backup.Record {
	sorted := append([]backup.Record(nil), records...)
	backup.SortNewestFirst(sorted)

	var scheduled, incremental int
	var expired []backup.Record
	for _, rec := range sorted {
		switch rec.BackupType {
		case backup.Scheduled:
			scheduled++
			if scheduled > p.KeepScheduled {
				expired = append(expired, rec)
			}
		case backup.Incremental:
			incremental++
			if incremental > p.KeepIncremental {
				expired = append(expired, rec)
			}
		}
	}
	return expired
}

// Prune deletes the history records outside the keep window of p and then
// tries to delete their archives. It returns the ids whose history record
// was removed. Archive deletion failures are logged and never undo or block
// the history deletion.
func (m *Manager) Prune(ctx context.Context, p Policy) ([]string, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if p.KeepWeekly > 0 {
		m.log.Debug("keep_weekly is reserved and has no effect", "keep_weekly", p.KeepWeekly)
	}

	records, err := m.store.History().ListBackups(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("load backup history: %w", err)
	}

	expired := SelectExpired(records, p)
	deleted, gone, err := m.pruneHistory(ctx, expired)
	m.pruneBlobs(ctx, gone)

	m.metrics.Pruned.Add(float64(len(deleted)))
	m.log.Info("retention applied",
		"records", len(records),
		"expired", len(expired),
		"deleted", len(deleted),
	)
	return deleted, err
}

// pruneHistory returns the ids it deleted and every record whose history
// entry no longer exists, including ones removed concurrently.
func (m *Manager) pruneHistory(ctx context.Context, expired []backup.Record) ([]string, []backup.Record, error) {
	deleted := make([]string, 0, len(expired))
	var gone []backup.Record
	var errs []error
	for _, rec := range expired {
		err := m.store.History().DeleteBackup(ctx, rec.BackupID)
		switch {
		case err == nil:
			deleted = append(deleted, rec.BackupID)
			gone = append(gone, rec)
		case errors.Is(err, database.ErrNotFound):
			m.log.Debug("backup record already gone", "backup_id", rec.BackupID)
			gone = append(gone, rec)
		default:
			errs = append(errs, fmt.Errorf("delete backup record %s: %w", rec.BackupID, err))
		}
	}
	return deleted, gone, errors.Join(errs...)
}

// pruneBlobs is best effort: an orphaned archive can be cleaned up later,
// an orphaned history record cannot.
func (m *Manager) pruneBlobs(ctx context.Context, expired []backup.Record) {
	for _, rec := range expired {
		if rec.ArchiveName != "" {
			if err := m.objects.Delete(ctx, archive.ObjectPath(rec.ArchiveName)); err != nil {
				m.log.Warn("archive deletion failed", "backup_id", rec.BackupID, "error", err.Error())
			}
		}
		if rec.LocalStagingPath != "" {
			if err := os.Remove(rec.LocalStagingPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
				m.log.Warn("staged archive deletion failed", "backup_id", rec.BackupID, "error", err.Error())
			}
		}
	}
}

// ListBackups returns up to limit history records, newest first.
func (m *Manager) ListBackups(ctx context.Context, limit int) ([]backup.Record, error) {
	records, err := m.store.History().ListBackups(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return records, nil
}
