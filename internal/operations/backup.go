package operations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/kebairia/bacli/internal/archive"
	"github.com/kebairia/bacli/internal/backup"
	"github.com/kebairia/bacli/internal/document"
	"github.com/kebairia/bacli/internal/logger"
	"github.com/kebairia/bacli/internal/metrics"
)

// RunFullBackup captures every catalog collection. Only manual and
// scheduled backups are full backups.
func (m *Manager) RunFullBackup(ctx context.Context, t backup.Type) (*backup.Record, error) {
	if t != backup.Manual && t != backup.Scheduled {
		return nil, fmt.Errorf("%w: %q is not a full backup type", ErrInvalidBackupType, t)
	}
	return m.run(ctx, t, m.catalog)
}

// run captures collections, writes the archive and records the backup.
// Per-collection capture errors are embedded in the archive; anything
// failing after that aborts the run with nothing recorded.
func (m *Manager) run(ctx context.Context, t backup.Type, collections []string) (*backup.Record, error) {
	start := m.clock.Now()
	date := start.UTC().Truncate(time.Millisecond)
	id := date.Format(m.timestampFormat)
	log := m.log.With("backup_id", id, "type", string(t))

	rec, err := m.runBackup(ctx, log, t, id, date, collections)
	if err != nil {
		m.metrics.Backups.WithLabelValues(string(t), metrics.ResultFailure).Inc()
		log.Error("backup failed", "error", err.Error())
		return nil, fmt.Errorf("backup %s: %w", id, err)
	}

	m.metrics.Backups.WithLabelValues(string(t), metrics.ResultSuccess).Inc()
	m.metrics.BackupBytes.Observe(float64(rec.FileSizeBytes))
	log.Info("backup completed",
		"collections", rec.CollectionsCount,
		"documents", rec.TotalDocuments,
		"size", humanize.Bytes(uint64(rec.FileSizeBytes)),
		"uploaded", rec.Uploaded(),
		"duration", m.clock.Now().Sub(start).String(),
	)
	return rec, nil
}

func (m *Manager) runBackup(
	ctx context.Context,
	log logger.Logger,
	t backup.Type,
	id string,
	date time.Time,
	collections []string,
) (*backup.Record, error) {
	if err := m.store.Ping(ctx); err != nil {
		return nil, err
	}

	log.Info("backup started", "collections", len(collections))
	payload := archive.Payload{
		BackupID:    id,
		BackupDate:  date,
		BackupType:  t,
		Collections: m.capture(ctx, log, collections),
	}
	if t == backup.Incremental {
		payload.ChangedCollections = collections
	}
	// A caller deadline hit during capture must not produce an archive of
	// timeout errors.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := archive.Encode(&payload)
	if err != nil {
		return nil, err
	}

	name := archive.Name(t, id)
	staged, err := m.stage(name, data)
	if err != nil {
		return nil, err
	}

	rec := &backup.Record{
		BackupID:           id,
		BackupDate:         date,
		BackupType:         t,
		ArchiveName:        name,
		StorageURL:         m.upload(ctx, log, name, data),
		LocalStagingPath:   staged,
		FileSizeBytes:      int64(len(data)),
		CollectionsCount:   len(payload.Collections),
		TotalDocuments:     payload.TotalDocuments(),
		ChangedCollections: payload.ChangedCollections,
		Status:             backup.StatusCompleted,
	}

	if err := m.store.History().InsertBackup(ctx, rec); err != nil {
		m.discard(log, rec)
		return nil, err
	}
	return rec, nil
}

// capture reads every collection concurrently. Results are keyed by name so
// scheduling order never shows in the archive.
func (m *Manager) capture(ctx context.Context, log logger.Logger, collections []string) map[string]archive.CollectionSnapshot {
	snapshots := make([]archive.CollectionSnapshot, len(collections))

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, name := range collections {
		g.Go(func() error {
			snapshots[i] = m.captureCollection(ctx, log, name)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]archive.CollectionSnapshot, len(collections))
	for i, name := range collections {
		out[name] = snapshots[i]
	}
	return out
}

func (m *Manager) captureCollection(ctx context.Context, log logger.Logger, name string) archive.CollectionSnapshot {
	docs, err := m.store.Collection(name).FindAll(ctx)
	if err != nil {
		log.Warn("collection capture failed", "collection", name, "error", err.Error())
		return archive.FailedSnapshot(err)
	}
	serialized := document.SerializeAll(docs)
	if err := archive.CheckEncodable(serialized); err != nil {
		log.Warn("collection capture failed", "collection", name, "error", err.Error())
		return archive.FailedSnapshot(err)
	}
	snap := archive.NewSnapshot(serialized)
	m.metrics.BackupDocuments.WithLabelValues(name).Add(float64(snap.Count))
	log.Debug("collection captured", "collection", name, "documents", snap.Count)
	return snap
}

func (m *Manager) stage(name string, data []byte) (string, error) {
	if err := backup.EnsureDirectoryExist(m.stagingDir); err != nil {
		return "", err
	}
	path := filepath.Join(m.stagingDir, name)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("stage archive %s: %w", path, err)
	}
	return path, nil
}

// upload returns nil when the object store refused the archive; the staged
// copy stays the fallback.
func (m *Manager) upload(ctx context.Context, log logger.Logger, name string, data []byte) *string {
	url, err := m.objects.Upload(ctx, data, archive.ObjectPath(name), archive.ContentType)
	if err != nil {
		m.metrics.UploadFailures.Inc()
		log.Warn("archive upload failed, keeping staged copy",
			"archive", name,
			"error", err.Error(),
		)
		return nil
	}
	return &url
}

// discard removes the artifacts of a run whose history write failed.
func (m *Manager) discard(log logger.Logger, rec *backup.Record) {
	if rec.Uploaded() {
		// the caller's context may be the reason the insert failed.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := m.objects.Delete(ctx, archive.ObjectPath(rec.ArchiveName)); err != nil {
			log.Warn("could not remove uploaded archive", "archive", rec.ArchiveName, "error", err.Error())
		}
	}
	if err := os.Remove(rec.LocalStagingPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("could not remove staged archive", "path", rec.LocalStagingPath, "error", err.Error())
	}
}
