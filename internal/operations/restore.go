package operations

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/kebairia/bacli/internal/archive"
	"github.com/kebairia/bacli/internal/backup"
	"github.com/kebairia/bacli/internal/document"
	"github.com/kebairia/bacli/internal/logger"
)

// AllCollections requests every collection present in the archive.
const AllCollections = "all"

// Restore replaces live collections with their archived content.
//
// ref names a backup id from history, a local archive file or an object
// store path. An empty collections list, or one holding AllCollections,
// restores everything in the archive. Each collection is deleted and then
// re-inserted as a unit; a failing collection is recorded and the others
// are still processed. A corrupt or missing archive fails the call before
// anything is written.
func (m *Manager) Restore(ctx context.Context, ref string, collections []string) (*backup.RestoreRecord, error) {
	if err := m.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("restore %s: %w", ref, err)
	}

	data, err := m.loadArchive(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", ref, err)
	}
	payload, err := archive.DecodePayload(data)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", ref, err)
	}

	targets := restoreTargets(payload, collections)
	rec := &backup.RestoreRecord{
		RestoreID:            uuid.NewString(),
		RestoreDate:          m.clock.Now().UTC(),
		SourceBackupID:       payload.BackupID,
		SourceBackupDate:     payload.BackupDate,
		CollectionsRequested: targets,
		Results:              make(map[string]backup.CollectionResult, len(targets)),
	}
	log := m.log.With("restore_id", rec.RestoreID, "source_backup_id", payload.BackupID)
	log.Info("restore started", "collections", targets)

	for _, name := range targets {
		res := m.restoreCollection(ctx, log, name, payload)
		rec.Results[name] = res
		m.metrics.RestoreCollections.WithLabelValues(string(res.Status)).Inc()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("restore %s aborted: %w", ref, err)
	}

	if err := m.store.History().InsertRestore(ctx, rec); err != nil {
		return rec, fmt.Errorf("record restore %s: %w", rec.RestoreID, err)
	}

	tally := rec.Tally()
	log.Info("restore completed",
		"succeeded", tally[backup.RestoreSuccess],
		"skipped", tally[backup.RestoreSkipped],
		"failed", tally[backup.RestoreError],
	)
	return rec, nil
}

// restoreTargets resolves the requested names, dropping duplicates while
// keeping the caller's order.
func restoreTargets(payload *archive.Payload, requested []string) []string {
	if len(requested) == 0 || slices.Contains(requested, AllCollections) {
		names := make([]string, 0, len(payload.Collections))
		for name := range payload.Collections {
			names = append(names, name)
		}
		slices.Sort(names)
		return names
	}

	seen := make(map[string]bool, len(requested))
	targets := make([]string, 0, len(requested))
	for _, name := range requested {
		if seen[name] {
			continue
		}
		seen[name] = true
		targets = append(targets, name)
	}
	return targets
}

func (m *Manager) restoreCollection(
	ctx context.Context,
	log logger.Logger,
	name string,
	payload *archive.Payload,
) backup.CollectionResult {
	snap, ok := payload.Collections[name]
	if !ok {
		return backup.CollectionResult{Status: backup.RestoreSkipped, Reason: backup.ReasonNotInBackup}
	}
	if len(snap.Documents) == 0 {
		return backup.CollectionResult{Status: backup.RestoreSkipped, Reason: backup.ReasonNoDocuments}
	}

	coll := m.store.Collection(name)

	deleted, err := coll.DeleteAll(ctx)
	if err != nil {
		log.Error("collection restore failed", "collection", name, "stage", "delete", "error", err.Error())
		return backup.CollectionResult{Status: backup.RestoreError, Error: err.Error()}
	}

	docs := make([]document.Record, len(snap.Documents))
	for i, doc := range snap.Documents {
		docs[i] = document.Record(doc)
	}
	inserted, err := coll.InsertMany(ctx, docs)
	if err != nil {
		log.Error("collection restore failed", "collection", name, "stage", "insert", "error", err.Error())
		return backup.CollectionResult{Status: backup.RestoreError, DeletedCount: deleted, Error: err.Error()}
	}

	log.Info("collection restored", "collection", name, "deleted", deleted, "inserted", inserted)
	return backup.CollectionResult{
		Status:        backup.RestoreSuccess,
		DeletedCount:  deleted,
		InsertedCount: inserted,
	}
}
