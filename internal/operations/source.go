package operations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kebairia/bacli/internal/archive"
	"github.com/kebairia/bacli/internal/backup"
	"github.com/kebairia/bacli/internal/database"
	"github.com/kebairia/bacli/internal/objectstore"
)

// loadArchive resolves ref in order: a backup id known to history, a local
// file, then an object store path (a bare archive name is looked up under
// the archive prefix).
func (m *Manager) loadArchive(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrArchiveNotFound)
	}

	rec, err := m.store.History().FindBackup(ctx, ref)
	switch {
	case err == nil:
		return m.loadRecorded(ctx, rec)
	case !errors.Is(err, database.ErrNotFound):
		return nil, fmt.Errorf("look up backup %s: %w", ref, err)
	}

	data, err := os.ReadFile(ref)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}

	objectPath := ref
	if !strings.HasPrefix(ref, archive.ObjectPrefix) {
		objectPath = archive.ObjectPath(filepath.Base(ref))
	}
	return m.download(ctx, objectPath)
}

// loadRecorded prefers the staged copy and falls back to the uploaded one.
func (m *Manager) loadRecorded(ctx context.Context, rec *backup.Record) ([]byte, error) {
	if rec.LocalStagingPath != "" {
		data, err := os.ReadFile(rec.LocalStagingPath)
		if err == nil {
			return data, nil
		}
		m.log.Debug("staged archive unavailable, downloading",
			"path", rec.LocalStagingPath,
			"error", err.Error(),
		)
	}
	return m.download(ctx, archive.ObjectPath(rec.ArchiveName))
}

func (m *Manager) download(ctx context.Context, objectPath string) ([]byte, error) {
	data, err := m.objects.Download(ctx, objectPath)
	if errors.Is(err, objectstore.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, objectPath)
	}
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", objectPath, err)
	}
	return data, nil
}
