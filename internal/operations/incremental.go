package operations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kebairia/bacli/internal/backup"
	"github.com/kebairia/bacli/internal/database"
)

// IncrementalCooldown is the minimum age of the latest incremental backup
// before another one may run.
const IncrementalCooldown = 5 * time.Minute

// IncrementalResult is either a recorded backup or a throttled no-op.
type IncrementalResult struct {
	Record *backup.Record

	Throttled bool
	// LastIncremental is the backup that is still inside its cooldown.
	LastIncremental *backup.Record
	RetryAfter      time.Duration
}

// ShouldThrottle reports whether an incremental backup at now falls inside
// the cooldown of the most recent one. It only reads history, so concurrent
// callers can both see false before either records a backup.
func (m *Manager) ShouldThrottle(ctx context.Context, now time.Time) (bool, error) {
	last, err := m.lastIncremental(ctx)
	if err != nil {
		return false, err
	}
	return withinCooldown(last, now), nil
}

func (m *Manager) lastIncremental(ctx context.Context) (*backup.Record, error) {
	last, err := m.store.History().LatestBackup(ctx, backup.Incremental)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up latest incremental backup: %w", err)
	}
	return last, nil
}

func withinCooldown(last *backup.Record, now time.Time) bool {
	return last != nil && now.Sub(last.BackupDate) < IncrementalCooldown
}

// RunIncrementalBackup captures the changed collections that belong to the
// catalog, unless the previous incremental backup is too recent. Names
// outside the catalog are ignored.
func (m *Manager) RunIncrementalBackup(ctx context.Context, changed []string) (*IncrementalResult, error) {
	now := m.clock.Now()
	last, err := m.lastIncremental(ctx)
	if err != nil {
		return nil, err
	}
	if withinCooldown(last, now) {
		retry := IncrementalCooldown - now.Sub(last.BackupDate)
		m.metrics.Throttled.Inc()
		m.log.Info("incremental backup throttled",
			"last_backup_id", last.BackupID,
			"retry_after", retry.String(),
		)
		return &IncrementalResult{Throttled: true, LastIncremental: last, RetryAfter: retry}, nil
	}

	collections := intersectCatalog(m.catalog, changed)
	if len(collections) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoCollections, changed)
	}

	rec, err := m.run(ctx, backup.Incremental, collections)
	if err != nil {
		return nil, err
	}
	return &IncrementalResult{Record: rec}, nil
}

// intersectCatalog keeps the catalog's order and drops duplicates.
func intersectCatalog(catalog, requested []string) []string {
	wanted := make(map[string]bool, len(requested))
	for _, name := range requested {
		wanted[name] = true
	}
	var out []string
	for _, name := range catalog {
		if wanted[name] {
			out = append(out, name)
		}
	}
	return out
}
