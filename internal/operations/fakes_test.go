package operations

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"github.com/kebairia/bacli/internal/backup"
	"github.com/kebairia/bacli/internal/database"
	"github.com/kebairia/bacli/internal/document"
	"github.com/kebairia/bacli/internal/logger"
	"github.com/kebairia/bacli/internal/objectstore"
)

var errInjected = errors.New("injected failure")

// fakeStore is an in-memory database.Store with per-collection fault
// injection.
type fakeStore struct {
	mu          sync.Mutex
	collections map[string][]document.Record
	findErr     map[string]error
	deleteErr   map[string]error
	insertErr   map[string]error
	pingErr     error

	history *fakeHistory
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		collections: make(map[string][]document.Record),
		findErr:     make(map[string]error),
		deleteErr:   make(map[string]error),
		insertErr:   make(map[string]error),
		history:     &fakeHistory{},
	}
}

func (s *fakeStore) seed(name string, docs ...document.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[name] = append(s.collections[name], docs...)
}

func (s *fakeStore) docs(name string) []document.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]document.Record(nil), s.collections[name]...)
}

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }
func (s *fakeStore) History() database.History { return s.history }
func (s *fakeStore) Close(context.Context) error { return nil }
func (s *fakeStore) Collection(name string) database.Collection { return &fakeCollection{store: s, name: name} }

type fakeCollection struct {
	store *fakeStore
	name  string
}

func (c *fakeCollection) FindAll(ctx context.Context) ([]document.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if err := c.store.findErr[c.name]; err != nil {
		return nil, err
	}
	return append([]document.Record(nil), c.store.collections[c.name]...), nil
}

func (c *fakeCollection) DeleteAll(context.Context) (int64, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if err := c.store.deleteErr[c.name]; err != nil {
		return 0, err
	}
	n := int64(len(c.store.collections[c.name]))
	delete(c.store.collections, c.name)
	return n, nil
}

func (c *fakeCollection) InsertMany(_ context.Context, docs []document.Record) (int64, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if err := c.store.insertErr[c.name]; err != nil {
		return 0, err
	}
	c.store.collections[c.name] = append(c.store.collections[c.name], docs...)
	return int64(len(docs)), nil
}

type fakeHistory struct {
	mu        sync.Mutex
	backups   []backup.Record
	restores  []backup.RestoreRecord
	insertErr error
	deleteErr map[string]error
	// beforeLatest runs on every LatestBackup call, outside the lock.
	beforeLatest func()
}

func (h *fakeHistory) InsertBackup(_ context.Context, rec *backup.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.insertErr != nil {
		return h.insertErr
	}
	h.backups = append(h.backups, *rec)
	return nil
}

func (h *fakeHistory) FindBackup(_ context.Context, id string) (*backup.Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, rec := range h.backups {
		if rec.BackupID == id {
			return &rec, nil
		}
	}
	return nil, database.ErrNotFound
}

func (h *fakeHistory) LatestBackup(_ context.Context, t backup.Type) (*backup.Record, error) {
	if h.beforeLatest != nil {
		h.beforeLatest()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	sorted := append([]backup.Record(nil), h.backups...)
	backup.SortNewestFirst(sorted)
	for _, rec := range sorted {
		if rec.BackupType == t {
			return &rec, nil
		}
	}
	return nil, database.ErrNotFound
}

func (h *fakeHistory) ListBackups(_ context.Context, limit int) ([]backup.Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sorted := append([]backup.Record(nil), h.backups...)
	backup.SortNewestFirst(sorted)
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (h *fakeHistory) DeleteBackup(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.deleteErr[id]; err != nil {
		return err
	}
	for i, rec := range h.backups {
		if rec.BackupID == id {
			h.backups = append(h.backups[:i], h.backups[i+1:]...)
			return nil
		}
	}
	return database.ErrNotFound
}

func (h *fakeHistory) InsertRestore(_ context.Context, rec *backup.RestoreRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.insertErr != nil {
		return h.insertErr
	}
	h.restores = append(h.restores, *rec)
	return nil
}

func (h *fakeHistory) count(t backup.Type) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, rec := range h.backups {
		if rec.BackupType == t {
			n++
		}
	}
	return n
}

// fakeObjects is an in-memory objectstore.Store.
type fakeObjects struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploads   int
	uploadErr error
	deleteErr error
	deleted   []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (o *fakeObjects) Upload(_ context.Context, data []byte, objectPath, _ string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.uploads++
	if o.uploadErr != nil {
		return "", o.uploadErr
	}
	o.objects[objectPath] = append([]byte(nil), data...)
	return "mem://" + objectPath, nil
}

func (o *fakeObjects) Download(_ context.Context, objectPath string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[objectPath]
	if !ok {
		return nil, objectstore.ErrObjectNotFound
	}
	return data, nil
}

func (o *fakeObjects) Delete(_ context.Context, objectPath string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deleted = append(o.deleted, objectPath)
	if o.deleteErr != nil {
		return o.deleteErr
	}
	delete(o.objects, objectPath)
	return nil
}

func (o *fakeObjects) Close() error { return nil }

var epoch = time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store   *fakeStore
	objects *fakeObjects
	clock   *testclock.Clock
	manager *Manager
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:   newFakeStore(),
		objects: newFakeObjects(),
		clock:   testclock.NewClock(epoch),
	}
	base := []Option{
		WithClock(f.clock),
		WithLogger(logger.Nop()),
		WithStagingDir(t.TempDir()),
		WithConcurrency(3),
	}
	f.manager = New(f.store, f.objects, append(base, opts...)...)
	return f
}
