package operations

import (
	"context"
	"errors"
	"fmt"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kebairia/bacli/internal/config"
	"github.com/kebairia/bacli/internal/database"
	"github.com/kebairia/bacli/internal/logger"
	"github.com/kebairia/bacli/internal/metrics"
	"github.com/kebairia/bacli/internal/objectstore"
	"github.com/kebairia/bacli/internal/vault"
)

var (
	ErrInvalidBackupType = errors.New("invalid backup type")
	ErrNoCollections     = errors.New("no catalog collections requested")
	ErrArchiveNotFound   = errors.New("archive not found")
	ErrInvalidPolicy     = errors.New("invalid retention policy")
)

// DefaultCatalog is the fixed set of collections a full backup captures.
var DefaultCatalog = []string{
	"users",
	"requests",
	"transactions",
	"notifications",
	"proofs",
	"settings",
	"audit_logs",
}

const defaultTimestampFormat = "20060102_150405"

// Manager runs backups, restores and retention against one document store
// and one object store.
type Manager struct {
	store   database.Store
	objects objectstore.Store

	clock           clock.Clock
	log             logger.Logger
	metrics         *metrics.Metrics
	catalog         []string
	stagingDir      string
	timestampFormat string
	concurrency     int
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) {
		if clk != nil {
			m.clock = clk
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(log logger.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithMetrics overrides the metric collectors.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		if mt != nil {
			m.metrics = mt
		}
	}
}

// WithCatalog overrides the collection catalog.
func WithCatalog(collections []string) Option {
	return func(m *Manager) {
		if len(collections) > 0 {
			m.catalog = append([]string(nil), collections...)
		}
	}
}

// WithStagingDir sets where archives are written before upload.
func WithStagingDir(dir string) Option {
	return func(m *Manager) {
		if dir != "" {
			m.stagingDir = dir
		}
	}
}

// WithTimestampFormat sets the layout backup ids are derived with.
func WithTimestampFormat(format string) Option {
	return func(m *Manager) {
		if format != "" {
			m.timestampFormat = format
		}
	}
}

// WithConcurrency bounds how many collections are captured at once.
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// New returns a Manager using store for documents and history and objects
// for archive uploads.
func New(store database.Store, objects objectstore.Store, opts ...Option) *Manager {
	m := &Manager{
		store:           store,
		objects:         objects,
		clock:           clock.WallClock,
		log:             logger.Global(),
		metrics:         metrics.New(nil),
		catalog:         DefaultCatalog,
		stagingDir:      "backups",
		timestampFormat: defaultTimestampFormat,
		concurrency:     1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Catalog returns the collections a full backup covers.
func (m *Manager) Catalog() []string {
	return append([]string(nil), m.catalog...)
}

// OperationManager is a Manager built from the YAML configuration, owning
// its connections.
type OperationManager struct {
	*Manager

	cfg     config.Config
	db      *database.MongoDB
	objects objectstore.Store
}

// NewOperationManager connects to Vault (when configured), the document
// store and the object store described by cfg.
func NewOperationManager(
	ctx context.Context,
	cfg config.Config,
	log logger.Logger,
	reg prometheus.Registerer,
) (*OperationManager, error) {
	var vaultClient *vault.Client
	if cfg.Vault.Address != "" {
		var err error
		vaultClient, err = vault.NewClient(ctx,
			vault.WithAddress(cfg.Vault.Address),
			vault.WithAppRole(cfg.Vault.RoleID, cfg.Vault.RoleName),
		)
		if err != nil {
			return nil, fmt.Errorf("vault client init: %w", err)
		}
	}

	db, err := database.InitMongoDB(ctx, cfg, vaultClient, log)
	if err != nil {
		return nil, err
	}

	objects, err := objectstore.New(ctx, cfg.Storage)
	if err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("object store init: %w", err)
	}

	manager := New(db, objects,
		WithLogger(log),
		WithMetrics(metrics.New(reg)),
		WithCatalog(cfg.Backup.Collections),
		WithStagingDir(cfg.Backup.OutputDirectory),
		WithTimestampFormat(cfg.Backup.TimestampFormat),
		WithConcurrency(cfg.Backup.Concurrency),
	)

	return &OperationManager{
		Manager: manager,
		cfg:     cfg,
		db:      db,
		objects: objects,
	}, nil
}

// Config returns the configuration the manager was built from.
func (om *OperationManager) Config() config.Config {
	return om.cfg
}

// Close releases the object store and document store connections.
func (om *OperationManager) Close(ctx context.Context) error {
	return errors.Join(om.objects.Close(), om.db.Close(ctx))
}
