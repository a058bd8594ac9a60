package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/kebairia/bacli/internal/backup"
	"github.com/kebairia/bacli/internal/config"
	"github.com/kebairia/bacli/internal/document"
	"github.com/kebairia/bacli/internal/logger"
)

const (
	BackupHistoryCollection  = "backup_history"
	RestoreHistoryCollection = "restore_history"
)

// MongoDBOption defines a functional option for configuring a MongoDB store.
type MongoDBOption func(*MongoDB)

// MongoDB is the Store implementation backed by the official driver.
type MongoDB struct {
	URI      string
	Database string
	Username string
	Password string
	Timeout  time.Duration
	Logger   logger.Logger

	client *mongo.Client
	db     *mongo.Database
}

var _ Store = (*MongoDB)(nil)

// NewMongoDB creates a MongoDB store from config defaults and supplied options.
// Call Connect before use.
func NewMongoDB(cfg config.Config, opts ...MongoDBOption) *MongoDB {
	m := &MongoDB{
		URI:      cfg.MongoDB.URI,
		Database: cfg.MongoDB.Database,
		Timeout:  cfg.MongoDB.Timeout,
		Logger:   logger.Global(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithMongoURI overrides the connection string.
func WithMongoURI(uri string) MongoDBOption {
	return func(m *MongoDB) {
		if uri != "" {
			m.URI = uri
		}
	}
}

// WithMongoDatabase overrides the database name.
func WithMongoDatabase(database string) MongoDBOption {
	return func(m *MongoDB) {
		if database != "" {
			m.Database = database
		}
	}
}

// WithMongoCredentials overrides the username and password.
func WithMongoCredentials(username, password string) MongoDBOption {
	return func(m *MongoDB) {
		if username != "" {
			m.Username = username
		}
		if password != "" {
			m.Password = password
		}
	}
}

// WithMongoTimeout overrides the per-operation timeout.
func WithMongoTimeout(timeout time.Duration) MongoDBOption {
	return func(m *MongoDB) {
		if timeout > 0 {
			m.Timeout = timeout
		}
	}
}

// WithMongoLogger overrides the logger.
func WithMongoLogger(log logger.Logger) MongoDBOption {
	return func(m *MongoDB) {
		if log != nil {
			m.Logger = log
		}
	}
}

func (m *MongoDB) clientOptions() *options.ClientOptions {
	opts := options.Client().ApplyURI(m.URI)
	if m.Timeout > 0 {
		opts.SetTimeout(m.Timeout)
	}
	if m.Username != "" {
		opts.SetAuth(options.Credential{
			AuthSource: "admin",
			Username:   m.Username,
			Password:   m.Password,
		})
	}
	return opts
}

// Connect opens the client, verifies the server answers and makes sure the
// history indexes exist.
func (m *MongoDB) Connect(ctx context.Context) error {
	client, err := mongo.Connect(ctx, m.clientOptions())
	if err != nil {
		return fmt.Errorf("%w: connect: %v", ErrUnavailable, err)
	}
	m.client = client
	m.db = client.Database(m.Database)

	if err := m.Ping(ctx); err != nil {
		m.abandon()
		return err
	}
	if err := m.ensureIndexes(ctx); err != nil {
		m.abandon()
		return fmt.Errorf("create history indexes: %w", err)
	}

	m.Logger.Info("connected to document store", "database", m.Database)
	return nil
}

// abandon disconnects a client whose setup failed. The caller's context may
// already be expired, so it gets its own deadline.
func (m *MongoDB) abandon() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.client.Disconnect(ctx); err != nil {
		m.Logger.Warn("disconnect after failed setup", "error", err.Error())
	}
	m.client = nil
	m.db = nil
}

func (m *MongoDB) ensureIndexes(ctx context.Context) error {
	_, err := m.db.Collection(BackupHistoryCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "backup_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "backup_type", Value: 1}, {Key: "backup_date", Value: -1}},
		},
	})
	return err
}

// Ping checks that the primary is reachable.
func (m *MongoDB) Ping(ctx context.Context) error {
	if m.client == nil {
		return fmt.Errorf("%w: not connected", ErrUnavailable)
	}
	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	return nil
}

// Close disconnects the client.
func (m *MongoDB) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

// Collection returns a handle on the named collection.
func (m *MongoDB) Collection(name string) Collection {
	return &mongoCollection{coll: m.db.Collection(name)}
}

// History returns the backup/restore history collections.
func (m *MongoDB) History() History {
	return &mongoHistory{
		backups:  m.db.Collection(BackupHistoryCollection),
		restores: m.db.Collection(RestoreHistoryCollection),
	}
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) FindAll(ctx context.Context) ([]document.Record, error) {
	cur, err := c.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.coll.Name(), err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("read %s: %w", c.coll.Name(), err)
	}

	docs := make([]document.Record, len(raw))
	for i, m := range raw {
		docs[i] = document.Record(m)
	}
	return docs, nil
}

func (c *mongoCollection) DeleteAll(ctx context.Context) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", c.coll.Name(), err)
	}
	return res.DeletedCount, nil
}

func (c *mongoCollection) InsertMany(ctx context.Context, docs []document.Record) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	batch := make([]any, len(docs))
	for i, doc := range docs {
		batch[i] = doc
	}
	res, err := c.coll.InsertMany(ctx, batch, options.InsertMany().SetOrdered(true))
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", c.coll.Name(), err)
	}
	return int64(len(res.InsertedIDs)), nil
}

type mongoHistory struct {
	backups  *mongo.Collection
	restores *mongo.Collection
}

var newestFirst = bson.D{{Key: "backup_date", Value: -1}, {Key: "backup_id", Value: -1}}

func (h *mongoHistory) InsertBackup(ctx context.Context, rec *backup.Record) error {
	if _, err := h.backups.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert backup record %s: %w", rec.BackupID, err)
	}
	return nil
}

func (h *mongoHistory) FindBackup(ctx context.Context, id string) (*backup.Record, error) {
	return h.findOne(ctx, bson.M{"backup_id": id}, options.FindOne())
}

func (h *mongoHistory) LatestBackup(ctx context.Context, t backup.Type) (*backup.Record, error) {
	return h.findOne(ctx, bson.M{"backup_type": t}, options.FindOne().SetSort(newestFirst))
}

func (h *mongoHistory) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*backup.Record, error) {
	var rec backup.Record
	err := h.backups.FindOne(ctx, filter, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query backup history: %w", err)
	}
	return &rec, nil
}

func (h *mongoHistory) ListBackups(ctx context.Context, limit int) ([]backup.Record, error) {
	opts := options.Find().SetSort(newestFirst)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := h.backups.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list backup history: %w", err)
	}
	var records []backup.Record
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode backup history: %w", err)
	}
	return records, nil
}

func (h *mongoHistory) DeleteBackup(ctx context.Context, id string) error {
	res, err := h.backups.DeleteOne(ctx, bson.M{"backup_id": id})
	if err != nil {
		return fmt.Errorf("delete backup record %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (h *mongoHistory) InsertRestore(ctx context.Context, rec *backup.RestoreRecord) error {
	if _, err := h.restores.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert restore record: %w", err)
	}
	return nil
}
