package database

import (
	"context"
	"errors"

	"github.com/kebairia/bacli/internal/backup"
	"github.com/kebairia/bacli/internal/document"
)

var (
	ErrTimeout     = errors.New("operation timed out")
	ErrUnavailable = errors.New("document store unavailable")
	ErrNotFound    = errors.New("not found")
)

// Collection is a single named set of documents in the store.
type Collection interface {
	FindAll(ctx context.Context) ([]document.Record, error)
	DeleteAll(ctx context.Context) (int64, error)
	InsertMany(ctx context.Context, docs []document.Record) (int64, error)
}

// History persists backup and restore records.
type History interface {
	InsertBackup(ctx context.Context, rec *backup.Record) error
	// FindBackup returns ErrNotFound when no record carries id.
	FindBackup(ctx context.Context, id string) (*backup.Record, error)
	// LatestBackup returns the newest record of type t, or ErrNotFound.
	LatestBackup(ctx context.Context, t backup.Type) (*backup.Record, error)
	// ListBackups returns records newest first. limit <= 0 means all.
	ListBackups(ctx context.Context, limit int) ([]backup.Record, error)
	// DeleteBackup returns ErrNotFound when no record carries id.
	DeleteBackup(ctx context.Context, id string) error
	InsertRestore(ctx context.Context, rec *backup.RestoreRecord) error
}

// Store is the document store the coordinators operate on.
type Store interface {
	Ping(ctx context.Context) error
	Collection(name string) Collection
	History() History
	Close(ctx context.Context) error
}
