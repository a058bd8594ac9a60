// Package objectstore uploads, fetches and deletes backup archives in
// durable object storage.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/kebairia/bacli/internal/config"
)

// ErrObjectNotFound is returned by Download when nothing exists at a path.
var ErrObjectNotFound = errors.New("object not found")

// Store is the narrow contract the coordinators need from object storage.
type Store interface {
	// Upload writes data at objectPath and returns a reference URL.
	Upload(ctx context.Context, data []byte, objectPath, contentType string) (string, error)
	Download(ctx context.Context, objectPath string) ([]byte, error)
	// Delete removes objectPath. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error
	Close() error
}

// New builds the Store selected by cfg.Provider.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Provider {
	case config.ProviderGCS:
		return NewGCS(ctx, cfg)
	case config.ProviderS3:
		return NewS3(cfg)
	case config.ProviderFilesystem:
		return NewFilesystem(cfg.Directory)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

func objectName(prefix, objectPath string) string {
	if prefix == "" {
		return objectPath
	}
	return path.Join(prefix, objectPath)
}
