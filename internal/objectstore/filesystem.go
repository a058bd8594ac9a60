package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/kebairia/bacli/internal/backup"
)

// Filesystem keeps archives under a local (or mounted) directory.
type Filesystem struct {
	root string
}

// NewFilesystem creates the root directory when missing.
func NewFilesystem(root string) (*Filesystem, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", root, err)
	}
	if err := backup.EnsureDirectoryExist(abs); err != nil {
		return nil, err
	}
	return &Filesystem{root: abs}, nil
}

func (f *Filesystem) path(objectPath string) string {
	return filepath.Join(f.root, filepath.FromSlash(objectPath))
}

func (f *Filesystem) Upload(ctx context.Context, data []byte, objectPath, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target := f.path(objectPath)
	if err := backup.EnsureDirectoryExist(filepath.Dir(target)); err != nil {
		return "", err
	}
	if err := atomic.WriteFile(target, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(target)}).String(), nil
}

func (f *Filesystem) Download(ctx context.Context, objectPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(objectPath))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, objectPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", objectPath, err)
	}
	return data, nil
}

func (f *Filesystem) Delete(ctx context.Context, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(f.path(objectPath))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", objectPath, err)
	}
	return nil
}

func (f *Filesystem) Close() error {
	return nil
}
