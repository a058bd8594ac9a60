package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	gcsclient "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/kebairia/bacli/internal/config"
)

const writerChunkSize = 1 << 20

// GCS stores archives in a Google Cloud Storage bucket.
type GCS struct {
	bucketName string
	prefix     string

	client *gcsclient.Client
	bucket *gcsclient.BucketHandle
}

// NewGCS creates a client using the credentials file from cfg, or the
// application default credentials when none is set.
func NewGCS(ctx context.Context, cfg config.StorageConfig) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name must be specified")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	cli, err := gcsclient.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create GCS client: %w", err)
	}

	return &GCS{
		bucketName: cfg.Bucket,
		prefix:     cfg.Prefix,
		client:     cli,
		bucket:     cli.Bucket(cfg.Bucket),
	}, nil
}

func (g *GCS) Upload(ctx context.Context, data []byte, objectPath, contentType string) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	name := objectName(g.prefix, objectPath)
	writer := g.bucket.Object(name).NewWriter(ctx)
	writer.ChunkSize = writerChunkSize
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		// cancelling before Close abandons the upload.
		cancel()
		_ = writer.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("commit %s: %w", name, err)
	}

	return gcsURL(g.bucketName, name), nil
}

func (g *GCS) Download(ctx context.Context, objectPath string) ([]byte, error) {
	name := objectName(g.prefix, objectPath)
	reader, err := g.bucket.Object(name).NewReader(ctx)
	if errors.Is(err, gcsclient.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, g.bucketName, name)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (g *GCS) Delete(ctx context.Context, objectPath string) error {
	name := objectName(g.prefix, objectPath)
	err := g.bucket.Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, gcsclient.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func gcsURL(bucket, name string) string {
	return "https://storage.googleapis.com/" + bucket + "/" + name
}
