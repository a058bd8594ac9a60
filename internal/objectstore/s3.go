package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kebairia/bacli/internal/config"
)

// S3 stores archives in any S3-compatible bucket.
type S3 struct {
	bucket string
	prefix string

	cli *minio.Client
}

// NewS3 creates a MinIO client for cfg.Endpoint with static credentials.
func NewS3(cfg config.StorageConfig) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name must be specified")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create S3 client: %w", err)
	}

	return &S3{bucket: cfg.Bucket, prefix: cfg.Prefix, cli: cli}, nil
}

func (s *S3) Upload(ctx context.Context, data []byte, objectPath, contentType string) (string, error) {
	key := objectName(s.prefix, objectPath)
	_, err := s.cli.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	u := *s.cli.EndpointURL()
	u.Path = path.Join("/", s.bucket, key)
	return u.String(), nil
}

func (s *S3) Download(ctx context.Context, objectPath string) ([]byte, error) {
	key := objectName(s.prefix, objectPath)
	obj, err := s.cli.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateS3Error(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translateS3Error(key, err)
	}
	return data, nil
}

func (s *S3) Delete(ctx context.Context, objectPath string) error {
	key := objectName(s.prefix, objectPath)
	if err := s.cli.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *S3) Close() error {
	return nil
}

func translateS3Error(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return fmt.Errorf("download %s: %w", key, err)
}
