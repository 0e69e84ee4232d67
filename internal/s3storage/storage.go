// Package s3storage mirrors result files into a MinIO or S3 bucket.
package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/pdfbatch/internal/config"
)

const resultContentType = "application/json"

// Storage uploads result JSON under a fixed key prefix.
type Storage struct {
	client *minio.Client
	bucket string
	prefix string
	region string
}

// New creates a MinIO client from the S3 settings.
func New(cfg config.S3) (*Storage, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("init minio: endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		region: cfg.Region,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

// PutResult uploads one result file. It satisfies writer.Mirror.
func (s *Storage) PutResult(ctx context.Context, name string, data []byte) error {
	key := ObjectKey(s.prefix, name)
	opts := minio.PutObjectOptions{ContentType: resultContentType}
	if _, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return fmt.Errorf("upload result %s: %w", key, err)
	}
	return nil
}

// ObjectKey joins prefix and name with "/", ignoring stray slashes.
func ObjectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
