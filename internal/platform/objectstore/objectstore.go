// Package objectstore wraps an S3-compatible bucket holding the uploaded
// PDF binaries. Keys are derived from the owning user, upload time and
// filename, so listing a user prefix yields that user's files.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"docuchat/internal/config"
	"docuchat/internal/pkg/retryutil"
)

type Store struct {
	client     *minio.Client
	bucket     string
	maxRetries int
}

func New(ctx context.Context, cfg config.ObjectStoreConfig) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client failed: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(checkCtx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket failed: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(checkCtx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket failed: %w", err)
		}
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &Store{client: client, bucket: cfg.Bucket, maxRetries: maxRetries}, nil
}

// ObjectKey builds the storage key for an upload.
func ObjectKey(userID, filename string, uploadedAt time.Time) string {
	return path.Join(userID, fmt.Sprintf("%d-%s", uploadedAt.Unix(), filename))
}

// Put uploads data under key, retrying transient failures with backoff.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	err := retryutil.Do(ctx, s.maxRetries, 300*time.Millisecond, func(ctx context.Context) error {
		_, putErr := s.client.PutObject(ctx, s.bucket, key,
			bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: "application/pdf"})
		return putErr
	})
	if err != nil {
		return fmt.Errorf("upload object %q failed: %w", key, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q failed: %w", key, err)
	}
	return nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("object store unreachable: %w", err)
	}
	return nil
}
