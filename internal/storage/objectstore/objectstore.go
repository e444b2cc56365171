// Package objectstore implements a document backend on an S3-compatible
// object store through the MinIO client.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/steveyegge/plangraph/internal/storage/doc"
)

// Config holds object store connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// Prefix is prepended to every key, so several roots can share a bucket
	Prefix string
}

// Backend stores each document as one object.
type Backend struct {
	client *minio.Client
	bucket string
	prefix string
}

// New connects to the endpoint and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object store endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Backend{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

func (b *Backend) object(key string) string {
	return b.prefix + key
}

// Get reads one document.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, b.object(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, b.translate(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, b.translate(key, err)
	}
	return data, nil
}

func (b *Backend) translate(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return doc.NotFound(key)
	}
	return fmt.Errorf("failed to get object %s: %w", key, err)
}

// List returns all keys starting with prefix, sorted.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for info := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    b.object(prefix),
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", info.Err)
		}
		keys = append(keys, strings.TrimPrefix(info.Key, b.prefix))
	}
	sort.Strings(keys)
	return keys, nil
}

// Commit puts objects in batch order, then removes deletes. Object stores
// have no multi-object transaction; callers rely on write order.
func (b *Backend) Commit(ctx context.Context, batch *doc.Batch) error {
	for _, w := range batch.Writes {
		if err := doc.ValidateKey(w.Key); err != nil {
			return err
		}
		_, err := b.client.PutObject(ctx, b.bucket, b.object(w.Key),
			bytes.NewReader(w.Data), int64(len(w.Data)),
			minio.PutObjectOptions{ContentType: "application/octet-stream"})
		if err != nil {
			return fmt.Errorf("failed to put object %s: %w", w.Key, err)
		}
	}
	for _, key := range batch.Deletes {
		if err := b.client.RemoveObject(ctx, b.bucket, b.object(key), minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to remove object %s: %w", key, err)
		}
	}
	return nil
}

// Close releases nothing; the client holds no persistent connection.
func (b *Backend) Close() error {
	return nil
}
