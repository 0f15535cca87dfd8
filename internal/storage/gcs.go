package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/lionswap/accounts/config"
	"google.golang.org/api/option"
)

// GCSBackend stores avatar objects in a Google Cloud Storage bucket.
type GCSBackend struct {
	client *storage.Client
	bucket string
}

// NewGCSBackend constructs a GCS backend from config.
func NewGCSBackend(ctx context.Context, cfg config.GCSConfig) (*GCSBackend, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &GCSBackend{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// EnsureBucket verifies the configured bucket exists. Buckets are
// provisioned out of band; a missing one is a configuration error.
func (g *GCSBackend) EnsureBucket(ctx context.Context) error {
	_, err := g.client.Bucket(g.bucket).Attrs(ctx)
	return err
}

// Put uploads an object and returns its public URI.
func (g *GCSBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	writer := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	if strings.TrimSpace(contentType) != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, key), nil
}

// Delete removes an object from the configured bucket.
func (g *GCSBackend) Delete(ctx context.Context, key string) error {
	err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}
