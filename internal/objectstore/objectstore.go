// Package objectstore provides the durable payload store behind the snapshot
// index: an S3-compatible bucket accessed through the MinIO client.
package objectstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("objectstore: endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("objectstore: endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return fmt.Errorf("objectstore: access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return fmt.Errorf("objectstore: secret key is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("objectstore: bucket is required")
	}
	return nil
}

// Store uploads snapshot payloads to one bucket and hands back the public
// HTTPS reference recorded in each metadata record.
type Store struct {
	client *minio.Client
	bucket string
	useSSL bool
}

func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: connect %s: %w", cfg.Endpoint, err)
	}
	return &Store{client: client, bucket: cfg.Bucket, useSSL: cfg.UseSSL}, nil
}

// Upload copies the local file to key and returns the remote reference.
func (s *Store) Upload(ctx context.Context, key, localPath, contentType string) (string, error) {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.FPutObject(ctx, s.bucket, key, localPath, opts); err != nil {
		return "", fmt.Errorf("put %s/%s: %w", s.bucket, key, err)
	}
	return s.objectURL(key), nil
}

func (s *Store) objectURL(key string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.client.EndpointURL().Host, s.bucket, key)
}
