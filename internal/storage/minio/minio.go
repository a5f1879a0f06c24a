// Package minio stores objects in a MinIO or S3-compatible bucket.
package minio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/utafrali/marketplace/internal/storage"
)

// Config holds the connection settings for the bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// PublicURL prefixes object URLs handed to clients. Defaults to the
	// bucket path on Endpoint.
	PublicURL string
}

// Storage implements storage.Storage on a single bucket.
type Storage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

var _ storage.Storage = (*Storage)(nil)

// New connects to the endpoint. It does not touch the bucket; call
// EnsureBucket at startup.
func New(cfg Config) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("minio: bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: publicBase(cfg),
	}, nil
}

func publicBase(cfg Config) string {
	if cfg.PublicURL != "" {
		return strings.TrimRight(cfg.PublicURL, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
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
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Upload puts the object into the bucket.
func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	_, err := s.client.PutObject(ctx, s.bucket, input.Key, input.Data, input.Size,
		minio.PutObjectOptions{ContentType: input.ContentType})
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", input.Key, err)
	}
	return &storage.UploadResult{Key: input.Key, URL: s.publicURL + "/" + input.Key}, nil
}

// Delete removes the object from the bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// KeyFromURL strips the public URL prefix.
func (s *Storage) KeyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, s.publicURL+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// Ping checks that the bucket is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("minio ping: %w", err)
	}
	return nil
}
