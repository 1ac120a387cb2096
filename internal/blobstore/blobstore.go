// Package blobstore wraps MinIO/S3 interactions for proof-of-payment files.
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nexusacademy/inscriptio/internal/config"
)

// Store wraps a MinIO client bound to the proof bucket.
type Store struct {
	client     *minio.Client
	bucket     string
	region     string
	publicBase string
	signedTTL  time.Duration
}

// Object describes one stored blob, as seen by the orphan sweep.
type Object struct {
	Key          string
	LastModified time.Time
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Store, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Store{
		client:     client,
		bucket:     cfg.Bucket,
		region:     cfg.S3Region,
		publicBase: strings.TrimSuffix(cfg.PublicBase, "/"),
		signedTTL:  cfg.SignedURLTTL,
	}, nil
}

// EnsureBucket makes sure the proof bucket exists before use.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Put uploads a proof file under the derived key.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return fmt.Errorf("upload proof %s: %w", key, err)
	}
	return nil
}

// Get fetches the proof bytes from storage.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get proof %s: %w", key, err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read proof %s: %w", key, err)
	}
	return buf, nil
}

// ProofURL resolves a retrievable URL for a stored key. When a public base is
// configured (a CDN or the bucket's public prefix) it is used directly;
// otherwise a time-limited presigned GET keeps private buckets reachable.
func (s *Store) ProofURL(ctx context.Context, key string) (string, error) {
	if s.publicBase != "" {
		return s.publicBase + "/" + url.PathEscape(key), nil
	}
	return s.PresignedURL(ctx, key, s.signedTTL)
}

// PresignedURL returns a time-limited signed GET URL for a proof.
func (s *Store) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign proof %s: %w", key, err)
	}
	return u.String(), nil
}

// ListObjects enumerates every key in the proof bucket.
func (s *Store) ListObjects(ctx context.Context) ([]Object, error) {
	var out []Object
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list bucket %s: %w", s.bucket, info.Err)
		}
		out = append(out, Object{Key: info.Key, LastModified: info.LastModified})
	}
	return out, nil
}

// Remove deletes an orphaned object. Only the sweep calls this; the ingestion
// flow never deletes.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}
