package blob

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds connection settings for a MinIO (or S3-compatible)
// blob store.
type MinioConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UseSSL       bool
	ReferenceTTL time.Duration
}

// MinioStore implements Store against MinIO. Retrieval references are
// presigned GET URLs.
type MinioStore struct {
	client       *minio.Client
	bucket       string
	referenceTTL time.Duration
}

// NewMinioStore connects to MinIO and ensures the bucket exists.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to minio: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	ttl := cfg.ReferenceTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	return &MinioStore{client: client, bucket: cfg.Bucket, referenceTTL: ttl}, nil
}

func (s *MinioStore) Upload(ctx context.Context, key string, data []byte) (UploadResult, error) {
	contentType := http.DetectContentType(data)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return UploadResult{}, blobError("upload", key, err)
	}
	return UploadResult{Bucket: s.bucket, Key: key}, nil
}

func (s *MinioStore) RetrievalReference(ctx context.Context, result UploadResult) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, result.Bucket, result.Key, s.referenceTTL, nil)
	if err != nil {
		return "", blobError("reference", result.Key, err)
	}
	return url.String(), nil
}
