package service

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ObjectStore stores exported files and hands out download URLs.
type ObjectStore interface {
	Put(ctx context.Context, objectName, contentType, downloadName string, data []byte) (string, error)
	// Expiry is how long the returned URLs stay valid.
	Expiry() time.Duration
}

// MinIOConfig is the connection and bucket configuration of MinIOStore.
type MinIOConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PresignExpiry time.Duration
}

// MinIOStore implements ObjectStore on a MinIO (or S3 compatible) bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	logger *zap.Logger
}

func NewMinIOStore(cfg MinIOConfig, logger *zap.Logger) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &MinIOStore{client: client, bucket: cfg.Bucket, expiry: expiry, logger: logger.Named("oss")}, nil
}

// Put uploads data and returns a presigned GET URL that downloads it as
// downloadName.
func (s *MinIOStore) Put(ctx context.Context, objectName, contentType, downloadName string, data []byte) (string, error) {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return "", fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return "", fmt.Errorf("create bucket: %w", err)
		}
		s.logger.Info("bucket created", zap.String("bucket", s.bucket))
	}

	_, err = s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload to minio: %w", err)
	}

	reqParams := make(url.Values)
	if downloadName != "" {
		reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	}
	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, s.expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("presign url: %w", err)
	}

	s.logger.Info("object uploaded", zap.String("object", objectName), zap.Int("bytes", len(data)))
	return presignedURL.String(), nil
}

// Expiry is how long presigned URLs stay valid.
func (s *MinIOStore) Expiry() time.Duration {
	return s.expiry
}
