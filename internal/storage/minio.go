package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

type MinIOConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

type MinIOStorage struct {
	publicURL
	client *minio.Client
	bucket string
	prefix string
	logger *logrus.Logger
}

// NewMinIOStorage connects and creates the bucket when it does not exist.
func NewMinIOStorage(ctx context.Context, cfg MinIOConfig, prefix string, logger *logrus.Logger) (*MinIOStorage, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("missing MinIO endpoint or bucket (UPLOAD_MINIO_ENDPOINT, UPLOAD_MINIO_BUCKET)")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client for %s: %w", cfg.Endpoint, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		logger.WithField("bucket", cfg.Bucket).Info("Created upload bucket")
	}

	base := cfg.PublicBaseURL
	if base == "" {
		base = client.EndpointURL().String() + "/" + cfg.Bucket
	}

	logger.WithFields(logrus.Fields{"bucket": cfg.Bucket, "endpoint": cfg.Endpoint}).Info("Using MinIO upload storage")
	return &MinIOStorage{
		publicURL: newPublicURL(base),
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    prefix,
		logger:    logger,
	}, nil
}

func (s *MinIOStorage) Save(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error) {
	key := objectKey(s.prefix, name)

	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	s.logger.WithFields(logrus.Fields{"bucket": info.Bucket, "key": info.Key, "etag": info.ETag}).Debug("Stored upload")
	return s.refFor(key), nil
}

func (s *MinIOStorage) Delete(ctx context.Context, ref string) error {
	key, ok := s.keyFor(ref)
	if !ok {
		return ErrNotOwned
	}

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
