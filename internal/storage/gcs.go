package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

type GCSConfig struct {
	Bucket          string
	CredentialsFile string
	PublicBaseURL   string
}

type GCSStorage struct {
	publicURL
	client *gcs.Client
	bucket string
	prefix string
	logger *logrus.Logger
}

// NewGCSStorage uses the service account file when given, otherwise the
// application default credentials.
func NewGCSStorage(ctx context.Context, cfg GCSConfig, prefix string, logger *logrus.Logger) (*GCSStorage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("missing GCS bucket (UPLOAD_GCS_BUCKET)")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, cfg.CredentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	base := cfg.PublicBaseURL
	if base == "" {
		base = "https://storage.googleapis.com/" + cfg.Bucket
	}

	logger.WithField("bucket", cfg.Bucket).Info("Using GCS upload storage")
	return &GCSStorage{
		publicURL: newPublicURL(base),
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    prefix,
		logger:    logger,
	}, nil
}

func (s *GCSStorage) Save(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error) {
	key := objectKey(s.prefix, name)

	w := s.client.Bucket(s.bucket).Object(key).
		If(gcs.Conditions{DoesNotExist: true}).
		NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	s.logger.WithFields(logrus.Fields{"bucket": s.bucket, "key": key, "size": size}).Debug("Stored upload")
	return s.refFor(key), nil
}

// Delete treats a missing object as already deleted.
func (s *GCSStorage) Delete(ctx context.Context, ref string) error {
	key, ok := s.keyFor(ref)
	if !ok {
		return ErrNotOwned
	}

	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *GCSStorage) Close() error {
	return s.client.Close()
}
