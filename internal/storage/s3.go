package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// S3Config covers AWS S3 and S3 compatible services such as Cloudflare R2.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	UsePathStyle    bool
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Storage struct {
	publicURL
	client s3API
	bucket string
	prefix string
	logger *logrus.Logger
}

func NewS3Storage(ctx context.Context, cfg S3Config, prefix string, logger *logrus.Logger) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("missing S3 bucket (UPLOAD_S3_BUCKET)")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	base := cfg.PublicBaseURL
	if base == "" {
		base = defaultS3BaseURL(cfg)
	}

	logger.WithFields(logrus.Fields{"bucket": cfg.Bucket, "endpoint": cfg.Endpoint}).Info("Using S3 upload storage")
	return newS3Storage(client, cfg.Bucket, base, prefix, logger), nil
}

func newS3Storage(client s3API, bucket, base, prefix string, logger *logrus.Logger) *S3Storage {
	return &S3Storage{
		publicURL: newPublicURL(base),
		client:    client,
		bucket:    bucket,
		prefix:    prefix,
		logger:    logger,
	}
}

func defaultS3BaseURL(cfg S3Config) string {
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}

func (s *S3Storage) Save(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error) {
	key := objectKey(s.prefix, name)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	s.logger.WithFields(logrus.Fields{"bucket": s.bucket, "key": key, "size": size}).Debug("Stored upload")
	return s.refFor(key), nil
}

func (s *S3Storage) Delete(ctx context.Context, ref string) error {
	key, ok := s.keyFor(ref)
	if !ok {
		return ErrNotOwned
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
