package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNotOwned is returned by Delete for references this backend did not
// produce, such as external URLs supplied by clients.
var ErrNotOwned = errors.New("reference not owned by storage")

// Storage saves uploaded files and returns a durable reference to each.
type Storage interface {
	Save(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error)
	Delete(ctx context.Context, ref string) error
	Owns(ref string) bool
}

const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendGCS   = "gcs"
	BackendMinIO = "minio"
)

// Config selects and configures one backend.
type Config struct {
	Backend string
	Prefix  string
	Local   LocalConfig
	S3      S3Config
	GCS     GCSConfig
	MinIO   MinIOConfig
}

// Close releases the backend's client when it holds one. Backends without
// long-lived connections are left alone.
func Close(s Storage) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// New builds the configured backend.
func New(ctx context.Context, cfg Config, logger *logrus.Logger) (Storage, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	var (
		s   Storage
		err error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", BackendLocal:
		s, err = NewLocalStorage(cfg.Local, cfg.Prefix, logger)
	case BackendS3:
		s, err = NewS3Storage(ctx, cfg.S3, cfg.Prefix, logger)
	case BackendGCS:
		s, err = NewGCSStorage(ctx, cfg.GCS, cfg.Prefix, logger)
	case BackendMinIO:
		s, err = NewMinIOStorage(ctx, cfg.MinIO, cfg.Prefix, logger)
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// objectKey names a new object <prefix>/<uuid><ext>, keeping the original
// extension lower-cased.
func objectKey(prefix, name string) string {
	key := uuid.NewString() + strings.ToLower(filepath.Ext(name))
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

// publicURL maps object keys to references under a base URL or path and back.
type publicURL struct {
	base string
}

func newPublicURL(base string) publicURL {
	return publicURL{base: strings.TrimRight(base, "/")}
}

func (u publicURL) refFor(key string) string {
	return u.base + "/" + key
}

func (u publicURL) keyFor(ref string) (string, bool) {
	key, ok := strings.CutPrefix(ref, u.base+"/")
	if !ok || key == "" || strings.HasPrefix(key, "/") {
		return "", false
	}
	if path.Clean(key) != key {
		return "", false
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", false
		}
	}
	return key, true
}

func (u publicURL) Owns(ref string) bool {
	_, ok := u.keyFor(ref)
	return ok
}
