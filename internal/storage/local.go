package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

type LocalConfig struct {
	Dir        string
	PublicPath string
}

// LocalStorage writes files under a directory that the HTTP server exposes
// at PublicPath.
type LocalStorage struct {
	publicURL
	dir    string
	prefix string
	logger *logrus.Logger
}

func NewLocalStorage(cfg LocalConfig, prefix string, logger *logrus.Logger) (*LocalStorage, error) {
	if cfg.Dir == "" {
		return nil, errors.New("local upload directory is not set")
	}
	if cfg.PublicPath == "" {
		cfg.PublicPath = "/uploads"
	}

	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return &LocalStorage{
		publicURL: newPublicURL(cfg.PublicPath),
		dir:       dir,
		prefix:    prefix,
		logger:    logger,
	}, nil
}

// Dir is the directory to serve at PublicPath.
func (s *LocalStorage) Dir() string {
	return s.dir
}

func (s *LocalStorage) PublicPath() string {
	return s.base
}

func (s *LocalStorage) Save(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := objectKey(s.prefix, name)
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}

	s.logger.WithFields(logrus.Fields{"key": key, "size": size, "content_type": contentType}).Debug("Stored upload")
	return s.refFor(key), nil
}

// Delete removes the file behind ref. A file that is already gone is not an
// error.
func (s *LocalStorage) Delete(ctx context.Context, ref string) error {
	key, ok := s.keyFor(ref)
	if !ok {
		return ErrNotOwned
	}

	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
