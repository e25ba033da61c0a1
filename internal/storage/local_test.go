package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) *LocalStorage {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	s, err := NewLocalStorage(LocalConfig{Dir: t.TempDir(), PublicPath: "/uploads/"}, "imobiliaria", logger)
	require.NoError(t, err)
	return s
}

func TestLocalStorage_SaveAndDelete(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	ref, err := s.Save(ctx, "casa.png", "image/png", strings.NewReader("png-bytes"), 9)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "/uploads/imobiliaria/"))
	assert.True(t, strings.HasSuffix(ref, ".png"))
	assert.True(t, s.Owns(ref))

	path := filepath.Join(s.Dir(), filepath.FromSlash(strings.TrimPrefix(ref, "/uploads/")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, s.Delete(ctx, ref))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, s.Delete(ctx, ref), "deleting a missing file is not an error")
}

func TestLocalStorage_DeleteNotOwned(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	for _, ref := range []string{
		"https://cdn.example.com/a.jpg",
		"/static/a.jpg",
		"/uploads/../config.env",
	} {
		assert.ErrorIs(t, s.Delete(ctx, ref), ErrNotOwned, ref)
	}
}

func TestLocalStorage_SaveCancelled(t *testing.T) {
	s := newTestLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Save(ctx, "a.jpg", "image/jpeg", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewLocalStorage_RequiresDir(t *testing.T) {
	_, err := NewLocalStorage(LocalConfig{}, "", logrus.New())
	assert.Error(t, err)
}
