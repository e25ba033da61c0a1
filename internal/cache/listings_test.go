package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"imobiliaria/server/internal/models"
)

type mapClient struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet error
}

func newMapClient() *mapClient {
	return &mapClient{data: make(map[string][]byte)}
}

func (c *mapClient) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet != nil {
		return nil, c.failGet
	}
	v, ok := c.data[key]
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (c *mapClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapClient) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *mapClient) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, l *models.Listing) error {
	return m.Called(l).Error(0)
}

func (m *mockRepo) FindAll(ctx context.Context) ([]models.Listing, error) {
	args := m.Called()
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *mockRepo) FindByID(ctx context.Context, id int64) (*models.Listing, error) {
	args := m.Called(id)
	l, _ := args.Get(0).(*models.Listing)
	return l, args.Error(1)
}

func (m *mockRepo) Update(ctx context.Context, id int64, l *models.Listing) (*models.Listing, error) {
	args := m.Called(id, l)
	out, _ := args.Get(0).(*models.Listing)
	return out, args.Error(1)
}

func (m *mockRepo) Delete(ctx context.Context, id int64) error {
	return m.Called(id).Error(0)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestListings_FindByIDReadsThrough(t *testing.T) {
	repo := &mockRepo{}
	client := newMapClient()
	c := NewListings(repo, client, time.Minute, quietLogger())
	ctx := context.Background()

	repo.On("FindByID", int64(3)).Return(&models.Listing{ID: 3, Title: "Casa"}, nil).Once()

	first, err := c.FindByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Casa", first.Title)
	assert.True(t, client.has("listing:3"))

	second, err := c.FindByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, first.Title, second.Title)

	repo.AssertNumberOfCalls(t, "FindByID", 1)
}

func TestListings_CacheFailureFallsBack(t *testing.T) {
	repo := &mockRepo{}
	client := newMapClient()
	client.failGet = errors.New("connection refused")
	c := NewListings(repo, client, time.Minute, quietLogger())

	repo.On("FindByID", int64(1)).Return(&models.Listing{ID: 1, Title: "Apto"}, nil).Twice()

	for i := 0; i < 2; i++ {
		l, err := c.FindByID(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Apto", l.Title)
	}
	repo.AssertExpectations(t)
}

func TestListings_NotFoundIsNotCached(t *testing.T) {
	repo := &mockRepo{}
	client := newMapClient()
	c := NewListings(repo, client, time.Minute, quietLogger())
	notFound := errors.New("record not found")

	repo.On("FindByID", int64(9)).Return(nil, notFound)

	_, err := c.FindByID(context.Background(), 9)
	assert.ErrorIs(t, err, notFound)
	assert.False(t, client.has("listing:9"))
}

func TestListings_WritesInvalidate(t *testing.T) {
	repo := &mockRepo{}
	client := newMapClient()
	c := NewListings(repo, client, time.Minute, quietLogger())
	ctx := context.Background()

	client.data["listing:4"] = []byte(`{"id":4,"title":"stale"}`)
	updated := &models.Listing{ID: 4, Title: "fresh"}
	repo.On("Update", int64(4), updated).Return(updated, nil)

	_, err := c.Update(ctx, 4, updated)
	require.NoError(t, err)
	assert.False(t, client.has("listing:4"))

	client.data["listing:5"] = []byte(`{"id":5}`)
	repo.On("Delete", int64(5)).Return(nil)
	require.NoError(t, c.Delete(ctx, 5))
	assert.False(t, client.has("listing:5"))
}

func TestListings_FailedWriteKeepsEntry(t *testing.T) {
	repo := &mockRepo{}
	client := newMapClient()
	c := NewListings(repo, client, time.Minute, quietLogger())

	client.data["listing:6"] = []byte(`{"id":6}`)
	repo.On("Delete", int64(6)).Return(errors.New("disk full"))

	assert.Error(t, c.Delete(context.Background(), 6))
	assert.True(t, client.has("listing:6"))
}

func TestListings_UnreadableEntryIsReplaced(t *testing.T) {
	repo := &mockRepo{}
	client := newMapClient()
	logger, hook := test.NewNullLogger()
	c := NewListings(repo, client, time.Minute, logger)

	client.data["listing:2"] = []byte("not json")
	repo.On("FindByID", int64(2)).Return(&models.Listing{ID: 2, Title: "Sala"}, nil).Once()

	l, err := c.FindByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Sala", l.Title)
	assert.Contains(t, string(client.data["listing:2"]), `"title":"Sala"`)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "Discarding unreadable cache entry", entry.Message)
	assert.NotNil(t, entry.Data[logrus.ErrorKey])
}
