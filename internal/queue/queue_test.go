package queue

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"imobiliaria/server/internal/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestNewOrphanQueue(t *testing.T) {
	q := NewOrphanQueue(10, nil)
	assert.NotNil(t, q)
	assert.Equal(t, 10, cap(q.batches))
	assert.False(t, q.IsClosed())

	assert.Equal(t, 1, cap(NewOrphanQueue(0, nil).batches))
}

func TestOrphanQueue_Push(t *testing.T) {
	q := NewOrphanQueue(2, quietLogger())

	batch := []models.OrphanedPhoto{{Ref: "/uploads/a.jpg"}}
	assert.NoError(t, q.Push(batch))
	assert.Equal(t, 1, q.Len())

	assert.NoError(t, q.Push(batch))
	assert.ErrorIs(t, q.Push(batch), ErrQueueFull)

	q.Close()
	assert.ErrorIs(t, q.Push(batch), ErrQueueClosed)
}

func TestOrphanQueue_Close(t *testing.T) {
	q := NewOrphanQueue(10, quietLogger())
	q.Consume(1, func([]models.OrphanedPhoto) error { return nil })

	q.Close()
	assert.True(t, q.IsClosed())

	assert.NotPanics(t, q.Close)
}

func TestOrphanQueue_DrainsAfterClose(t *testing.T) {
	q := NewOrphanQueue(10, quietLogger())

	for _, ref := range []string{"a", "b", "c"} {
		assert.NoError(t, q.Push([]models.OrphanedPhoto{{Ref: ref}}))
	}
	q.Close()

	var mu sync.Mutex
	var seen []string
	q.Consume(1, func(batch []models.OrphanedPhoto) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, batch[0].Ref)
		return nil
	})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"a", "b", "c"}, seen)
	mu.Unlock()
}

func TestOrphanQueue_HandlerErrorKeepsConsuming(t *testing.T) {
	q := NewOrphanQueue(10, quietLogger())
	defer q.Close()

	var mu sync.Mutex
	calls := 0
	q.Consume(1, func([]models.OrphanedPhoto) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return errors.New("storage down")
	})

	assert.NoError(t, q.Push([]models.OrphanedPhoto{{Ref: "a"}}))
	assert.NoError(t, q.Push([]models.OrphanedPhoto{{Ref: "b"}}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 2
	}, time.Second, 10*time.Millisecond)
}

func TestOrphanQueue_MultipleConsumers(t *testing.T) {
	q := NewOrphanQueue(20, quietLogger())
	defer q.Close()

	var mu sync.Mutex
	seen := make(map[string]int)
	q.Consume(4, func(batch []models.OrphanedPhoto) error {
		mu.Lock()
		defer mu.Unlock()
		for _, o := range batch {
			seen[o.Ref]++
		}
		return nil
	})

	refs := []string{"a", "b", "c", "d", "e", "f"}
	for _, ref := range refs {
		assert.NoError(t, q.Push([]models.OrphanedPhoto{{Ref: ref}}))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == len(refs)
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	for _, ref := range refs {
		assert.Equal(t, 1, seen[ref], ref)
	}
	mu.Unlock()
}
