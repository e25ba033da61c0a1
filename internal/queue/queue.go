package queue

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"imobiliaria/server/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// Handler processes one batch of orphaned photos.
type Handler func([]models.OrphanedPhoto) error

// OrphanQueue hands batches of orphaned photos to a pool of consumers.
// Each batch reaches exactly one consumer. Batches still buffered when the
// queue is closed are drained before the consumers exit.
type OrphanQueue struct {
	batches chan []models.OrphanedPhoto
	mu      sync.RWMutex
	closed  bool
	logger  *logrus.Logger
}

// NewOrphanQueue creates a queue buffering up to capacity batches.
func NewOrphanQueue(capacity int, logger *logrus.Logger) *OrphanQueue {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &OrphanQueue{
		batches: make(chan []models.OrphanedPhoto, max(capacity, 1)),
		logger:  logger,
	}
}

// Push buffers a batch without blocking.
func (q *OrphanQueue) Push(batch []models.OrphanedPhoto) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.batches <- batch:
		q.logger.WithField("batch_size", len(batch)).Debug("Queued orphan batch")
		return nil
	default:
		return ErrQueueFull
	}
}

// Consume starts workers goroutines feeding batches to handle.
func (q *OrphanQueue) Consume(workers int, handle Handler) {
	for i := 0; i < max(workers, 1); i++ {
		go func() {
			for batch := range q.batches {
				if err := handle(batch); err != nil {
					q.logger.WithError(err).WithField("batch_size", len(batch)).Error("Orphan batch failed")
				}
			}
		}()
	}
}

// Close rejects further pushes. Closing twice is a no-op.
func (q *OrphanQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.batches)
}

// Len returns the number of buffered batches.
func (q *OrphanQueue) Len() int {
	return len(q.batches)
}

func (q *OrphanQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
