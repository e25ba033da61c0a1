package processor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"imobiliaria/server/config"
	"imobiliaria/server/internal/database"
	"imobiliaria/server/internal/models"
	"imobiliaria/server/internal/queue"
	"imobiliaria/server/internal/storage"
)

// Transactor runs fc in a database transaction. *gorm.DB satisfies it.
type Transactor interface {
	Transaction(fc func(*gorm.DB) error, opts ...*sql.TxOptions) error
}

// Deleter removes a stored object by reference.
type Deleter interface {
	Delete(ctx context.Context, ref string) error
}

// BatchSource pages through recorded orphans.
type BatchSource interface {
	NextBatch(ctx context.Context, afterID int64, limit int) ([]models.OrphanedPhoto, error)
}

// SweepStats summarises a sweep run.
type SweepStats struct {
	Batches int `json:"batches"`
	Swept   int `json:"swept"`
	Failed  int `json:"failed"`
}

// SweepProcessor deletes orphaned photo objects pulled from the queue and
// drops their rows once the object is gone.
type SweepProcessor struct {
	db        Transactor
	store     Deleter
	logger    *logrus.Logger
	config    *config.Config
	queue     *queue.OrphanQueue
	inflight  sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	stats     SweepStats
	consuming sync.Once
}

// NewSweepProcessor creates a new sweep processor instance
func NewSweepProcessor(db Transactor, store Deleter, queue *queue.OrphanQueue, config *config.Config, logger *logrus.Logger) *SweepProcessor {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SweepProcessor{
		db:     db,
		store:  store,
		queue:  queue,
		config: config,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the configured number of queue consumers. Later calls are
// no-ops.
func (p *SweepProcessor) Start() {
	p.consuming.Do(func() {
		p.queue.Consume(p.config.BatchProcessing.ProcessorCount, p.handle)
	})
}

// Stop cancels pending retries and closes the queue
func (p *SweepProcessor) Stop() {
	p.cancel()
	p.queue.Close()
}

// Submit queues a batch. A full queue is drained before retrying once.
func (p *SweepProcessor) Submit(batch []models.OrphanedPhoto) error {
	p.inflight.Add(1)
	err := p.queue.Push(batch)
	if errors.Is(err, queue.ErrQueueFull) {
		p.inflight.Done()
		p.inflight.Wait()
		p.inflight.Add(1)
		err = p.queue.Push(batch)
	}
	if err != nil {
		p.inflight.Done()
		return fmt.Errorf("failed to queue orphan batch: %w", err)
	}
	return nil
}

// Wait blocks until every submitted batch has been handled
func (p *SweepProcessor) Wait() SweepStats {
	p.inflight.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Run pages through every recorded orphan, queues the batches and waits for
// them to finish.
func (p *SweepProcessor) Run(ctx context.Context, source BatchSource) (SweepStats, error) {
	size := p.config.BatchProcessing.MaxBatchSize
	if size < 1 {
		size = 100
	}

	var after int64
	for {
		batch, err := source.NextBatch(ctx, after, size)
		if err != nil {
			return p.Wait(), err
		}
		if len(batch) == 0 {
			break
		}
		after = batch[len(batch)-1].ID

		if err := p.Submit(batch); err != nil {
			return p.Wait(), err
		}
	}

	return p.Wait(), nil
}

func (p *SweepProcessor) handle(batch []models.OrphanedPhoto) error {
	defer p.inflight.Done()
	return p.processBatch(batch)
}

// processBatch deletes every object in the batch, retrying failures, then
// records the outcome in one transaction
func (p *SweepProcessor) processBatch(batch []models.OrphanedPhoto) error {
	pending := batch
	var swept []int64

	for attempt := 0; attempt <= p.config.BatchProcessing.MaxRetries && len(pending) > 0; attempt++ {
		if attempt > 0 {
			p.logger.Infof("Retrying orphan deletion, attempt %d of %d", attempt, p.config.BatchProcessing.MaxRetries)
			select {
			case <-p.ctx.Done():
				return p.ctx.Err()
			case <-time.After(time.Duration(p.config.BatchProcessing.RetryDelay) * time.Second):
			}
		}

		var failed []models.OrphanedPhoto
		for _, orphan := range pending {
			err := p.store.Delete(p.ctx, orphan.Ref)
			switch {
			case err == nil:
				swept = append(swept, orphan.ID)
			case errors.Is(err, storage.ErrNotOwned):
				p.logger.WithField("ref", orphan.Ref).Warn("Dropping orphan not owned by the configured storage")
				swept = append(swept, orphan.ID)
			default:
				p.logger.WithError(err).WithField("ref", orphan.Ref).Warn("Failed to delete orphaned photo")
				failed = append(failed, orphan)
			}
		}
		pending = failed
	}

	failedIDs := make([]int64, 0, len(pending))
	for _, orphan := range pending {
		failedIDs = append(failedIDs, orphan.ID)
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := database.RemoveOrphans(tx, swept); err != nil {
			return err
		}
		return database.MarkOrphanAttempts(tx, failedIDs)
	})
	if err != nil {
		return fmt.Errorf("failed to record sweep of %d orphans: %w", len(batch), err)
	}

	p.mu.Lock()
	p.stats.Batches++
	p.stats.Swept += len(swept)
	p.stats.Failed += len(pending)
	p.mu.Unlock()

	if len(pending) > 0 {
		return fmt.Errorf("failed to delete %d of %d orphaned photos after %d attempts", len(pending), len(batch), p.config.BatchProcessing.MaxRetries+1)
	}

	p.logger.Infof("Successfully swept batch of %d orphaned photos", len(batch))
	return nil
}
