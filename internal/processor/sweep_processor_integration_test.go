package processor

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"imobiliaria/server/internal/database"
	"imobiliaria/server/internal/models"
	"imobiliaria/server/internal/queue"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.NewTestDB()
	require.NoError(t, err)

	err = database.MigrateSchema(db)
	require.NoError(t, err)

	return db
}

func TestSweepIntegration(t *testing.T) {
	db := setupTestDB(t)
	orphans := database.NewOrphanRepository(db)
	ctx := context.Background()

	refs := make([]string, 25)
	for i := range refs {
		refs[i] = fmt.Sprintf("/uploads/imobiliaria/%02d.jpg", i)
	}
	require.NoError(t, orphans.Record(ctx, models.OrphanPersistFailed, nil, refs...))

	store := newFakeStore()
	store.failures[refs[7]] = 100

	cfg := testConfig()
	cfg.BatchProcessing.MaxRetries = 1
	q := queue.NewOrphanQueue(1, quietLogger())
	processor := NewSweepProcessor(db, store, q, cfg, quietLogger())
	processor.Start()
	defer processor.Stop()

	stats, err := processor.Run(ctx, orphans)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, 24, stats.Swept)
	assert.Equal(t, 1, stats.Failed)
	assert.Len(t, store.deleted, 24)

	left, err := orphans.NextBatch(ctx, 0, 100)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, refs[7], left[0].Ref)
	assert.Equal(t, 1, left[0].Attempts)
}

func TestSweepIntegration_Empty(t *testing.T) {
	db := setupTestDB(t)
	processor := NewSweepProcessor(db, newFakeStore(), queue.NewOrphanQueue(4, nil), testConfig(), quietLogger())
	processor.Start()
	defer processor.Stop()

	stats, err := processor.Run(context.Background(), database.NewOrphanRepository(db))
	require.NoError(t, err)
	assert.Equal(t, SweepStats{}, stats)
}
