package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"imobiliaria/server/internal/models"
)

// ListingRepository persists listings.
type ListingRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewListingRepository(db *gorm.DB) *ListingRepository {
	return &ListingRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts l and assigns its id. CreatedAt is stamped unless already set.
func (r *ListingRepository) Create(ctx context.Context, l *models.Listing) error {
	if l.CreatedAt == nil {
		now := r.now()
		l.CreatedAt = &now
	}
	if err := r.db.WithContext(ctx).Create(l).Error; err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

// FindAll returns every listing ordered by id. An empty table yields an
// empty, non-nil slice.
func (r *ListingRepository) FindAll(ctx context.Context) ([]models.Listing, error) {
	listings := make([]models.Listing, 0)
	if err := r.db.WithContext(ctx).Order("id").Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	return listings, nil
}

func (r *ListingRepository) FindByID(ctx context.Context, id int64) (*models.Listing, error) {
	var l models.Listing
	err := r.db.WithContext(ctx).First(&l, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query listing %d: %w", id, err)
	}
	return &l, nil
}

// Update replaces every column of listing id with l, keeping the original
// creation time.
func (r *ListingRepository) Update(ctx context.Context, id int64, l *models.Listing) (*models.Listing, error) {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	l.ID = id
	l.CreatedAt = existing.CreatedAt
	if err := r.db.WithContext(ctx).Save(l).Error; err != nil {
		return nil, fmt.Errorf("failed to update listing %d: %w", id, err)
	}
	return l, nil
}

func (r *ListingRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&models.Listing{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete listing %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// BackfillCreatedAt stamps rows written before created_at was tracked and
// returns how many were touched.
func (r *ListingRepository) BackfillCreatedAt(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("created_at IS NULL").
		UpdateColumn("created_at", r.now())
	if result.Error != nil {
		return 0, fmt.Errorf("failed to backfill created_at: %w", result.Error)
	}
	return result.RowsAffected, nil
}
