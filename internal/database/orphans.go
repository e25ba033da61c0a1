package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"imobiliaria/server/internal/models"
)

// OrphanRepository tracks stored files no listing references anymore.
type OrphanRepository struct {
	db *gorm.DB
}

func NewOrphanRepository(db *gorm.DB) *OrphanRepository {
	return &OrphanRepository{db: db}
}

// Record stores one row per ref. Nothing is written for an empty list.
func (r *OrphanRepository) Record(ctx context.Context, reason string, listingID *int64, refs ...string) error {
	if len(refs) == 0 {
		return nil
	}

	rows := make([]models.OrphanedPhoto, 0, len(refs))
	for _, ref := range refs {
		rows = append(rows, models.OrphanedPhoto{Ref: ref, Reason: reason, ListingID: listingID})
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to record %d orphaned photos: %w", len(refs), err)
	}
	return nil
}

// NextBatch returns up to limit rows with id greater than afterID.
func (r *OrphanRepository) NextBatch(ctx context.Context, afterID int64, limit int) ([]models.OrphanedPhoto, error) {
	var rows []models.OrphanedPhoto
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query orphaned photos: %w", err)
	}
	return rows, nil
}

func (r *OrphanRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.OrphanedPhoto{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count orphaned photos: %w", err)
	}
	return count, nil
}

// RemoveOrphans deletes swept rows inside the caller's transaction.
func RemoveOrphans(tx *gorm.DB, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Delete(&models.OrphanedPhoto{}, ids).Error; err != nil {
		return fmt.Errorf("failed to remove orphaned photos: %w", err)
	}
	return nil
}

// MarkOrphanAttempts bumps the attempt counter of rows whose object could
// not be deleted.
func MarkOrphanAttempts(tx *gorm.DB, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := tx.Model(&models.OrphanedPhoto{}).
		Where("id IN ?", ids).
		UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to mark orphan attempts: %w", err)
	}
	return nil
}
