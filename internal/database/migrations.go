package database

import (
	"fmt"

	"gorm.io/gorm"

	"imobiliaria/server/internal/models"
)

// MigrateSchema creates or updates the listings and orphaned_photos tables.
func MigrateSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Listing{}, &models.OrphanedPhoto{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Listing order is by id, created_at is only filtered by the backfill.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_listings_created_at ON listings(created_at)`).Error; err != nil {
		return fmt.Errorf("failed to create created_at index: %w", err)
	}

	return nil
}
