package models

import "time"

// Orphan reasons recorded with each reference.
const (
	OrphanPersistFailed = "persist_failed"
	OrphanDeleteFailed  = "delete_failed"
)

// OrphanedPhoto is a stored file reference that no listing points at, left
// behind by a partially completed request. The sweep task deletes the object
// and then the row.
type OrphanedPhoto struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Ref       string    `gorm:"type:text;not null" json:"ref"`
	Reason    string    `gorm:"size:32;not null" json:"reason"`
	ListingID *int64    `gorm:"index" json:"listingId,omitempty"`
	Attempts  int       `gorm:"not null;default:0" json:"attempts"`
	CreatedAt time.Time `json:"createdAt"`
}

func (OrphanedPhoto) TableName() string {
	return "orphaned_photos"
}
