package models

import "time"

// StorageEntry is one persisted client-state value. Keys are already
// namespaced by profile.
type StorageEntry struct {
	Key       string    `gorm:"column:key;primaryKey;size:512"`
	Value     string    `gorm:"column:value;type:text;not null"`
	Origin    string    `gorm:"column:origin;size:64"`
	Deleted   bool      `gorm:"column:deleted;not null;default:false"`
	UpdatedAt time.Time `gorm:"column:updated_at;index:storage_entries_updated_at_idx"`
}

func (StorageEntry) TableName() string {
	return "storage_entries"
}
