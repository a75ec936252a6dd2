package models

import "time"

// CompressionRecord is one node whose compressed fill was applied.
type CompressionRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RecordID       string    `gorm:"uniqueIndex;size:36" json:"record_id"`
	CycleID        string    `gorm:"index;size:36" json:"cycle_id"`
	ImageHash      string    `gorm:"index" json:"image_hash"`
	NodeID         string    `json:"node_id"`
	OriginalSize   int64     `json:"original_size"`
	CompressedSize int64     `json:"compressed_size"`
	CreatedAt      time.Time `json:"created_at"`
}

// Saved returns the bytes removed, never negative.
func (r CompressionRecord) Saved() int64 {
	return max(0, r.OriginalSize-r.CompressedSize)
}
