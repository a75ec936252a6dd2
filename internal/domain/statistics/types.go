package statistics

import "time"

// AppStats represents application usage statistics
type AppStats struct {
	TotalImagesCompressed   int64  `json:"total_images_compressed"`
	TotalDataSaved          int64  `json:"total_data_saved"`
	TotalDataSavedLabel     string `json:"total_data_saved_label"`
	SessionImagesCompressed int64  `json:"session_images_compressed"`
	SessionDataSaved        int64  `json:"session_data_saved"`
	SessionDataSavedLabel   string `json:"session_data_saved_label"`
}

// Record is one applied compression.
type Record struct {
	CycleID        string    `json:"cycle_id"`
	ImageHash      string    `json:"image_hash"`
	NodeID         string    `json:"node_id"`
	OriginalSize   int64     `json:"original_size"`
	CompressedSize int64     `json:"compressed_size"`
	CreatedAt      time.Time `json:"created_at"`
}

// Service defines the interface for statistics operations
type Service interface {
	GetStats() (*AppStats, error)
	History(limit int) ([]Record, error)
	OnUpdate(fn func())
}
