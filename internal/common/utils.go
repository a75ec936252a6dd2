package common

import (
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// GenerateUUID generates a new UUID string
func GenerateUUID() string {
	return uuid.New().String()
}

// FormatSize renders a byte count for display, e.g. "1.2 MB".
func FormatSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.Bytes(uint64(size))
}

// QualityLabel describes a JPEG quality setting.
func QualityLabel(quality int) string {
	switch {
	case quality <= 0:
		return "Invalid"
	case quality < 30:
		return "Low"
	case quality < 60:
		return "Medium"
	case quality < 85:
		return "High"
	case quality <= 100:
		return "Very high"
	default:
		return "Invalid"
	}
}

// SavedPercent returns the share of pre bytes removed to reach post, clamped at 0.
func SavedPercent(pre, post int64) float64 {
	if pre <= 0 {
		return 0
	}
	p := (1 - float64(post)/float64(pre)) * 100
	if p < 0 {
		return 0
	}
	return p
}
