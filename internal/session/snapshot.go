package session

import (
	"math"

	"kleinimg/internal/common"
	"kleinimg/internal/compression"
	"kleinimg/internal/metadata"
)

// Status lines shown under the image list.
const (
	StatusAllCompressed = "All images compressed"
	StatusSelectImages  = "Select images to compress"
	StatusCompressing   = "Compressing..."
	StatusReady         = "Ready to compress!"
)

// Snapshot is a consistent view of the session for display.
type Snapshot struct {
	CycleID        string              `json:"cycle_id"`
	SelectionCount int                 `json:"selection_count"`
	Scanning       bool                `json:"scanning"`
	Compressing    bool                `json:"compressing"`
	HasImages      bool                `json:"has_images"`
	Expected       int                 `json:"expected"`
	Rows           []metadata.Row      `json:"rows"`
	Totals         metadata.Totals     `json:"totals"`
	Options        compression.Options `json:"options"`
	Status         string              `json:"status"`
	Progress       int                 `json:"progress"`
	SavedPercent   float64             `json:"saved_percent"`
	AllChecked     bool                `json:"all_checked"`
}

// ScanDone reports whether the last scan has delivered every row.
func (s Snapshot) ScanDone() bool {
	return !s.Scanning
}

// CompressDone reports whether no compression is in flight.
func (s Snapshot) CompressDone() bool {
	return !s.Compressing
}

func (s *Snapshot) derive() {
	t := s.Totals
	switch {
	case t.NumChecked == 0 && t.NumCompressed == t.Rows:
		s.Status = StatusAllCompressed
	case t.NumChecked == 0:
		s.Status = StatusSelectImages
	case s.Compressing:
		s.Status = StatusCompressing
	default:
		s.Status = StatusReady
	}

	if done := t.NumChecked + t.NumCompressed; done > 0 {
		p := math.Round(float64(t.NumCompressed) / float64(done) * 100)
		s.Progress = int(math.Min(100, math.Max(0, p)))
	}

	s.SavedPercent = common.SavedPercent(t.PreCompressSize, t.PostCompressSize)
	s.AllChecked = t.NumChecked == t.Rows-t.NumCompressed
}
