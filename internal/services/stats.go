package services

import (
	"fmt"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"kleinimg/internal/common"
	"kleinimg/internal/metadata"
	"kleinimg/internal/models"
)

// Totals counts compressed nodes and the bytes they saved.
type Totals struct {
	Images int64
	Saved  int64
}

// StatsService records applied compressions and reports lifetime and
// per-process totals.
type StatsService struct {
	db     *gorm.DB
	logger *slog.Logger

	mu       sync.Mutex
	session  Totals
	onUpdate []func()
}

// NewStatsService creates a new stats service
func NewStatsService(db *gorm.DB, logger *slog.Logger) *StatsService {
	return &StatsService{db: db, logger: logger}
}

// OnUpdate registers fn to be called after each recorded compression.
func (s *StatsService) OnUpdate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = append(s.onUpdate, fn)
}

// RecordCompression stores one applied row. Rows without a compressed size
// are rejected.
func (s *StatsService) RecordCompression(cycleID string, row metadata.Row) error {
	if row.CompressedSize == nil {
		return fmt.Errorf("row %s has no compressed size", row.Key())
	}

	record := models.CompressionRecord{
		RecordID:       common.GenerateUUID(),
		CycleID:        cycleID,
		ImageHash:      row.ImageHash,
		NodeID:         row.NodeID,
		OriginalSize:   row.Size,
		CompressedSize: *row.CompressedSize,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to record compression: %w", err)
	}

	s.mu.Lock()
	s.session.Images++
	s.session.Saved += record.Saved()
	listeners := append([]func(){}, s.onUpdate...)
	s.mu.Unlock()

	s.logger.Debug("Compression recorded",
		"cycle_id", cycleID,
		"image_hash", row.ImageHash,
		"node_id", row.NodeID,
		"saved", common.FormatSize(record.Saved()))

	for _, fn := range listeners {
		fn()
	}
	return nil
}

// Lifetime sums every record in the database.
func (s *StatsService) Lifetime() (Totals, error) {
	var t Totals
	err := s.db.Model(&models.CompressionRecord{}).
		Select("COUNT(*) AS images, COALESCE(SUM(CASE WHEN original_size > compressed_size THEN original_size - compressed_size ELSE 0 END), 0) AS saved").
		Scan(&t).Error
	if err != nil {
		return Totals{}, fmt.Errorf("failed to sum compression history: %w", err)
	}
	return t, nil
}

// Session returns the totals recorded by this process.
func (s *StatsService) Session() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// History returns the most recent records, newest first.
func (s *StatsService) History(limit int) ([]models.CompressionRecord, error) {
	var records []models.CompressionRecord
	err := s.db.Order("id DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load compression history: %w", err)
	}
	return records, nil
}

// Cycle returns the records of one compression cycle in insertion order.
func (s *StatsService) Cycle(cycleID string) ([]models.CompressionRecord, error) {
	var records []models.CompressionRecord
	err := s.db.Where("cycle_id = ?", cycleID).Order("id").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load cycle %s: %w", cycleID, err)
	}
	return records, nil
}
