package session

import (
	"context"
	"fmt"

	"kleinimg/internal/common"
	"kleinimg/internal/compression"
	"kleinimg/internal/protocol"
)

// Scan discards the current rows and asks the host for a fresh scan.
func (s *Session) Scan() error {
	s.mu.Lock()
	if s.compressing || s.scanning {
		s.mu.Unlock()
		return common.ErrBusy
	}

	s.store.Reset()
	s.images = nil
	s.probed = make(map[string]bool)
	s.cycleID = common.GenerateUUID()
	s.scanning = true
	cycleID := s.cycleID
	s.mu.Unlock()

	s.logger.Info("Starting scan", "cycle_id", cycleID)
	s.sender.Send(protocol.StartScan{})
	s.notify()
	return nil
}

// Toggle flips the inclusion of the row at index.
func (s *Session) Toggle(index int) error {
	if err := s.idle(); err != nil {
		return err
	}
	if err := s.store.Toggle(index); err != nil {
		return err
	}
	s.notify()
	return nil
}

// SetAllIncluded checks or unchecks every row that is not yet compressed.
func (s *Session) SetAllIncluded(included bool) error {
	if err := s.idle(); err != nil {
		return err
	}
	s.store.SetAllIncluded(included)
	s.notify()
	return nil
}

// Compress asks the host to plan compression of the included rows.
func (s *Session) Compress() error {
	s.mu.Lock()
	if s.compressing || s.scanning {
		s.mu.Unlock()
		return common.ErrBusy
	}
	if len(s.images) == 0 || s.store.Totals().NumChecked == 0 {
		s.mu.Unlock()
		return common.ErrNothingSelected
	}

	s.compressing = true
	req := protocol.StartCompress{
		ImageMap:    s.images.Clone(),
		HashToBytes: s.store.BytesMap(),
		Metadata:    s.store.Rows(),
	}
	cycleID, opts := s.cycleID, s.options
	s.mu.Unlock()

	s.logger.Info("Starting compression",
		"cycle_id", cycleID,
		"quality", opts.Quality,
		"quality_label", common.QualityLabel(opts.Quality),
		"resize_to_fit", opts.ResizeToFit,
		"convert_pngs", opts.ConvertPNGs)
	s.sender.Send(req)
	s.notify()
	return nil
}

// GoTo asks the host to focus the node of a row.
func (s *Session) GoTo(nodeID string) error {
	for _, r := range s.store.Rows() {
		if r.NodeID == nodeID {
			s.sender.Send(protocol.GoToImageFill{NodeID: nodeID})
			return nil
		}
	}
	return fmt.Errorf("go to %q: %w", nodeID, common.ErrUnknownNode)
}

// SetOptions replaces the compression options used for future images.
func (s *Session) SetOptions(opts compression.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.options = opts
	s.mu.Unlock()
	s.notify()
	return nil
}

// Options returns the current compression options.
func (s *Session) Options() compression.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Wait blocks until done returns true for the current snapshot or ctx ends.
func (s *Session) Wait(ctx context.Context, done func(Snapshot) bool) (Snapshot, error) {
	for {
		s.mu.Lock()
		snap := s.snapshotLocked()
		changed := s.changed
		s.mu.Unlock()

		if done(snap) {
			return snap, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

func (s *Session) idle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compressing || s.scanning {
		return common.ErrBusy
	}
	return nil
}

func (s *Session) snapshotLocked() Snapshot {
	rows, totals, expected := s.store.View()
	snap := Snapshot{
		CycleID:        s.cycleID,
		SelectionCount: s.selectionCount,
		Scanning:       s.scanning,
		Compressing:    s.compressing,
		HasImages:      len(s.images) > 0,
		Expected:       expected,
		Rows:           rows,
		Totals:         totals,
		Options:        s.options,
	}
	snap.derive()
	return snap
}
