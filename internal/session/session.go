// Package session is the compression core: it consumes host messages, keeps
// the metadata rows, and turns user intents into host requests.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"kleinimg/internal/codec"
	"kleinimg/internal/common"
	"kleinimg/internal/compression"
	"kleinimg/internal/metadata"
	"kleinimg/internal/protocol"
	"kleinimg/internal/scan"
)

// Recorder persists rows whose compressed fill was applied by the host.
type Recorder interface {
	RecordCompression(cycleID string, row metadata.Row) error
}

// Session holds the state of one scan/compress workflow. All methods are safe
// for concurrent use.
type Session struct {
	sender       protocol.Sender
	orchestrator *compression.Orchestrator
	codec        codec.Codec
	store        *metadata.Store
	logger       *slog.Logger

	mu             sync.Mutex
	images         scan.ImageMap
	probed         map[string]bool
	selectionCount int
	scanning       bool
	compressing    bool
	inflight       int
	pendingFills   int
	options        compression.Options
	cycleID        string
	recorder       Recorder
	onUpdate       []func(Snapshot)
	onError        []func(protocol.CompressError)
	changed        chan struct{}
}

// New creates a session sending host requests through sender.
func New(sender protocol.Sender, orchestrator *compression.Orchestrator, c codec.Codec, options compression.Options, logger *slog.Logger) *Session {
	return &Session{
		sender:       sender,
		orchestrator: orchestrator,
		codec:        c,
		store:        metadata.NewStore(),
		logger:       logger,
		probed:       make(map[string]bool),
		options:      options,
		changed:      make(chan struct{}),
	}
}

// SetRecorder installs the recorder for applied results.
func (s *Session) SetRecorder(r Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = r
}

// OnUpdate registers fn to receive a snapshot after every state change.
func (s *Session) OnUpdate(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = append(s.onUpdate, fn)
}

// OnError registers fn to receive per-image failures.
func (s *Session) OnError(fn func(protocol.CompressError)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = append(s.onError, fn)
}

// Handle processes one message from the host.
func (s *Session) Handle(ctx context.Context, msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.StartSelection:
		s.mu.Lock()
		s.selectionCount = m.Count
		s.mu.Unlock()
	case protocol.SelectedImages:
		if err := s.selectedImages(m.Images); err != nil {
			return err
		}
	case protocol.ImageMetadata:
		s.imageMetadata(m)
	case protocol.SkippingGIF:
		s.logger.Info("Skipping animated image", "image_hash", m.ImageHash, "num_repeats", m.NumRepeats)
		s.store.Skip(m.NumRepeats)
		s.checkScanComplete()
	case protocol.ProbeError:
		s.logger.Warn("Host could not read image", "image_hash", m.ImageHash, "error", m.Error)
		s.store.Skip(m.NumRepeats)
		s.checkScanComplete()
		s.reportError(protocol.CompressError{ImageHash: m.ImageHash, Error: m.Error})
	case protocol.CompressImage:
		s.compressImage(ctx, m)
	case protocol.CompressedImage:
		s.compressedImage(m)
	case protocol.CompressError:
		if m.Key != "" {
			s.mu.Lock()
			if s.pendingFills > 0 {
				s.pendingFills--
			}
			s.mu.Unlock()
		}
		n := s.store.RecordFailed(m.ImageHash, m.NodeIDs, m.Error)
		s.logger.Warn("Image compression failed", "image_hash", m.ImageHash, "rows", n, "error", m.Error)
		s.reportError(m)
		s.checkCompressComplete()
	default:
		return fmt.Errorf("unexpected message %q from host", msg.Type())
	}

	s.notify()
	return nil
}

func (s *Session) selectedImages(images scan.ImageMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if images == nil {
		s.images = nil
		s.selectionCount = 0
		if s.scanning {
			s.scanning = false
			s.store.Expect(0)
			s.logger.Info("Selection cleared during scan", "cycle_id", s.cycleID)
		}
		return nil
	}

	if s.compressing {
		s.logger.Warn("Ignoring scan result while compressing", "images", len(images))
		return common.ErrBusy
	}

	if !s.scanning {
		s.store.Reset()
		s.probed = make(map[string]bool)
		s.cycleID = common.GenerateUUID()
		s.scanning = true
	}

	s.images = images.Clone()
	hashes := s.images.Hashes()
	s.logger.Info("Scan result received",
		"cycle_id", s.cycleID,
		"images", len(hashes),
		"rows", s.images.RowCount())

	s.store.Expect(0)
	for _, hash := range hashes {
		n := len(s.images[hash])
		s.store.Expect(n)
		s.sender.Send(protocol.GetImageMetadata{ImageHash: hash, NumRepeats: n})
	}

	s.checkScanCompleteLocked()
	return nil
}

func (s *Session) imageMetadata(m protocol.ImageMetadata) {
	s.mu.Lock()
	nodes, ok := s.images[m.ImageHash]
	if !ok || s.probed[m.ImageHash] {
		s.mu.Unlock()
		s.logger.Debug("Ignoring stale image metadata", "image_hash", m.ImageHash)
		return
	}
	s.probed[m.ImageHash] = true
	s.mu.Unlock()

	cfg, err := s.codec.Probe(m.Bytes)
	if err != nil {
		decodeErr := &common.DecodeError{ImageHash: m.ImageHash, Err: err}
		s.logger.Warn("Failed to read image dimensions", "image_hash", m.ImageHash, "error", decodeErr)
		s.store.Skip(len(nodes))
		s.checkScanComplete()
		s.reportError(protocol.CompressError{ImageHash: m.ImageHash, Error: decodeErr.Error()})
		return
	}

	s.store.AddRows(m.ImageHash, m.Bytes, cfg.Width, cfg.Height, nodes.IDs())
	s.logger.Debug("Image metadata added",
		"image_hash", m.ImageHash,
		"width", cfg.Width,
		"height", cfg.Height,
		"size", len(m.Bytes),
		"nodes", len(nodes))
	s.checkScanComplete()
}

func (s *Session) compressImage(ctx context.Context, m protocol.CompressImage) {
	s.mu.Lock()
	opts := s.options
	s.inflight++
	s.mu.Unlock()

	// Submit may block until a worker is free; workers report back through
	// the session, so no lock is held here.
	if err := s.orchestrator.Submit(ctx, m, opts, sink{s: s, ctx: ctx}); err != nil {
		s.logger.Error("Failed to queue image", "image_hash", m.ImageHash, "error", err)
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
		s.store.RecordFailed(m.ImageHash, nil, err.Error())
		s.reportError(protocol.CompressError{ImageHash: m.ImageHash, Error: err.Error()})
		s.checkCompressComplete()
	}
}

func (s *Session) compressedImage(m protocol.CompressedImage) {
	s.mu.Lock()
	if s.pendingFills > 0 {
		s.pendingFills--
	}
	s.mu.Unlock()

	row, ok := s.store.RecordCompressed(m.Key, m.CompressedSize)
	if !ok {
		s.logger.Debug("Ignoring result for unknown or already compressed row", "key", m.Key)
		s.checkCompressComplete()
		return
	}

	s.mu.Lock()
	recorder, cycleID := s.recorder, s.cycleID
	s.mu.Unlock()

	s.logger.Info("Image fill replaced",
		"image_hash", row.ImageHash,
		"node_id", row.NodeID,
		"original_size", row.Size,
		"compressed_size", m.CompressedSize)

	if recorder != nil {
		if err := recorder.RecordCompression(cycleID, row); err != nil {
			s.logger.Warn("Failed to record compression", "key", m.Key, "error", err)
		}
	}
	s.checkCompressComplete()
}

func (s *Session) checkScanComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkScanCompleteLocked()
}

func (s *Session) checkScanCompleteLocked() {
	if s.scanning && s.store.ScanComplete() {
		s.scanning = false
		t := s.store.Totals()
		s.logger.Info("Scan complete",
			"cycle_id", s.cycleID,
			"rows", t.Rows,
			"total_size", common.FormatSize(t.TotalSize))
	}
}

func (s *Session) checkCompressComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.compressing || s.inflight > 0 || s.pendingFills > 0 {
		return
	}
	t := s.store.Totals()
	if t.NumChecked > 0 {
		return
	}
	s.compressing = false
	s.logger.Info("Compression complete",
		"cycle_id", s.cycleID,
		"compressed", t.NumCompressed,
		"saved", common.FormatSize(t.TotalSizeSaved),
		"saved_percent", common.SavedPercent(t.PreCompressSize, t.PostCompressSize))
}

func (s *Session) reportError(m protocol.CompressError) {
	s.mu.Lock()
	listeners := append([]func(protocol.CompressError){}, s.onError...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(m)
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	listeners := append([]func(Snapshot){}, s.onUpdate...)
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// sink delivers orchestrator output: fills go to the host, failures are
// handled as if the host had reported them.
type sink struct {
	s   *Session
	ctx context.Context
}

func (k sink) SetFill(m protocol.SetFill) {
	k.s.mu.Lock()
	k.s.pendingFills++
	k.s.mu.Unlock()
	k.s.sender.Send(m)
}

func (k sink) CompressError(m protocol.CompressError) {
	if err := k.s.Handle(k.ctx, m); err != nil {
		k.s.logger.Error("Failed to handle compression error", "image_hash", m.ImageHash, "error", err)
	}
}

func (k sink) Done(imageHash string) {
	k.s.mu.Lock()
	k.s.inflight--
	k.s.mu.Unlock()

	k.s.checkCompressComplete()
	k.s.notify()
}
