package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"kleinimg/internal/codec"
	"kleinimg/internal/common"
	"kleinimg/internal/compression"
	"kleinimg/internal/document"
	"kleinimg/internal/metadata"
	"kleinimg/internal/protocol"
	"kleinimg/internal/scan"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []protocol.Message
}

func (r *recordingSender) Send(msg protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
}

func (r *recordingSender) ofType(typ string) []protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []protocol.Message
	for _, m := range r.sent {
		if m.Type() == typ {
			out = append(out, m)
		}
	}
	return out
}

type recordingRecorder struct {
	mu   sync.Mutex
	rows []metadata.Row
}

func (r *recordingRecorder) RecordCompression(cycleID string, row metadata.Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row)
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 3), B: 60, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestSession(t *testing.T) (*Session, *recordingSender, *compression.Orchestrator) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch, err := compression.NewOrchestrator(2, compression.NewCompressor(codec.Standard{}, logger), logger)
	if err != nil {
		t.Fatalf("Failed to create orchestrator: %v", err)
	}
	t.Cleanup(orch.Release)

	sender := &recordingSender{}
	return New(sender, orch, codec.Standard{}, compression.DefaultOptions(), logger), sender, orch
}

func handle(t *testing.T, s *Session, msg protocol.Message) {
	t.Helper()
	if err := s.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle(%s) returned %v", msg.Type(), err)
	}
}

// scanned runs a scan over H1 (n1, n2; large) and H2 (n3; small).
func scanned(t *testing.T) (*Session, *recordingSender, *compression.Orchestrator, map[string][]byte) {
	t.Helper()
	s, sender, orch := newTestSession(t)
	images := map[string][]byte{
		"H1": pngBytes(t, 120, 80),
		"H2": pngBytes(t, 10, 10),
	}

	if err := s.Scan(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	handle(t, s, protocol.SelectedImages{Images: scan.ImageMap{
		"H1": {"n1": true, "n2": true},
		"H2": {"n3": true},
	}})
	handle(t, s, protocol.ImageMetadata{ImageHash: "H2", Bytes: images["H2"]})
	handle(t, s, protocol.ImageMetadata{ImageHash: "H1", Bytes: images["H1"]})
	return s, sender, orch, images
}

func TestScanFlow(t *testing.T) {
	s, sender, _ := newTestSession(t)

	if err := s.Scan(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(sender.ofType(protocol.TypeStartScan)) != 1 {
		t.Fatal("Expected start-scan to be sent")
	}
	if !s.Snapshot().Scanning {
		t.Error("Expected scanning after Scan")
	}

	handle(t, s, protocol.SelectedImages{Images: scan.ImageMap{
		"H1": {"n1": true, "n2": true},
		"H2": {"n3": true},
	}})

	requests := sender.ofType(protocol.TypeGetImageMetadata)
	if len(requests) != 2 {
		t.Fatalf("Expected 2 metadata requests, got %d", len(requests))
	}
	if r := requests[0].(protocol.GetImageMetadata); r.ImageHash != "H1" || r.NumRepeats != 2 {
		t.Errorf("Unexpected first request %+v", r)
	}

	handle(t, s, protocol.ImageMetadata{ImageHash: "H2", Bytes: pngBytes(t, 10, 10)})
	if snap := s.Snapshot(); !snap.Scanning || snap.Expected != 3 {
		t.Errorf("Expected scan in progress expecting 3 rows, got %+v", snap)
	}

	handle(t, s, protocol.ImageMetadata{ImageHash: "H1", Bytes: pngBytes(t, 120, 80)})
	snap := s.Snapshot()
	if snap.Scanning {
		t.Error("Expected scan complete once all rows arrived")
	}
	if len(snap.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(snap.Rows))
	}
	if snap.Rows[0].ImageHash != "H1" || snap.Rows[0].Width != 120 || snap.Rows[0].Height != 80 {
		t.Errorf("Expected largest image first with probed size, got %+v", snap.Rows[0])
	}
	if snap.Status != StatusReady || !snap.AllChecked {
		t.Errorf("Expected ready with all checked, got %q %v", snap.Status, snap.AllChecked)
	}
}

func TestScan_SkippingGIFAndProbeFailure(t *testing.T) {
	s, _, _ := newTestSession(t)

	var reported []protocol.CompressError
	s.OnError(func(e protocol.CompressError) { reported = append(reported, e) })

	s.Scan()
	handle(t, s, protocol.SelectedImages{Images: scan.ImageMap{
		"anim":   {"a": true, "b": true},
		"broken": {"c": true},
		"ok":     {"d": true},
	}})
	handle(t, s, protocol.SkippingGIF{ImageHash: "anim", NumRepeats: 2})
	handle(t, s, protocol.ImageMetadata{ImageHash: "broken", Bytes: []byte("nope")})
	if !s.Snapshot().Scanning {
		t.Error("Expected scan to wait for the remaining image")
	}
	handle(t, s, protocol.ImageMetadata{ImageHash: "ok", Bytes: pngBytes(t, 4, 4)})

	snap := s.Snapshot()
	if snap.Scanning || len(snap.Rows) != 1 {
		t.Errorf("Expected completed scan with 1 row, got scanning=%v rows=%d", snap.Scanning, len(snap.Rows))
	}
	if len(reported) != 1 || reported[0].ImageHash != "broken" {
		t.Errorf("Expected probe failure for broken, got %+v", reported)
	}
}

func TestScan_Empty(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.Scan()
	handle(t, s, protocol.SelectedImages{Images: scan.ImageMap{}})

	snap := s.Snapshot()
	if snap.Scanning {
		t.Error("Expected empty scan to complete immediately")
	}
	if snap.HasImages {
		t.Error("Expected no images")
	}
	if err := s.Compress(); !errors.Is(err, common.ErrNothingSelected) {
		t.Errorf("Expected ErrNothingSelected, got %v", err)
	}
}

func TestSelectionCleared(t *testing.T) {
	s, _, _ := newTestSession(t)
	handle(t, s, protocol.StartSelection{Count: 4})
	if got := s.Snapshot().SelectionCount; got != 4 {
		t.Errorf("Expected selection count 4, got %d", got)
	}

	s.Scan()
	handle(t, s, protocol.SelectedImages{})
	snap := s.Snapshot()
	if snap.Scanning || snap.SelectionCount != 0 || snap.HasImages {
		t.Errorf("Expected cleared idle session, got %+v", snap)
	}
}

func TestStaleMetadataIgnored(t *testing.T) {
	s, _, _, images := scanned(t)
	handle(t, s, protocol.ImageMetadata{ImageHash: "H1", Bytes: images["H1"]})
	handle(t, s, protocol.ImageMetadata{ImageHash: "unknown", Bytes: images["H2"]})

	if got := len(s.Snapshot().Rows); got != 3 {
		t.Errorf("Expected duplicate and unknown metadata to be ignored, got %d rows", got)
	}
}

func TestBusyPolicy(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.Scan()

	if err := s.Scan(); !errors.Is(err, common.ErrBusy) {
		t.Errorf("Expected ErrBusy for scan while scanning, got %v", err)
	}
	if err := s.Compress(); !errors.Is(err, common.ErrBusy) {
		t.Errorf("Expected ErrBusy for compress while scanning, got %v", err)
	}
	if err := s.Toggle(0); !errors.Is(err, common.ErrBusy) {
		t.Errorf("Expected ErrBusy for toggle while scanning, got %v", err)
	}

	s, _, _, _ = scanned(t)
	if err := s.Compress(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := s.Scan(); !errors.Is(err, common.ErrBusy) {
		t.Errorf("Expected ErrBusy for scan while compressing, got %v", err)
	}
	if err := s.SetAllIncluded(false); !errors.Is(err, common.ErrBusy) {
		t.Errorf("Expected ErrBusy for check-all while compressing, got %v", err)
	}
	err := s.Handle(context.Background(), protocol.SelectedImages{Images: scan.ImageMap{"X": {"x": true}}})
	if !errors.Is(err, common.ErrBusy) {
		t.Errorf("Expected pushed scan result to be rejected while compressing, got %v", err)
	}
}

func TestToggleAndStatus(t *testing.T) {
	s, _, _, _ := scanned(t)

	if err := s.SetAllIncluded(false); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := s.Snapshot().Status; got != StatusSelectImages {
		t.Errorf("Expected %q, got %q", StatusSelectImages, got)
	}

	if err := s.Toggle(2); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	snap := s.Snapshot()
	if snap.Totals.NumChecked != 1 || snap.AllChecked {
		t.Errorf("Expected one checked row, got %+v", snap.Totals)
	}
	if err := s.Toggle(3); !errors.Is(err, common.ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestCompressFlow(t *testing.T) {
	s, sender, orch, images := scanned(t)
	recorder := &recordingRecorder{}
	s.SetRecorder(recorder)

	var updates atomic.Int32
	s.OnUpdate(func(Snapshot) { updates.Add(1) })

	if err := s.Compress(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	snap := s.Snapshot()
	if !snap.Compressing || snap.Status != StatusCompressing {
		t.Errorf("Expected compressing status, got %+v", snap.Status)
	}

	starts := sender.ofType(protocol.TypeStartCompress)
	if len(starts) != 1 {
		t.Fatal("Expected start-compress to be sent")
	}
	start := starts[0].(protocol.StartCompress)
	if len(start.Metadata) != 3 || len(start.HashToBytes) != 2 || len(start.ImageMap) != 2 {
		t.Errorf("Unexpected start-compress payload %+v", start)
	}

	// Act as the host: H1 backs n1 and n2, H2 backs n3.
	fill := func(hash string) []document.FillSpec {
		return []document.FillSpec{{ScaleMode: document.ScaleFill, ImageHash: hash}}
	}
	handle(t, s, protocol.CompressImage{
		ImageHash: "H1",
		Bytes:     images["H1"],
		NodeList: []document.NodeDescriptor{
			{ID: "n1", Width: 30, Height: 20, Fills: fill("H1"), TargetHash: "H1"},
			{ID: "n2", Width: 300, Height: 200, Fills: fill("H1"), TargetHash: "H1"},
		},
	})
	handle(t, s, protocol.CompressImage{
		ImageHash: "H2",
		Bytes:     images["H2"],
		NodeList:  []document.NodeDescriptor{{ID: "n3", Width: 10, Height: 10, Fills: fill("H2"), TargetHash: "H2"}},
	})
	orch.Wait()

	setFills := sender.ofType(protocol.TypeSetFill)
	if len(setFills) != 3 {
		t.Fatalf("Expected 3 set-fills, got %d", len(setFills))
	}

	for _, m := range setFills {
		f := m.(protocol.SetFill)
		handle(t, s, protocol.CompressedImage{Key: f.Key, CompressedSize: f.CompressedSize})
	}

	snap = s.Snapshot()
	if snap.Compressing {
		t.Error("Expected compression to finish once no row is included")
	}
	if snap.Totals.NumCompressed != 3 || snap.Status != StatusAllCompressed || snap.Progress != 100 {
		t.Errorf("Expected all compressed at 100%%, got %+v %q %d", snap.Totals, snap.Status, snap.Progress)
	}
	for _, r := range snap.Rows {
		if r.Included {
			t.Errorf("Expected compressed row %s to be excluded", r.Key())
		}
	}
	if len(recorder.rows) != 3 {
		t.Errorf("Expected 3 recorded rows, got %d", len(recorder.rows))
	}
	if updates.Load() == 0 {
		t.Error("Expected update listeners to be called")
	}
}

func TestCompress_SameImageTwiceOnOneNode(t *testing.T) {
	s, sender, orch := newTestSession(t)
	recorder := &recordingRecorder{}
	s.SetRecorder(recorder)

	data := pngBytes(t, 120, 80)
	if err := s.Scan(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	handle(t, s, protocol.SelectedImages{Images: scan.ImageMap{"H1": {"n1": true}}})
	handle(t, s, protocol.ImageMetadata{ImageHash: "H1", Bytes: data})

	if err := s.Compress(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	handle(t, s, protocol.CompressImage{
		ImageHash: "H1",
		Bytes:     data,
		NodeList: []document.NodeDescriptor{{
			ID:     "n1",
			Width:  30,
			Height: 20,
			Fills: []document.FillSpec{
				{ScaleMode: document.ScaleFill, ImageHash: "H1"},
				{ScaleMode: document.ScaleFit, ImageHash: "H1"},
			},
			TargetHash: "H1",
		}},
	})
	orch.Wait()

	setFills := sender.ofType(protocol.TypeSetFill)
	if len(setFills) != 2 {
		t.Fatalf("Expected a set-fill per matching fill, got %d", len(setFills))
	}

	first := setFills[0].(protocol.SetFill)
	handle(t, s, protocol.CompressedImage{Key: first.Key, CompressedSize: first.CompressedSize})
	if !s.Snapshot().Compressing {
		t.Error("Expected compression to continue while a fill is unconfirmed")
	}

	second := setFills[1].(protocol.SetFill)
	handle(t, s, protocol.CompressedImage{Key: second.Key, CompressedSize: second.CompressedSize})
	snap := s.Snapshot()
	if snap.Compressing {
		t.Error("Expected compression to finish after the last fill")
	}
	if snap.Totals.NumCompressed != 1 {
		t.Errorf("Expected 1 compressed row, got %d", snap.Totals.NumCompressed)
	}
	if got := *snap.Rows[0].CompressedSize; got != first.CompressedSize {
		t.Errorf("Expected row to keep the first result %d, got %d", first.CompressedSize, got)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.rows) != 1 {
		t.Errorf("Expected the row to be recorded once, got %d", len(recorder.rows))
	}
}

func TestCompress_HostRejectsFill(t *testing.T) {
	s, sender, orch := newTestSession(t)
	data := pngBytes(t, 40, 40)
	if err := s.Scan(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	handle(t, s, protocol.SelectedImages{Images: scan.ImageMap{"H1": {"n1": true}}})
	handle(t, s, protocol.ImageMetadata{ImageHash: "H1", Bytes: data})

	if err := s.Compress(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	handle(t, s, protocol.CompressImage{
		ImageHash: "H1",
		Bytes:     data,
		NodeList: []document.NodeDescriptor{{
			ID: "n1", Width: 10, Height: 10, TargetHash: "H1",
			Fills: []document.FillSpec{{ScaleMode: document.ScaleFill, ImageHash: "H1"}},
		}},
	})
	orch.Wait()

	fill := sender.ofType(protocol.TypeSetFill)[0].(protocol.SetFill)
	handle(t, s, protocol.CompressError{ImageHash: "H1", NodeIDs: []string{"n1"}, Key: fill.Key, Error: "disk full"})

	snap := s.Snapshot()
	if snap.Compressing {
		t.Error("Expected a rejected fill to finish compression")
	}
	if snap.Rows[0].Error != "disk full" {
		t.Errorf("Expected row error, got %+v", snap.Rows[0])
	}
}

func TestCompress_StaleResultAndFailure(t *testing.T) {
	s, _, _, _ := scanned(t)
	if err := s.Compress(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	handle(t, s, protocol.CompressedImage{Key: "H9n9", CompressedSize: 1})
	if s.Snapshot().Totals.NumCompressed != 0 {
		t.Error("Expected stale result to be ignored")
	}

	handle(t, s, protocol.CompressedImage{Key: "H2n3", CompressedSize: 5})
	handle(t, s, protocol.CompressError{ImageHash: "H1", Error: "decode failed"})

	snap := s.Snapshot()
	if snap.Compressing {
		t.Error("Expected failure to release the compressing flag")
	}
	for _, r := range snap.Rows {
		if r.ImageHash == "H1" && r.Error != "decode failed" {
			t.Errorf("Expected failed row %s to carry the error, got %+v", r.Key(), r)
		}
	}
	if snap.Status != StatusSelectImages {
		t.Errorf("Expected %q, got %q", StatusSelectImages, snap.Status)
	}
}

func TestGoTo(t *testing.T) {
	s, sender, _, _ := scanned(t)

	if err := s.GoTo("n2"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	msgs := sender.ofType(protocol.TypeGoToImageFill)
	if len(msgs) != 1 || msgs[0].(protocol.GoToImageFill).NodeID != "n2" {
		t.Errorf("Expected go-to for n2, got %+v", msgs)
	}

	if err := s.GoTo("nowhere"); !errors.Is(err, common.ErrUnknownNode) {
		t.Errorf("Expected ErrUnknownNode, got %v", err)
	}
}

func TestSetOptions(t *testing.T) {
	s, _, _ := newTestSession(t)

	opts := compression.DefaultOptions()
	opts.Quality = 0
	if err := s.SetOptions(opts); err == nil {
		t.Error("Expected invalid quality to be rejected")
	}

	opts.Quality = 80
	opts.ConvertPNGs = false
	if err := s.SetOptions(opts); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := s.Options(); got != opts {
		t.Errorf("Expected %+v, got %+v", opts, got)
	}
}

func TestWait(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.Scan()

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Handle(context.Background(), protocol.SelectedImages{Images: scan.ImageMap{}})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := s.Wait(ctx, Snapshot.ScanDone)
	if err != nil {
		t.Fatalf("Expected scan to finish, got %v", err)
	}
	if snap.Scanning {
		t.Error("Expected returned snapshot to be idle")
	}

	s.Scan()
	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	if _, err := s.Wait(short, Snapshot.ScanDone); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestSnapshotSavedPercent(t *testing.T) {
	snap := Snapshot{Totals: metadata.Totals{
		Rows:             2,
		NumChecked:       1,
		NumCompressed:    1,
		PreCompressSize:  1_000_000,
		PostCompressSize: 400_000,
	}}
	snap.derive()

	if snap.SavedPercent != 60 {
		t.Errorf("Expected 60%% saved, got %v", snap.SavedPercent)
	}
	if snap.Progress != 50 {
		t.Errorf("Expected 50%% progress, got %d", snap.Progress)
	}
	if snap.Status != StatusReady {
		t.Errorf("Expected %q, got %q", StatusReady, snap.Status)
	}
}
