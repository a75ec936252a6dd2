// Package host implements the document side of the protocol on top of a JSON
// design document and a directory of image blobs.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"kleinimg/internal/common"
	"kleinimg/internal/compression"
	"kleinimg/internal/document"
	"kleinimg/internal/protocol"
	"kleinimg/internal/scan"
	"kleinimg/internal/sniff"
)

// Host answers core requests against a document.
type Host struct {
	images  *ImageStore
	planner *compression.Planner
	logger  *slog.Logger

	mu       sync.Mutex
	doc      *document.Document
	index    map[string]*document.Node
	path     string
	sender   protocol.Sender
	focused  string
	onFocus  []func(nodeID string)
	diskHash string // document file as last read or written
}

// New creates a host over doc. path is where Save writes; it may be empty.
func New(doc *document.Document, path string, images *ImageStore, logger *slog.Logger) *Host {
	h := &Host{
		images: images,
		logger: logger,
		doc:    doc,
		index:  doc.Index(),
		path:   path,
	}
	h.planner = compression.NewPlanner(h, logger)
	return h
}

// Open loads the document at path and the image store at imageDir.
func Open(path, imageDir string, logger *slog.Logger) (*Host, error) {
	doc, err := document.Load(path)
	if err != nil {
		return nil, err
	}
	images, err := NewImageStore(imageDir)
	if err != nil {
		return nil, err
	}
	h := New(doc, path, images, logger)
	if data, err := os.ReadFile(path); err == nil {
		h.diskHash = Hash(data)
	}
	return h, nil
}

// Connect sets the sender used to reach the core.
func (h *Host) Connect(sender protocol.Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sender = sender
}

// OnFocus registers fn to be called when the core navigates to a node.
func (h *Host) OnFocus(fn func(nodeID string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onFocus = append(h.onFocus, fn)
}

// Focused returns the node last navigated to.
func (h *Host) Focused() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.focused
}

// Images returns the image store.
func (h *Host) Images() *ImageStore {
	return h.images
}

// SetSelection replaces the selection and tells the core about it.
func (h *Host) SetSelection(ids []string) {
	h.mu.Lock()
	h.doc.Selection = append([]string(nil), ids...)
	sender := h.sender
	h.mu.Unlock()

	h.announceSelection(sender, len(ids))
}

// Selection returns the selected node ids.
func (h *Host) Selection() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.doc.Selection...)
}

func (h *Host) announceSelection(sender protocol.Sender, count int) {
	if sender == nil {
		return
	}
	if count > 0 {
		sender.Send(protocol.StartSelection{Count: count})
	} else {
		sender.Send(protocol.SelectedImages{})
	}
}

// Node returns the node with id.
func (h *Host) Node(id string) (*document.Node, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.index[id]
	return n, ok
}

// ImageBytes returns the stored bytes of an image.
func (h *Host) ImageBytes(hash string) ([]byte, error) {
	return h.images.Get(hash)
}

// Handle processes one message from the core.
func (h *Host) Handle(ctx context.Context, msg protocol.Message) error {
	h.mu.Lock()
	sender := h.sender
	h.mu.Unlock()
	if sender == nil {
		return fmt.Errorf("host not connected: %w", common.ErrNoDocument)
	}

	switch m := msg.(type) {
	case protocol.StartScan:
		sender.Send(protocol.SelectedImages{Images: h.scan()})
	case protocol.GetImageMetadata:
		sender.Send(h.imageMetadata(m))
	case protocol.StartCompress:
		jobs, failures := h.planner.Plan(m)
		for _, f := range failures {
			sender.Send(f)
		}
		for _, job := range jobs {
			sender.Send(job)
		}
		h.logger.Info("Compression planned", "images", len(jobs), "failures", len(failures))
	case protocol.SetFill:
		reply, err := h.setFill(m)
		if err != nil {
			h.logger.Warn("Failed to apply fill", "node_id", m.NodeID, "fill_index", m.FillIndex, "error", err)
			sender.Send(protocol.CompressError{
				ImageHash: strings.TrimSuffix(m.Key, m.NodeID),
				NodeIDs:   []string{m.NodeID},
				Key:       m.Key,
				Error:     err.Error(),
			})
			return nil
		}
		sender.Send(reply)
	case protocol.GoToImageFill:
		return h.goTo(m.NodeID)
	default:
		return fmt.Errorf("unexpected message %q from core", msg.Type())
	}
	return nil
}

func (h *Host) scan() scan.ImageMap {
	h.mu.Lock()
	defer h.mu.Unlock()

	images := scan.Walk(h.doc.SelectedNodes())
	h.logger.Debug("Selection scanned", "selected", len(h.doc.Selection), "images", len(images))
	return images
}

func (h *Host) imageMetadata(m protocol.GetImageMetadata) protocol.Message {
	data, err := h.images.Get(m.ImageHash)
	if err != nil {
		h.logger.Warn("Failed to read image", "image_hash", m.ImageHash, "error", err)
		return protocol.ProbeError{ImageHash: m.ImageHash, NumRepeats: m.NumRepeats, Error: err.Error()}
	}
	if sniff.IsAnimated(data) {
		return protocol.SkippingGIF{ImageHash: m.ImageHash, NumRepeats: m.NumRepeats}
	}
	return protocol.ImageMetadata{ImageHash: m.ImageHash, Bytes: data}
}

func (h *Host) setFill(m protocol.SetFill) (protocol.CompressedImage, error) {
	hash, err := h.images.Put(m.Bytes)
	if err != nil {
		return protocol.CompressedImage{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	n, ok := h.index[m.NodeID]
	if !ok {
		return protocol.CompressedImage{}, fmt.Errorf("set fill on %q: %w", m.NodeID, common.ErrUnknownNode)
	}
	if m.FillIndex < 0 || m.FillIndex >= len(n.Fills) {
		return protocol.CompressedImage{}, fmt.Errorf("set fill %d on %q: %w", m.FillIndex, m.NodeID, common.ErrIndexOutOfRange)
	}

	n.Fills[m.FillIndex].Type = document.PaintImage
	n.Fills[m.FillIndex].ImageHash = hash

	h.logger.Debug("Fill replaced",
		"node_id", m.NodeID,
		"fill_index", m.FillIndex,
		"image_hash", hash,
		"compressed_size", m.CompressedSize)

	return protocol.CompressedImage{Key: m.Key, CompressedSize: m.CompressedSize}, nil
}

func (h *Host) goTo(nodeID string) error {
	h.mu.Lock()
	if _, ok := h.index[nodeID]; !ok {
		h.mu.Unlock()
		return fmt.Errorf("go to %q: %w", nodeID, common.ErrUnknownNode)
	}
	h.focused = nodeID
	listeners := append([]func(string){}, h.onFocus...)
	h.mu.Unlock()

	h.logger.Info("Focused node", "node_id", nodeID)
	for _, fn := range listeners {
		fn(nodeID)
	}
	return nil
}
