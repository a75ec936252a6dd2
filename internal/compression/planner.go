package compression

import (
	"fmt"
	"log/slog"

	"kleinimg/internal/common"
	"kleinimg/internal/document"
	"kleinimg/internal/metadata"
	"kleinimg/internal/protocol"
	"kleinimg/internal/sniff"
)

// NodeSource is the part of the host the planner reads from.
type NodeSource interface {
	Node(id string) (*document.Node, bool)
	ImageBytes(hash string) ([]byte, error)
}

// Planner turns a start-compress request into one compress-image job per
// distinct image. It runs on the host side, where current node geometry is
// known.
type Planner struct {
	source NodeSource
	logger *slog.Logger
}

// NewPlanner creates a planner reading from source.
func NewPlanner(source NodeSource, logger *slog.Logger) *Planner {
	return &Planner{source: source, logger: logger}
}

// Plan groups the included rows by image and builds the jobs in hash order.
// Images and nodes that cannot be processed are returned as errors so the
// core can release their rows.
func (p *Planner) Plan(req protocol.StartCompress) ([]protocol.CompressImage, []protocol.CompressError) {
	included := make(map[string]bool, len(req.Metadata))
	for _, row := range req.Metadata {
		if row.Included {
			included[row.Key()] = true
		}
	}

	var jobs []protocol.CompressImage
	var failures []protocol.CompressError

	for _, hash := range req.ImageMap.Hashes() {
		var nodeIDs []string
		for _, id := range req.ImageMap[hash].IDs() {
			if included[metadata.RowKey(hash, id)] {
				nodeIDs = append(nodeIDs, id)
			}
		}
		if len(nodeIDs) == 0 {
			continue
		}

		data, ok := req.HashToBytes[hash]
		if !ok {
			var err error
			data, err = p.source.ImageBytes(hash)
			if err != nil {
				p.logger.Error("Failed to load image bytes", "image_hash", hash, "error", err)
				failures = append(failures, protocol.CompressError{ImageHash: hash, Error: err.Error()})
				continue
			}
		}

		// The scan already drops animated images; the metadata may be stale.
		if sniff.IsAnimated(data) {
			p.logger.Info("Skipping animated image", "image_hash", hash)
			failures = append(failures, protocol.CompressError{ImageHash: hash, Error: ErrAnimated.Error()})
			continue
		}

		var nodes []document.NodeDescriptor
		var missing []string
		for _, id := range nodeIDs {
			n, ok := p.source.Node(id)
			if !ok {
				missing = append(missing, id)
				continue
			}
			nodes = append(nodes, document.Describe(n, hash))
		}

		if len(missing) > 0 {
			p.logger.Warn("Nodes no longer in document", "image_hash", hash, "node_ids", missing)
			failures = append(failures, protocol.CompressError{
				ImageHash: hash,
				NodeIDs:   missing,
				Error:     fmt.Errorf("%w: %v", common.ErrUnknownNode, missing).Error(),
			})
		}
		if len(nodes) == 0 {
			continue
		}

		jobs = append(jobs, protocol.CompressImage{
			ImageHash: hash,
			NodeList:  nodes,
			Bytes:     data,
		})
	}

	return jobs, failures
}
