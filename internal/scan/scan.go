// Package scan discovers image fills in a node tree and groups the nodes
// that share each image.
package scan

import (
	"sort"

	"kleinimg/internal/document"
)

// NodeSet is a set of node ids. It marshals as {"nodeID": true, ...}.
type NodeSet map[string]bool

// IDs returns the node ids in sorted order.
func (s NodeSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ImageMap maps an image hash to every node using it as a fill.
type ImageMap map[string]NodeSet

// ImageRecord is one distinct image and the nodes it backs.
type ImageRecord struct {
	ImageHash string  `json:"imageHash"`
	NodeIDs   NodeSet `json:"nodeIDs"`
}

// Hashes returns the image hashes in sorted order.
func (m ImageMap) Hashes() []string {
	hashes := make([]string, 0, len(m))
	for h := range m {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	return hashes
}

// Records returns the map as records ordered by hash.
func (m ImageMap) Records() []ImageRecord {
	records := make([]ImageRecord, 0, len(m))
	for _, h := range m.Hashes() {
		records = append(records, ImageRecord{ImageHash: h, NodeIDs: m[h]})
	}
	return records
}

// RowCount is the number of (image, node) pairs in the map.
func (m ImageMap) RowCount() int {
	n := 0
	for _, nodes := range m {
		n += len(nodes)
	}
	return n
}

// Clone returns a deep copy.
func (m ImageMap) Clone() ImageMap {
	if m == nil {
		return nil
	}
	out := make(ImageMap, len(m))
	for h, nodes := range m {
		set := make(NodeSet, len(nodes))
		for id := range nodes {
			set[id] = true
		}
		out[h] = set
	}
	return out
}

// Walk visits roots and all their descendants and groups every node with an
// image fill under the hash of its first image fill. A nil or empty selection
// yields an empty map.
func Walk(roots []*document.Node) ImageMap {
	result := make(ImageMap)

	stack := make([]*document.Node, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}

		if fill, ok := n.FirstImageFill(); ok && fill.ImageHash != "" {
			nodes, exists := result[fill.ImageHash]
			if !exists {
				nodes = make(NodeSet)
				result[fill.ImageHash] = nodes
			}
			nodes[n.ID] = true
		}

		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}

	return result
}
