// Package document models the design document a host exposes: a forest of
// nodes carrying paints, plus the current selection.
package document

import (
	"encoding/json"
	"fmt"
	"os"
)

// Document is the on-disk JSON form of a design document.
type Document struct {
	Nodes     []*Node  `json:"nodes"`
	Selection []string `json:"selection,omitempty"`
}

// Load reads a document from a JSON file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}

	return &doc, nil
}

// Marshal encodes the document as indented JSON.
func (d *Document) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

// Save writes the document as indented JSON.
func (d *Document) Save(path string) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks that every node has a unique, non-empty id.
func (d *Document) Validate() error {
	seen := make(map[string]bool)
	stack := append([]*Node(nil), d.Nodes...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		if n.ID == "" {
			return fmt.Errorf("node %q has no id", n.Name)
		}
		if seen[n.ID] {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
		stack = append(stack, n.Children...)
	}
	return nil
}

// Index maps node ids to nodes across the whole document.
func (d *Document) Index() map[string]*Node {
	index := make(map[string]*Node)
	stack := append([]*Node(nil), d.Nodes...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		index[n.ID] = n
		stack = append(stack, n.Children...)
	}
	return index
}

// SelectedNodes resolves the selection ids to nodes, skipping unknown ids.
func (d *Document) SelectedNodes() []*Node {
	index := d.Index()
	nodes := make([]*Node, 0, len(d.Selection))
	for _, id := range d.Selection {
		if n, ok := index[id]; ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}
