// Package metadata owns the per-(image, node) rows shown to the user and the
// aggregates derived from them.
package metadata

import (
	"fmt"
	"sync"

	"kleinimg/internal/common"
)

// Row tracks one node's use of one image before and after compression.
type Row struct {
	ImageHash      string `json:"imageHash"`
	NodeID         string `json:"nodeID"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Size           int64  `json:"size"`
	Included       bool   `json:"included"`
	CompressedSize *int64 `json:"compressedSize,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Key identifies the row in set-fill results.
func (r Row) Key() string {
	return RowKey(r.ImageHash, r.NodeID)
}

// Compressed reports whether a compressed size has been recorded.
func (r Row) Compressed() bool {
	return r.CompressedSize != nil
}

// RowKey builds the key for an (image, node) pair.
func RowKey(imageHash, nodeID string) string {
	return imageHash + nodeID
}

// Totals are the aggregates derived from the rows.
type Totals struct {
	Rows              int   `json:"rows"`
	NumChecked        int   `json:"num_checked"`
	NumCompressed     int   `json:"num_compressed"`
	TotalSize         int64 `json:"total_size"`
	TotalSizeSelected int64 `json:"total_size_selected"`
	TotalSizeSaved    int64 `json:"total_size_saved"`
	PreCompressSize   int64 `json:"pre_compress_size"`
	PostCompressSize  int64 `json:"post_compress_size"`
}

// Store holds the rows of the current scan. Every mutation builds a new
// row slice and swaps it in under the lock, so readers holding a previous
// slice never observe a partial update.
type Store struct {
	mu       sync.Mutex
	rows     []Row
	bytes    map[string][]byte
	expected int
	armed    bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{bytes: make(map[string][]byte)}
}

// Reset discards all rows, cached bytes and expectations.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = nil
	s.bytes = make(map[string][]byte)
	s.expected = 0
	s.armed = false
}

// Expect adds n rows to the number the current scan should produce.
func (s *Store) Expect(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expected += n
	s.armed = true
}

// Skip lowers the expected row count, for images that will never produce rows.
func (s *Store) Skip(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expected -= n
}

// Expected returns the number of rows the current scan should produce.
func (s *Store) Expected() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.expected
}

// ScanComplete reports whether every expected row has arrived.
func (s *Store) ScanComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.armed && len(s.rows) >= s.expected
}

// AddRows inserts one included row per node id, keeping rows sorted by
// descending source size. The rows are inserted as a block before the first
// existing row whose size is smaller.
func (s *Store) AddRows(imageHash string, data []byte, width, height int, nodeIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := int64(len(data))
	added := make([]Row, len(nodeIDs))
	for i, id := range nodeIDs {
		added[i] = Row{
			ImageHash: imageHash,
			NodeID:    id,
			Width:     width,
			Height:    height,
			Size:      size,
			Included:  true,
		}
	}

	at := len(s.rows)
	for i, r := range s.rows {
		if r.Size < size {
			at = i
			break
		}
	}

	rows := make([]Row, 0, len(s.rows)+len(added))
	rows = append(rows, s.rows[:at]...)
	rows = append(rows, added...)
	rows = append(rows, s.rows[at:]...)
	s.rows = rows

	bytes := make(map[string][]byte, len(s.bytes)+1)
	for h, b := range s.bytes {
		bytes[h] = b
	}
	bytes[imageHash] = data
	s.bytes = bytes
}

// Toggle flips the inclusion of the row at index. Compressed rows stay
// excluded.
func (s *Store) Toggle(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.rows) {
		return fmt.Errorf("toggle %d of %d: %w", index, len(s.rows), common.ErrIndexOutOfRange)
	}

	rows := s.copyRows()
	r := &rows[index]
	r.Included = !r.Included && !r.Compressed()
	if r.Included {
		r.Error = ""
	}
	s.rows = rows
	return nil
}

// SetAllIncluded includes or excludes every row that is not yet compressed.
func (s *Store) SetAllIncluded(included bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.copyRows()
	for i := range rows {
		rows[i].Included = included && !rows[i].Compressed()
		if rows[i].Included {
			rows[i].Error = ""
		}
	}
	s.rows = rows
}

// RecordCompressed sets the compressed size of the row with key and excludes
// it. It returns false when no row matches, e.g. after a fresh scan, or when
// the row already holds the result of another fill of the same node.
func (s *Store) RecordCompressed(key string, compressedSize int64) (Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rows {
		if r.Key() != key {
			continue
		}
		if r.Compressed() {
			return r, false
		}
		rows := s.copyRows()
		size := compressedSize
		rows[i].CompressedSize = &size
		rows[i].Included = false
		rows[i].Error = ""
		s.rows = rows
		return rows[i], true
	}
	return Row{}, false
}

// RecordFailed excludes the still-included rows of imageHash and notes why.
// When nodeIDs is empty every row of the image is affected. It returns the
// number of rows changed.
func (s *Store) RecordFailed(imageHash string, nodeIDs []string, reason string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var only map[string]bool
	if len(nodeIDs) > 0 {
		only = make(map[string]bool, len(nodeIDs))
		for _, id := range nodeIDs {
			only[id] = true
		}
	}

	rows := s.copyRows()
	n := 0
	for i := range rows {
		if rows[i].ImageHash != imageHash || !rows[i].Included {
			continue
		}
		if only != nil && !only[rows[i].NodeID] {
			continue
		}
		rows[i].Included = false
		rows[i].Error = reason
		n++
	}
	if n > 0 {
		s.rows = rows
	}
	return n
}

// Rows returns a copy of all rows in display order.
func (s *Store) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.copyRows()
}

// Included returns a copy of the rows currently selected for compression.
func (s *Store) Included() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Row
	for _, r := range s.rows {
		if r.Included {
			out = append(out, r)
		}
	}
	return out
}

// Bytes returns the cached source bytes for imageHash.
func (s *Store) Bytes(imageHash string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bytes[imageHash]
	return b, ok
}

// BytesMap returns a shallow copy of the hash to bytes map.
func (s *Store) BytesMap() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]byte, len(s.bytes))
	for h, b := range s.bytes {
		out[h] = b
	}
	return out
}

// Totals recomputes the aggregates from the current rows.
func (s *Store) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Summarize(s.rows)
}

// View returns the rows, their totals and the expected row count taken
// under one lock.
func (s *Store) View() ([]Row, Totals, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.copyRows(), Summarize(s.rows), s.expected
}

// Summarize computes aggregates over rows.
func Summarize(rows []Row) Totals {
	t := Totals{Rows: len(rows)}
	for _, r := range rows {
		t.TotalSize += r.Size
		if r.Included {
			t.NumChecked++
			t.TotalSizeSelected += r.Size
		}
		if r.Compressed() {
			t.NumCompressed++
			t.PreCompressSize += r.Size
			t.PostCompressSize += *r.CompressedSize
			if saved := r.Size - *r.CompressedSize; saved > 0 {
				t.TotalSizeSaved += saved
			}
		}
	}
	return t
}

func (s *Store) copyRows() []Row {
	if s.rows == nil {
		return nil
	}
	rows := make([]Row, len(s.rows))
	copy(rows, s.rows)
	return rows
}
