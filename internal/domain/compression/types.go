package compression

// Options are the user-facing compression settings.
type Options struct {
	Quality      int    `json:"quality"`
	QualityLabel string `json:"quality_label"`
	ResizeToFit  bool   `json:"resize_to_fit"`
	ConvertPNGs  bool   `json:"convert_pngs"`
}

// RowView is one image fill row as shown in the list.
type RowView struct {
	Index          int    `json:"index"`
	ImageHash      string `json:"image_hash"`
	NodeID         string `json:"node_id"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Size           string `json:"size"`
	CompressedSize string `json:"compressed_size,omitempty"`
	Included       bool   `json:"included"`
	Compressed     bool   `json:"compressed"`
	Error          string `json:"error,omitempty"`
}

// View is the display state of the open document.
type View struct {
	DocumentPath      string    `json:"document_path"`
	CycleID           string    `json:"cycle_id"`
	SelectionCount    int       `json:"selection_count"`
	Scanning          bool      `json:"scanning"`
	Compressing       bool      `json:"compressing"`
	Status            string    `json:"status"`
	Progress          int       `json:"progress"`
	SavedPercent      float64   `json:"saved_percent"`
	AllChecked        bool      `json:"all_checked"`
	NumChecked        int       `json:"num_checked"`
	NumCompressed     int       `json:"num_compressed"`
	TotalSize         string    `json:"total_size"`
	TotalSizeSelected string    `json:"total_size_selected"`
	TotalSizeSaved    string    `json:"total_size_saved"`
	Rows              []RowView `json:"rows"`
	Options           Options   `json:"options"`
}

// CompressFailure reports one image that could not be compressed.
type CompressFailure struct {
	ImageHash string   `json:"image_hash"`
	NodeIDs   []string `json:"node_ids,omitempty"`
	Error     string   `json:"error"`
}
