package compression

import "context"

// Service drives the scan and compress workflow of one open document.
type Service interface {
	OpenDocument(ctx context.Context, path string) error
	CloseDocument()
	DocumentPath() string
	SetSelection(nodeIDs []string) error
	Scan() error
	Toggle(index int) error
	SetAllIncluded(included bool) error
	Compress() error
	GoTo(nodeID string) error
	Save() error
	SaveCopy(path string) error
	View() View
	Options() Options
	SetOptions(opts Options) error
}

// Listener receives workflow events.
type Listener interface {
	ViewChanged(view View)
	NodeFocused(nodeID string)
	CompressFailed(failure CompressFailure)
}
