// Package protocol defines the messages exchanged between the compression
// core and the host that owns the document.
package protocol

import (
	"encoding/json"

	"kleinimg/internal/document"
	"kleinimg/internal/metadata"
	"kleinimg/internal/scan"
)

// Message type names as they appear on the wire.
const (
	TypeStartSelection   = "start-selection"
	TypeSelectedImages   = "selected-images"
	TypeStartScan        = "start-scan"
	TypeGetImageMetadata = "get-image-metadata"
	TypeImageMetadata    = "image-metadata"
	TypeSkippingGIF      = "skipping-gif"
	TypeProbeError       = "probe-error"
	TypeStartCompress    = "start-compress"
	TypeCompressImage    = "compress-image"
	TypeSetFill          = "set-fill"
	TypeCompressedImage  = "compressed-image"
	TypeCompressError    = "compress-error"
	TypeGoToImageFill    = "go-to-image-fill"
)

// Message is implemented by every protocol message.
type Message interface {
	Type() string
}

// StartSelection announces a non-empty selection; a scan follows.
type StartSelection struct {
	Count int `json:"count"`
}

// SelectedImages carries the scan result. A nil map means nothing is selected.
type SelectedImages struct {
	Images scan.ImageMap
}

func (m SelectedImages) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Images)
}

func (m *SelectedImages) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &m.Images)
}

// StartScan asks the host to walk the current selection.
type StartScan struct{}

// GetImageMetadata asks the host for the bytes of one image.
type GetImageMetadata struct {
	ImageHash  string `json:"imageHash"`
	NumRepeats int    `json:"numRepeats"`
}

// ImageMetadata answers GetImageMetadata.
type ImageMetadata struct {
	ImageHash string `json:"imageHash"`
	Bytes     []byte `json:"bytes"`
}

// SkippingGIF answers GetImageMetadata for an animated image that will never
// produce rows.
type SkippingGIF struct {
	ImageHash  string `json:"imageHash,omitempty"`
	NumRepeats int    `json:"numRepeats"`
}

// ProbeError answers GetImageMetadata when the image could not be read.
type ProbeError struct {
	ImageHash  string `json:"imageHash"`
	NumRepeats int    `json:"numRepeats"`
	Error      string `json:"error"`
}

// StartCompress hands the host everything it needs to plan a compress cycle.
type StartCompress struct {
	ImageMap    scan.ImageMap     `json:"imageMap"`
	HashToBytes map[string][]byte `json:"hashToBytesMap"`
	Metadata    []metadata.Row    `json:"metadata"`
}

// CompressImage asks the core to re-encode one image for the listed nodes.
type CompressImage struct {
	ImageHash string                    `json:"imageHash"`
	NodeList  []document.NodeDescriptor `json:"nodeList"`
	Bytes     []byte                    `json:"bytes"`
}

// SetFill asks the host to replace one fill slot with new image bytes.
type SetFill struct {
	NodeID         string `json:"nodeID"`
	FillIndex      int    `json:"fillIndex"`
	Bytes          []byte `json:"bytes"`
	MIMEType       string `json:"mimeType"`
	Key            string `json:"key"`
	CompressedSize int64  `json:"compressedSize"`
}

// CompressedImage confirms a SetFill was applied.
type CompressedImage struct {
	Key            string `json:"key"`
	CompressedSize int64  `json:"compressedSize"`
}

// CompressError reports an image group, or some of its nodes, that could not
// be compressed. An empty NodeIDs covers every node of the image. Key is set
// when the host failed to apply a SetFill.
type CompressError struct {
	ImageHash string   `json:"imageHash"`
	NodeIDs   []string `json:"nodeIDs,omitempty"`
	Key       string   `json:"key,omitempty"`
	Error     string   `json:"error"`
}

// GoToImageFill asks the host to focus a node.
type GoToImageFill struct {
	NodeID string `json:"nodeID"`
}

func (StartSelection) Type() string   { return TypeStartSelection }
func (SelectedImages) Type() string   { return TypeSelectedImages }
func (StartScan) Type() string        { return TypeStartScan }
func (GetImageMetadata) Type() string { return TypeGetImageMetadata }
func (ImageMetadata) Type() string    { return TypeImageMetadata }
func (SkippingGIF) Type() string      { return TypeSkippingGIF }
func (ProbeError) Type() string       { return TypeProbeError }
func (StartCompress) Type() string    { return TypeStartCompress }
func (CompressImage) Type() string    { return TypeCompressImage }
func (SetFill) Type() string          { return TypeSetFill }
func (CompressedImage) Type() string  { return TypeCompressedImage }
func (CompressError) Type() string    { return TypeCompressError }
func (GoToImageFill) Type() string    { return TypeGoToImageFill }
