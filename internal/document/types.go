package document

// ScaleMode is the policy used to map image pixels onto a fill region.
type ScaleMode string

const (
	ScaleFill ScaleMode = "FILL"
	ScaleFit  ScaleMode = "FIT"
	ScaleCrop ScaleMode = "CROP"
	ScaleTile ScaleMode = "TILE"
)

// PaintType identifies the kind of paint in a fill slot.
type PaintType string

const (
	PaintSolid PaintType = "SOLID"
	PaintImage PaintType = "IMAGE"
)

// Paint is a single fill applied to a node.
type Paint struct {
	Type      PaintType `json:"type"`
	ScaleMode ScaleMode `json:"scaleMode,omitempty"`
	ImageHash string    `json:"imageHash,omitempty"`
	Color     string    `json:"color,omitempty"`
}

// Rect is an axis-aligned box in document coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Node is a graphic node. Any node may have children.
type Node struct {
	ID           string  `json:"id"`
	Name         string  `json:"name,omitempty"`
	Type         string  `json:"type,omitempty"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	RenderBounds *Rect   `json:"renderBounds,omitempty"`
	Fills        []Paint `json:"fills,omitempty"`
	Children     []*Node `json:"children,omitempty"`
}

// RenderedSize returns the node's rendered bounding box size, falling back
// to the stored layout size when no render bounds are known.
func (n *Node) RenderedSize() (width, height float64) {
	if n.RenderBounds != nil {
		return n.RenderBounds.Width, n.RenderBounds.Height
	}
	return n.Width, n.Height
}

// FirstImageFill returns the first IMAGE paint on the node.
func (n *Node) FirstImageFill() (Paint, bool) {
	for _, fill := range n.Fills {
		if fill.Type == PaintImage {
			return fill, true
		}
	}
	return Paint{}, false
}

// FillSpec is the part of a fill the fit calculator needs.
type FillSpec struct {
	ScaleMode ScaleMode `json:"scaleMode"`
	ImageHash string    `json:"imageHash"`
}

// NodeDescriptor is a geometry snapshot taken at compress time.
// Width and Height are the rendered bounding box.
type NodeDescriptor struct {
	ID         string     `json:"id"`
	Fills      []FillSpec `json:"fills"`
	Width      float64    `json:"width"`
	Height     float64    `json:"height"`
	TargetHash string     `json:"targetHash"`
}

// Describe builds a NodeDescriptor for n targeting hash.
func Describe(n *Node, hash string) NodeDescriptor {
	w, h := n.RenderedSize()
	fills := make([]FillSpec, len(n.Fills))
	for i, fill := range n.Fills {
		fills[i] = FillSpec{ScaleMode: fill.ScaleMode, ImageHash: fill.ImageHash}
	}
	return NodeDescriptor{
		ID:         n.ID,
		Fills:      fills,
		Width:      w,
		Height:     h,
		TargetHash: hash,
	}
}
