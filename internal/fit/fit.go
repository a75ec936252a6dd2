// Package fit computes the pixel size an image fill should be re-encoded at
// so that it still covers (FILL) or fits inside (FIT) the node it is painted
// on, without ever upscaling.
package fit

import (
	"math"

	"kleinimg/internal/document"
)

// Size is a pixel size.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TargetSize returns the size the image should be rendered at for a node of
// nodeWidth x nodeHeight. The native image size is returned when resizing is
// disabled, the scale mode is CROP or TILE, or the image is already no larger
// than the node in the dimension that binds.
//
// Callers that oversample multiply the node size before calling.
func TargetSize(nodeWidth, nodeHeight float64, imageWidth, imageHeight int, mode document.ScaleMode, resize bool) Size {
	native := Size{Width: imageWidth, Height: imageHeight}
	if !resize || nodeWidth <= 0 || nodeHeight <= 0 || imageWidth <= 0 || imageHeight <= 0 {
		return native
	}

	imgW := float64(imageWidth)
	imgH := float64(imageHeight)
	nodeRatio := nodeHeight / nodeWidth
	imageRatio := imgH / imgW

	var w, h float64
	switch mode {
	case document.ScaleFill:
		// The smaller image dimension scales to the larger node dimension.
		switch {
		case nodeRatio < imageRatio:
			if nodeWidth >= imgW {
				return native
			}
			w, h = nodeWidth, imageRatio*nodeWidth
		case nodeRatio > imageRatio:
			if nodeHeight >= imgH {
				return native
			}
			w, h = nodeHeight/imageRatio, nodeHeight
		default:
			if !(imgH > nodeHeight && imgW > nodeWidth) {
				return native
			}
			w, h = nodeWidth, nodeHeight
		}
	case document.ScaleFit:
		// The larger image dimension scales to the smaller node dimension.
		switch {
		case nodeRatio < imageRatio:
			if nodeHeight >= imgH {
				return native
			}
			w, h = nodeHeight/imageRatio, nodeHeight
		case nodeRatio > imageRatio:
			if nodeWidth >= imgW {
				return native
			}
			w, h = nodeWidth, imageRatio*nodeWidth
		default:
			if !(imgH > nodeHeight && imgW > nodeWidth) {
				return native
			}
			w, h = nodeWidth, nodeHeight
		}
	default:
		// CROP needs the fill transform; TILE repeats at native size.
		return native
	}

	return Size{Width: toPixels(w), Height: toPixels(h)}
}

// toPixels truncates like a canvas dimension assignment does.
func toPixels(v float64) int {
	return int(math.Max(1, math.Floor(v)))
}
