// Package codec decodes image fills, renders them at a target size into a
// reusable surface, and re-encodes the result.
package codec

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	// Extra decoders for fills imported from other tools.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"kleinimg/internal/fit"
	"kleinimg/internal/sniff"
)

// Codec is the capability boundary the compression pipeline depends on.
type Codec interface {
	Probe(data []byte) (image.Config, error)
	Decode(data []byte) (image.Image, error)
	Encode(img *image.NRGBA, mimeType string, quality int) ([]byte, string, error)
}

// Standard implements Codec with the standard library encoders.
type Standard struct{}

// Probe reads the image header for its dimensions without decoding pixels.
func (Standard) Probe(data []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, err
	}
	return cfg, nil
}

// Decode decodes data into an image.
func (Standard) Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Encode encodes img as mimeType. JPEG honours quality (1-100); any other
// type, including an unknown one, is written as PNG. The returned string is
// the MIME type actually produced.
func (Standard) Encode(img *image.NRGBA, mimeType string, quality int) ([]byte, string, error) {
	var buf bytes.Buffer
	switch mimeType {
	case sniff.JPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
			return nil, "", fmt.Errorf("failed to encode jpeg: %w", err)
		}
		return buf.Bytes(), sniff.JPEG, nil
	default:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("failed to encode png: %w", err)
		}
		return buf.Bytes(), sniff.PNG, nil
	}
}

func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}

// Surface is a scratch canvas reused across renders of the same source image.
// The image returned by Draw is only valid until the next call to Draw.
type Surface struct {
	img *image.NRGBA
}

// Draw scales src into the surface at size and returns the rendered pixels.
func (s *Surface) Draw(src image.Image, size fit.Size) *image.NRGBA {
	rect := image.Rect(0, 0, size.Width, size.Height)
	n := 4 * size.Width * size.Height
	if s.img == nil || cap(s.img.Pix) < n {
		s.img = image.NewNRGBA(rect)
	} else {
		s.img = &image.NRGBA{Pix: s.img.Pix[:n], Stride: 4 * size.Width, Rect: rect}
		clear(s.img.Pix)
	}

	if src.Bounds().Dx() == size.Width && src.Bounds().Dy() == size.Height {
		draw.Draw(s.img, rect, src, src.Bounds().Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(s.img, rect, src, src.Bounds(), draw.Src, nil)
	}
	return s.img
}

// IsOpaque reports whether every pixel of img has full alpha.
func IsOpaque(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0xff {
			return false
		}
	}
	return true
}
