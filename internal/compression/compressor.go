package compression

import (
	"context"
	"image"
	"log/slog"

	"kleinimg/internal/codec"
	"kleinimg/internal/common"
	"kleinimg/internal/fit"
	"kleinimg/internal/metadata"
	"kleinimg/internal/protocol"
	"kleinimg/internal/sniff"
)

// Compressor re-encodes one source image for every fill that shows it.
type Compressor struct {
	codec  codec.Codec
	logger *slog.Logger
}

// NewCompressor creates a new compressor instance
func NewCompressor(c codec.Codec, logger *slog.Logger) *Compressor {
	return &Compressor{
		codec:  c,
		logger: logger,
	}
}

// CompressImage processes every fill in req.NodeList whose hash matches
// req.ImageHash, in order. The source is decoded at most once and one render
// surface is shared by all fills. Each result is passed to emit as soon as it
// is encoded.
//
// Nodes without a matching fill are returned as unmatched. An error aborts the
// whole image; results already emitted stand.
func (c *Compressor) CompressImage(ctx context.Context, req protocol.CompressImage, opts Options, emit func(protocol.SetFill)) (unmatched []string, err error) {
	if sniff.IsAnimated(req.Bytes) {
		return nil, common.NewCompressionError("classify", req.ImageHash, ErrAnimated)
	}

	sourceType := sniff.MIMEType(req.Bytes)

	var src image.Image
	var surface codec.Surface

	for _, node := range req.NodeList {
		matched := 0
		for i, fill := range node.Fills {
			if fill.ImageHash != req.ImageHash {
				continue
			}
			if err := ctx.Err(); err != nil {
				return unmatched, err
			}
			if matched > 0 {
				c.logger.Debug("Rendering additional fill of the same image",
					"image_hash", req.ImageHash, "node_id", node.ID, "fill_index", i)
			}
			matched++

			if src == nil {
				src, err = c.codec.Decode(req.Bytes)
				if err != nil {
					return unmatched, &common.DecodeError{ImageHash: req.ImageHash, Err: err}
				}
			}

			bounds := src.Bounds()
			size := fit.TargetSize(
				node.Width*opts.Oversample, node.Height*opts.Oversample,
				bounds.Dx(), bounds.Dy(), fill.ScaleMode, opts.ResizeToFit)
			rendered := surface.Draw(src, size)

			mimeType := sourceType
			if mimeType == sniff.PNG && opts.ConvertPNGs && codec.IsOpaque(rendered) {
				mimeType = sniff.JPEG
			}

			data, outType, err := c.codec.Encode(rendered, mimeType, opts.Quality)
			if err != nil {
				return unmatched, common.NewCompressionError("encode", req.ImageHash, err)
			}

			c.logger.Debug("Image fill compressed",
				"image_hash", req.ImageHash,
				"node_id", node.ID,
				"fill_index", i,
				"width", size.Width,
				"height", size.Height,
				"mime_type", outType,
				"original_size", len(req.Bytes),
				"compressed_size", len(data))

			emit(protocol.SetFill{
				NodeID:         node.ID,
				FillIndex:      i,
				Bytes:          data,
				MIMEType:       outType,
				Key:            metadata.RowKey(req.ImageHash, node.ID),
				CompressedSize: int64(len(data)),
			})
		}
		if matched == 0 {
			unmatched = append(unmatched, node.ID)
		}
	}

	return unmatched, nil
}
