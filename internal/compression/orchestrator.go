package compression

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"kleinimg/internal/common"
	"kleinimg/internal/protocol"
)

// Orchestrator runs compress-image jobs on a bounded worker pool. Different
// images run concurrently; the fills of one image are processed in order by a
// single worker.
type Orchestrator struct {
	pool       *ants.Pool
	compressor *Compressor
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewOrchestrator creates an orchestrator with at most workers concurrent
// images, capped at common.MaxConcurrencyLimit.
func NewOrchestrator(workers int, compressor *Compressor, logger *slog.Logger) (*Orchestrator, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > common.MaxConcurrencyLimit {
		workers = common.MaxConcurrencyLimit
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &Orchestrator{
		pool:       pool,
		compressor: compressor,
		logger:     logger,
	}, nil
}

// Submit queues one image. Fills are delivered to sink.SetFill as they are
// encoded; a failure is delivered once to sink.CompressError. sink.Done
// follows unless Submit returns an error.
func (o *Orchestrator) Submit(ctx context.Context, req protocol.CompressImage, opts Options, sink Sink) error {
	o.wg.Add(1)

	err := o.pool.Submit(func() {
		defer o.wg.Done()
		defer sink.Done(req.ImageHash)

		select {
		case <-ctx.Done():
			o.logger.Info("Compression cancelled by context", "image_hash", req.ImageHash)
			sink.CompressError(protocol.CompressError{ImageHash: req.ImageHash, Error: ctx.Err().Error()})
			return
		default:
		}

		unmatched, err := o.compressor.CompressImage(ctx, req, opts, sink.SetFill)
		if err != nil {
			o.logger.Error("Error compressing image", "image_hash", req.ImageHash, "error", err)
			sink.CompressError(protocol.CompressError{ImageHash: req.ImageHash, Error: err.Error()})
			return
		}

		if len(unmatched) > 0 {
			o.logger.Warn("Nodes no longer use image", "image_hash", req.ImageHash, "node_ids", unmatched)
			sink.CompressError(protocol.CompressError{
				ImageHash: req.ImageHash,
				NodeIDs:   unmatched,
				Error:     "no fill uses this image",
			})
		}
	})

	if err != nil {
		o.wg.Done()
		return fmt.Errorf("failed to submit image %s: %w", req.ImageHash, err)
	}
	return nil
}

// Wait blocks until every submitted image has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Running returns the number of images currently being processed.
func (o *Orchestrator) Running() int {
	return o.pool.Running()
}

// Release waits for in-flight images and frees the pool.
func (o *Orchestrator) Release() {
	o.wg.Wait()
	o.pool.Release()
}
