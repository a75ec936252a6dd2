package transport

import (
	"context"
	"log/slog"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"kleinimg/internal/common"
	compressionDomain "kleinimg/internal/domain/compression"
	statisticsDomain "kleinimg/internal/domain/statistics"
)

type wailsEmitter struct {
	ctx context.Context
}

// NewWailsEmitter emits through the Wails runtime bound to ctx.
func NewWailsEmitter(ctx context.Context) Emitter {
	return &wailsEmitter{ctx: ctx}
}

func (e *wailsEmitter) Emit(name string, data ...any) {
	wailsruntime.EventsEmit(e.ctx, name, data...)
}

// EventBridge forwards workflow and statistics changes to the frontend.
type EventBridge struct {
	emitter Emitter
	stats   statisticsDomain.Service
	logger  *slog.Logger
}

func NewEventBridge(emitter Emitter, stats statisticsDomain.Service, logger *slog.Logger) *EventBridge {
	return &EventBridge{emitter: emitter, stats: stats, logger: logger}
}

func (b *EventBridge) ViewChanged(view compressionDomain.View) {
	b.emitter.Emit(common.EventSessionUpdate, view)
}

func (b *EventBridge) NodeFocused(nodeID string) {
	b.emitter.Emit(common.EventImageFocus, nodeID)
}

func (b *EventBridge) CompressFailed(failure compressionDomain.CompressFailure) {
	b.emitter.Emit(common.EventCompressError, failure)
}

// StatsChanged emits the current statistics.
func (b *EventBridge) StatsChanged() {
	stats, err := b.stats.GetStats()
	if err != nil {
		b.logger.Warn("Failed to load statistics", "error", err)
		return
	}
	b.emitter.Emit(common.EventStatsUpdate, stats)
}
