package container

import (
	"context"
	"log/slog"
	"sync"

	"kleinimg/internal/bridge"
	"kleinimg/internal/codec"
	"kleinimg/internal/common"
	"kleinimg/internal/compression"
	compressionDomain "kleinimg/internal/domain/compression"
	preferencesDomain "kleinimg/internal/domain/preferences"
	"kleinimg/internal/host"
	"kleinimg/internal/protocol"
	"kleinimg/internal/session"
)

// Workspace implements compressionDomain.Service. Each open document gets
// its own host, session and loopback; the worker pool is shared.
type Workspace struct {
	imageDir     string
	oversample   float64
	orchestrator *compression.Orchestrator
	codec        codec.Codec
	recorder     session.Recorder
	prefsRepo    preferencesDomain.Repository
	logger       *slog.Logger
	wire         bool
	watch        bool

	mu        sync.Mutex
	path      string
	host      *host.Host
	session   *session.Session
	loop      *bridge.Loopback
	cancel    context.CancelFunc
	watchDone chan struct{}
	options   compression.Options
	listeners []compressionDomain.Listener
}

// AddListener registers l for view, focus and failure events.
func (w *Workspace) AddListener(l compressionDomain.Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, l)
}

// OpenDocument loads the document at path, replacing any open one, and
// announces its selection to the core.
func (w *Workspace) OpenDocument(ctx context.Context, path string) error {
	h, err := host.Open(path, w.imageDir, w.logger)
	if err != nil {
		return err
	}

	w.CloseDocument()

	w.mu.Lock()
	opts := w.options
	w.mu.Unlock()

	loop := bridge.New(w.wire, w.logger)
	s := session.New(loop.CoreSender(), w.orchestrator, w.codec, opts, w.logger)
	if w.recorder != nil {
		s.SetRecorder(w.recorder)
	}
	s.OnUpdate(func(snap session.Snapshot) {
		w.emitView(newView(path, snap))
	})
	s.OnError(func(m protocol.CompressError) {
		w.emitFailure(compressionDomain.CompressFailure{ImageHash: m.ImageHash, NodeIDs: m.NodeIDs, Error: m.Error})
	})
	h.Connect(loop.HostSender())
	h.OnFocus(w.emitFocus)

	ctx, cancel := context.WithCancel(ctx)
	loop.Start(ctx, s, h)

	var watchDone chan struct{}
	if w.watch {
		watchDone = make(chan struct{})
		go func() {
			defer close(watchDone)
			err := h.Watch(ctx, func() {
				if err := s.Scan(); err != nil {
					w.logger.Warn("Skipping rescan after document change", "path", path, "error", err)
				}
			})
			if err != nil {
				w.logger.Error("Document watcher stopped", "path", path, "error", err)
			}
		}()
	}

	w.mu.Lock()
	w.path, w.host, w.session, w.loop = path, h, s, loop
	w.cancel, w.watchDone = cancel, watchDone
	w.mu.Unlock()

	w.logger.Info("Document opened", "path", path, "selected", len(h.Selection()))
	h.SetSelection(h.Selection())
	return nil
}

// CloseDocument stops the loops of the open document, if any.
func (w *Workspace) CloseDocument() {
	w.mu.Lock()
	cancel, loop, watchDone, path := w.cancel, w.loop, w.watchDone, w.path
	w.path, w.host, w.session, w.loop = "", nil, nil, nil
	w.cancel, w.watchDone = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	loop.Close()
	w.orchestrator.Wait()
	if watchDone != nil {
		<-watchDone
	}
	w.logger.Info("Document closed", "path", path)
}

// DocumentPath returns the path of the open document, or "".
func (w *Workspace) DocumentPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// SetSelection replaces the document selection.
func (w *Workspace) SetSelection(nodeIDs []string) error {
	h, _, err := w.current()
	if err != nil {
		return err
	}
	h.SetSelection(nodeIDs)
	return nil
}

func (w *Workspace) Scan() error {
	_, s, err := w.current()
	if err != nil {
		return err
	}
	return s.Scan()
}

func (w *Workspace) Toggle(index int) error {
	_, s, err := w.current()
	if err != nil {
		return err
	}
	return s.Toggle(index)
}

func (w *Workspace) SetAllIncluded(included bool) error {
	_, s, err := w.current()
	if err != nil {
		return err
	}
	return s.SetAllIncluded(included)
}

func (w *Workspace) Compress() error {
	_, s, err := w.current()
	if err != nil {
		return err
	}
	return s.Compress()
}

func (w *Workspace) GoTo(nodeID string) error {
	_, s, err := w.current()
	if err != nil {
		return err
	}
	return s.GoTo(nodeID)
}

// Save writes the document, including replaced fills, back to disk.
func (w *Workspace) Save() error {
	h, _, err := w.current()
	if err != nil {
		return err
	}
	return h.Save()
}

// SaveCopy writes the document to path without changing the open path.
func (w *Workspace) SaveCopy(path string) error {
	h, _, err := w.current()
	if err != nil {
		return err
	}
	return h.SaveCopy(path)
}

// View returns the display state. Without a document it only carries the
// options.
func (w *Workspace) View() compressionDomain.View {
	w.mu.Lock()
	s, path, opts := w.session, w.path, w.options
	w.mu.Unlock()

	if s == nil {
		return compressionDomain.View{
			Status:  session.StatusSelectImages,
			Rows:    []compressionDomain.RowView{},
			Options: toDomainOptions(opts),
		}
	}
	return newView(path, s.Snapshot())
}

// Wait blocks until done holds for the open document's state.
func (w *Workspace) Wait(ctx context.Context, done func(session.Snapshot) bool) (session.Snapshot, error) {
	_, s, err := w.current()
	if err != nil {
		return session.Snapshot{}, err
	}
	return s.Wait(ctx, done)
}

func (w *Workspace) Options() compressionDomain.Options {
	w.mu.Lock()
	defer w.mu.Unlock()
	return toDomainOptions(w.options)
}

// SetOptions validates and applies opts to the open document and persists
// them as preferences.
func (w *Workspace) SetOptions(opts compressionDomain.Options) error {
	next := compression.Options{
		Quality:     opts.Quality,
		ResizeToFit: opts.ResizeToFit,
		ConvertPNGs: opts.ConvertPNGs,
		Oversample:  w.oversample,
	}
	if err := next.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	w.options = next
	s := w.session
	w.mu.Unlock()

	if s != nil {
		if err := s.SetOptions(next); err != nil {
			return err
		}
	}

	if w.prefsRepo == nil {
		return nil
	}
	return w.prefsRepo.UpdatePreferences(map[string]any{
		"quality":       float64(next.Quality),
		"resize_to_fit": next.ResizeToFit,
		"convert_pngs":  next.ConvertPNGs,
	})
}

// ImportImage adds a file to the image store of the open document and
// returns its hash.
func (w *Workspace) ImportImage(path string) (string, error) {
	h, _, err := w.current()
	if err != nil {
		return "", err
	}
	return h.Images().Import(path)
}

func (w *Workspace) current() (*host.Host, *session.Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == nil {
		return nil, nil, common.ErrNoDocument
	}
	return w.host, w.session, nil
}

func (w *Workspace) snapshotListeners() []compressionDomain.Listener {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]compressionDomain.Listener(nil), w.listeners...)
}

func (w *Workspace) emitView(view compressionDomain.View) {
	for _, l := range w.snapshotListeners() {
		l.ViewChanged(view)
	}
}

func (w *Workspace) emitFocus(nodeID string) {
	for _, l := range w.snapshotListeners() {
		l.NodeFocused(nodeID)
	}
}

func (w *Workspace) emitFailure(f compressionDomain.CompressFailure) {
	for _, l := range w.snapshotListeners() {
		l.CompressFailed(f)
	}
}
