package host

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"kleinimg/internal/common"
	"kleinimg/internal/document"
)

const reloadDebounce = 200 * time.Millisecond

// Save writes the document back to its path.
func (h *Host) Save() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.path == "" {
		return common.ErrNoDocument
	}
	data, err := h.doc.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(h.path, data, 0644); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	h.diskHash = Hash(data)
	h.logger.Info("Document saved", "path", h.path, "size", common.FormatSize(int64(len(data))))
	return nil
}

// SaveCopy writes the document to path and keeps the open document on its
// own path. Saving a copy onto the document's path is a plain Save.
func (h *Host) SaveCopy(path string) error {
	h.mu.Lock()
	own := h.path
	data, err := h.doc.Marshal()
	h.mu.Unlock()
	if err != nil {
		return err
	}

	if own != "" && sameFile(own, path) {
		return h.Save()
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save document copy: %w", err)
	}
	h.logger.Info("Document copy saved", "path", path, "size", common.FormatSize(int64(len(data))))
	return nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// Reload re-reads the document from disk and announces its selection. It
// returns false when the file is unchanged since the last Save.
func (h *Host) Reload() (bool, error) {
	h.mu.Lock()
	path, diskHash := h.path, h.diskHash
	h.mu.Unlock()

	if path == "" {
		return false, common.ErrNoDocument
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read document: %w", err)
	}
	if Hash(data) == diskHash {
		return false, nil
	}

	doc, err := document.Load(path)
	if err != nil {
		return false, err
	}

	h.mu.Lock()
	h.doc = doc
	h.index = doc.Index()
	h.diskHash = Hash(data)
	sender := h.sender
	h.mu.Unlock()

	h.logger.Info("Document reloaded", "path", path, "selected", len(doc.Selection))
	h.announceSelection(sender, len(doc.Selection))
	return true, nil
}

// Watch reloads the document whenever it changes on disk and calls onChange
// after each reload that changed it. It blocks until ctx is done.
func (h *Host) Watch(ctx context.Context, onChange func()) error {
	h.mu.Lock()
	path := h.path
	h.mu.Unlock()
	if path == "" {
		return common.ErrNoDocument
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace files by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	h.logger.Info("Watching document", "path", abs)

	var mu sync.Mutex
	var timer *time.Timer
	reload := func() {
		changed, err := h.Reload()
		if err != nil {
			h.logger.Warn("Failed to reload document", "path", abs, "error", err)
			return
		}
		if changed && onChange != nil {
			onChange()
		}
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, reload)
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn("Watcher error", "error", err)
		}
	}
}
