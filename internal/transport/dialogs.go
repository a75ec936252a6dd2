package transport

import (
	"context"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var (
	documentFilter = wailsruntime.FileFilter{
		DisplayName: "Design documents (*.json)",
		Pattern:     "*.json",
	}
	imageFilter = wailsruntime.FileFilter{
		DisplayName: "Images (*.png, *.jpg, *.jpeg, *.gif, *.webp)",
		Pattern:     "*.png;*.jpg;*.jpeg;*.gif;*.webp",
	}
)

type dialogsHandler struct {
	ctx context.Context
}

func NewDialogsHandler(ctx context.Context) DialogHandler {
	return &dialogsHandler{
		ctx: ctx,
	}
}

func (h *dialogsHandler) OpenDocumentDialog() (string, error) {
	return wailsruntime.OpenFileDialog(h.ctx, openDocumentOptions())
}

func (h *dialogsHandler) OpenImagesDialog() ([]string, error) {
	return wailsruntime.OpenMultipleFilesDialog(h.ctx, openImagesOptions())
}

func (h *dialogsHandler) ShowSaveDialog(filename string) (string, error) {
	return wailsruntime.SaveFileDialog(h.ctx, saveDocumentOptions(filename))
}

func openDocumentOptions() wailsruntime.OpenDialogOptions {
	return wailsruntime.OpenDialogOptions{
		Title:   "Open design document",
		Filters: []wailsruntime.FileFilter{documentFilter},
	}
}

func openImagesOptions() wailsruntime.OpenDialogOptions {
	return wailsruntime.OpenDialogOptions{
		Title:   "Import images",
		Filters: []wailsruntime.FileFilter{imageFilter},
	}
}

func saveDocumentOptions(filename string) wailsruntime.SaveDialogOptions {
	return wailsruntime.SaveDialogOptions{
		Title:                "Save a copy of the design document",
		DefaultFilename:      filename,
		CanCreateDirectories: true,
		Filters:              []wailsruntime.FileFilter{documentFilter},
	}
}
