package transport

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"kleinimg/internal/common"
	"kleinimg/internal/config"
	compressionDomain "kleinimg/internal/domain/compression"
	preferencesDomain "kleinimg/internal/domain/preferences"
	statisticsDomain "kleinimg/internal/domain/statistics"
)

// ImageImporter adds image files to the open document's image store.
type ImageImporter interface {
	ImportImage(path string) (string, error)
}

type WailsApp struct {
	ctx                context.Context
	config             *config.Config
	compressionService compressionDomain.Service
	preferencesRepo    preferencesDomain.Repository
	statisticsService  statisticsDomain.Service
	importer           ImageImporter
	dialogsHandler     DialogHandler
	logger             *slog.Logger
}

func NewWailsApp(
	ctx context.Context,
	cfg *config.Config,
	compressionService compressionDomain.Service,
	preferencesRepo preferencesDomain.Repository,
	statisticsService statisticsDomain.Service,
	importer ImageImporter,
	dialogs DialogHandler,
) *WailsApp {
	return &WailsApp{
		ctx:                ctx,
		config:             cfg,
		compressionService: compressionService,
		preferencesRepo:    preferencesRepo,
		statisticsService:  statisticsService,
		importer:           importer,
		dialogsHandler:     dialogs,
		logger:             cfg.Logger,
	}
}

// OpenDocument opens path, or asks for one when path is empty. It returns
// the opened path, or "" when the dialog was cancelled.
func (a *WailsApp) OpenDocument(path string) (string, error) {
	if path == "" {
		selected, err := a.dialogsHandler.OpenDocumentDialog()
		if err != nil {
			return "", err
		}
		if selected == "" {
			return "", nil
		}
		path = selected
	}

	if err := a.compressionService.OpenDocument(a.ctx, path); err != nil {
		a.logger.Error("Failed to open document", "path", path, "error", err)
		return "", err
	}
	return path, nil
}

func (a *WailsApp) CloseDocument() {
	a.compressionService.CloseDocument()
}

func (a *WailsApp) SetSelection(nodeIDs []string) error {
	return a.compressionService.SetSelection(nodeIDs)
}

func (a *WailsApp) Scan() error {
	return a.compressionService.Scan()
}

func (a *WailsApp) Toggle(index int) error {
	return a.compressionService.Toggle(index)
}

func (a *WailsApp) SetAllIncluded(included bool) error {
	return a.compressionService.SetAllIncluded(included)
}

func (a *WailsApp) Compress() error {
	return a.compressionService.Compress()
}

func (a *WailsApp) GoTo(nodeID string) error {
	return a.compressionService.GoTo(nodeID)
}

func (a *WailsApp) Save() error {
	return a.compressionService.Save()
}

// SaveCopy asks where to write a copy of the open document and saves it
// there. It returns the chosen path, or "" when the dialog was cancelled.
func (a *WailsApp) SaveCopy() (string, error) {
	current := a.compressionService.DocumentPath()
	if current == "" {
		return "", common.ErrNoDocument
	}

	name := strings.TrimSuffix(filepath.Base(current), filepath.Ext(current)) + "-compressed.json"
	path, err := a.dialogsHandler.ShowSaveDialog(name)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", nil
	}

	if err := a.compressionService.SaveCopy(path); err != nil {
		a.logger.Error("Failed to save document copy", "path", path, "error", err)
		return "", err
	}
	return path, nil
}

func (a *WailsApp) GetView() compressionDomain.View {
	return a.compressionService.View()
}

func (a *WailsApp) GetOptions() compressionDomain.Options {
	return a.compressionService.Options()
}

func (a *WailsApp) SetOptions(opts compressionDomain.Options) error {
	return a.compressionService.SetOptions(opts)
}

func (a *WailsApp) GetPreferences() (*preferencesDomain.UserPreferencesData, error) {
	return a.preferencesRepo.GetPreferences()
}

func (a *WailsApp) UpdatePreferences(data map[string]any) error {
	return a.preferencesRepo.UpdatePreferences(data)
}

// ImportImages asks for image files and adds them to the image store. It
// returns the content hashes in selection order.
func (a *WailsApp) ImportImages() ([]string, error) {
	paths, err := a.dialogsHandler.OpenImagesDialog()
	if err != nil {
		return nil, err
	}

	hashes := make([]string, 0, len(paths))
	for _, p := range paths {
		hash, err := a.importer.ImportImage(p)
		if err != nil {
			return hashes, fmt.Errorf("failed to import %s: %w", p, err)
		}
		hashes = append(hashes, hash)
	}
	return hashes, nil
}

func (a *WailsApp) GetStats() (*statisticsDomain.AppStats, error) {
	return a.statisticsService.GetStats()
}

func (a *WailsApp) GetHistory(limit int) ([]statisticsDomain.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	return a.statisticsService.History(limit)
}

func (a *WailsApp) GetAppStatus() AppStatus {
	return AppStatus{
		Status:           "running",
		Framework:        "Wails",
		AppName:          "KleinIMG",
		DocumentPath:     a.compressionService.DocumentPath(),
		ImageDir:         a.config.ImageDir,
		DatabasePath:     a.config.DatabasePath,
		MaxWorkers:       a.config.MaxWorkers,
		WorkingDirectory: a.config.WorkingDir,
	}
}
