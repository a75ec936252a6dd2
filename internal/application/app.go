package application

import (
	"context"
	"errors"

	"kleinimg/internal/config"
	"kleinimg/internal/container"
	"kleinimg/internal/database"
	compressionDomain "kleinimg/internal/domain/compression"
	preferencesDomain "kleinimg/internal/domain/preferences"
	statisticsDomain "kleinimg/internal/domain/statistics"
	"kleinimg/internal/transport"
)

var errNotReady = errors.New("application failed to start")

type App struct {
	ctx        context.Context
	configPath string
	container  *container.Container
	wailsApp   *transport.WailsApp
	config     *config.Config
}

// NewApp creates the bound application. configPath may be empty.
func NewApp(configPath string) *App {
	return &App{configPath: configPath}
}

func (a *App) OnStartup(ctx context.Context) {
	a.ctx = ctx

	cfg, err := config.Load(a.configPath)
	if err != nil {
		cfg = config.New()
		cfg.Logger.Error("Failed to load configuration, using defaults", "error", err)
	}
	a.config = cfg

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		cfg.Logger.Error("Failed to initialize database", "error", err)
		return
	}

	c, err := container.New(cfg, db, container.WithWatch(true))
	if err != nil {
		cfg.Logger.Error("Failed to initialize services", "error", err)
		return
	}
	a.container = c

	events := transport.NewEventBridge(transport.NewWailsEmitter(ctx), c.GetStatisticsService(), cfg.Logger)
	c.GetWorkspace().AddListener(events)
	c.GetStatisticsService().OnUpdate(events.StatsChanged)

	a.wailsApp = transport.NewWailsApp(
		ctx,
		cfg,
		c.GetCompressionService(),
		c.GetPreferencesRepository(),
		c.GetStatisticsService(),
		c.GetWorkspace(),
		transport.NewDialogsHandler(ctx),
	)

	cfg.Logger.Info("Wails app initialized successfully")
	cfg.Logger.Info("Application configuration",
		"working_directory", cfg.WorkingDir,
		"database_path", cfg.DatabasePath,
		"image_dir", cfg.ImageDir,
		"max_workers", cfg.MaxWorkers)
}

func (a *App) OnShutdown(ctx context.Context) {
	if a.container != nil {
		a.container.Close()
	}
}

func (a *App) ready() error {
	if a.wailsApp == nil {
		return errNotReady
	}
	return nil
}

func (a *App) OpenDocument(path string) (string, error) {
	if err := a.ready(); err != nil {
		return "", err
	}
	return a.wailsApp.OpenDocument(path)
}

func (a *App) CloseDocument() {
	if a.ready() == nil {
		a.wailsApp.CloseDocument()
	}
}

func (a *App) SetSelection(nodeIDs []string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.wailsApp.SetSelection(nodeIDs)
}

func (a *App) Scan() error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.wailsApp.Scan()
}

func (a *App) Toggle(index int) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.wailsApp.Toggle(index)
}

func (a *App) SetAllIncluded(included bool) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.wailsApp.SetAllIncluded(included)
}

func (a *App) Compress() error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.wailsApp.Compress()
}

func (a *App) GoTo(nodeID string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.wailsApp.GoTo(nodeID)
}

func (a *App) Save() error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.wailsApp.Save()
}

func (a *App) SaveCopy() (string, error) {
	if err := a.ready(); err != nil {
		return "", err
	}
	return a.wailsApp.SaveCopy()
}

func (a *App) GetView() (compressionDomain.View, error) {
	if err := a.ready(); err != nil {
		return compressionDomain.View{}, err
	}
	return a.wailsApp.GetView(), nil
}

func (a *App) SetOptions(opts compressionDomain.Options) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.wailsApp.SetOptions(opts)
}

func (a *App) GetPreferences() (*preferencesDomain.UserPreferencesData, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.wailsApp.GetPreferences()
}

func (a *App) ImportImages() ([]string, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.wailsApp.ImportImages()
}

func (a *App) GetStats() (*statisticsDomain.AppStats, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.wailsApp.GetStats()
}

func (a *App) GetHistory(limit int) ([]statisticsDomain.Record, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.wailsApp.GetHistory(limit)
}

func (a *App) GetAppStatus() (transport.AppStatus, error) {
	if err := a.ready(); err != nil {
		return transport.AppStatus{}, err
	}
	return a.wailsApp.GetAppStatus(), nil
}
