package container

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"kleinimg/internal/codec"
	"kleinimg/internal/compression"
	"kleinimg/internal/config"
	compressionDomain "kleinimg/internal/domain/compression"
	preferencesDomain "kleinimg/internal/domain/preferences"
	statisticsDomain "kleinimg/internal/domain/statistics"
	"kleinimg/internal/services"
)

// Container holds all dependencies for the application
type Container struct {
	config *config.Config
	db     *gorm.DB
	logger *slog.Logger

	orchestrator      *compression.Orchestrator
	preferencesRepo   preferencesDomain.Repository
	statisticsService statisticsDomain.Service
	workspace         *Workspace
}

// Option customizes a Container.
type Option func(*settings)

type settings struct {
	wire   bool
	watch  bool
	adjust func(*compression.Options)
}

// WithWire serializes every core/host message through the JSON envelope.
func WithWire(wire bool) Option {
	return func(s *settings) { s.wire = wire }
}

// WithWatch reloads and rescans the open document when it changes on disk.
func WithWatch(watch bool) Option {
	return func(s *settings) { s.watch = watch }
}

// WithOptions adjusts the loaded compression options for this container
// only. Adjusted options are not saved as preferences.
func WithOptions(fn func(*compression.Options)) Option {
	return func(s *settings) { s.adjust = fn }
}

// New creates a new dependency injection container
func New(cfg *config.Config, db *gorm.DB, opts ...Option) (*Container, error) {
	var st settings
	for _, opt := range opts {
		opt(&st)
	}

	c := &Container{
		config: cfg,
		db:     db,
		logger: cfg.Logger,
	}
	if err := c.initServices(st); err != nil {
		return nil, err
	}
	return c, nil
}

// initServices initializes all services with their dependencies
func (c *Container) initServices(st settings) error {
	prefsService := services.NewPreferencesService(c.db, preferencesData(c.config.Defaults))
	statsService := services.NewStatsService(c.db, c.logger)

	c.preferencesRepo = &PreferencesRepositoryAdapter{service: prefsService}
	c.statisticsService = &StatisticsServiceAdapter{service: statsService}

	options := c.loadOptions()
	if st.adjust != nil {
		st.adjust(&options)
		if err := options.Validate(); err != nil {
			return fmt.Errorf("invalid compression options: %w", err)
		}
	}

	std := codec.Standard{}
	orchestrator, err := compression.NewOrchestrator(c.config.MaxWorkers, compression.NewCompressor(std, c.logger), c.logger)
	if err != nil {
		return err
	}
	c.orchestrator = orchestrator

	c.workspace = &Workspace{
		imageDir:     c.config.ImageDir,
		oversample:   options.Oversample,
		orchestrator: orchestrator,
		codec:        std,
		recorder:     statsService,
		prefsRepo:    c.preferencesRepo,
		logger:       c.logger,
		wire:         st.wire,
		watch:        st.watch,
		options:      options,
	}
	return nil
}

// loadOptions overlays saved preferences on the configured defaults.
func (c *Container) loadOptions() compression.Options {
	opts := c.config.Defaults
	prefs, err := c.preferencesRepo.GetPreferences()
	if err != nil {
		c.logger.Warn("Failed to load preferences, using defaults", "error", err)
		return opts
	}

	opts.Quality = prefs.Quality
	opts.ResizeToFit = prefs.ResizeToFit
	opts.ConvertPNGs = prefs.ConvertPNGs
	if err := opts.Validate(); err != nil {
		c.logger.Warn("Ignoring invalid saved preferences", "error", err)
		return c.config.Defaults
	}
	return opts
}

// Close closes the open document and releases the worker pool.
func (c *Container) Close() {
	c.workspace.CloseDocument()
	c.orchestrator.Wait()
	c.orchestrator.Release()
}

// GetCompressionService returns the document workflow service
func (c *Container) GetCompressionService() compressionDomain.Service {
	return c.workspace
}

// GetWorkspace returns the concrete workflow service for callers that need
// to wait on it.
func (c *Container) GetWorkspace() *Workspace {
	return c.workspace
}

// GetStatisticsService returns the statistics service
func (c *Container) GetStatisticsService() statisticsDomain.Service {
	return c.statisticsService
}

// GetPreferencesRepository returns the preferences repository
func (c *Container) GetPreferencesRepository() preferencesDomain.Repository {
	return c.preferencesRepo
}

// GetConfig returns the application configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}
