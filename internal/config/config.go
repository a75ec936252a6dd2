package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"kleinimg/internal/common"
	"kleinimg/internal/compression"
)

// Config holds application configuration
type Config struct {
	WorkingDir   string
	AppDataDir   string
	DatabasePath string
	ImageDir     string
	Logger       *slog.Logger

	// Defaults seed the options of a fresh install before any saved
	// preferences are applied.
	Defaults   compression.Options
	MaxWorkers int
	LogLevel   string
	LogFormat  string
}

// File is the on-disk YAML shape. Unset fields keep their defaults.
type File struct {
	AppDataDir   string          `yaml:"app_data_dir"`
	DatabasePath string          `yaml:"database_path"`
	ImageDir     string          `yaml:"image_dir"`
	MaxWorkers   int             `yaml:"max_workers"`
	Log          LogConfig       `yaml:"log"`
	Compression  CompressionFile `yaml:"compression"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CompressionFile struct {
	Quality     *int     `yaml:"quality"`
	ResizeToFit *bool    `yaml:"resize_to_fit"`
	ConvertPNGs *bool    `yaml:"convert_pngs"`
	Oversample  *float64 `yaml:"oversample"`
}

// New creates a configuration from defaults only.
func New() *Config {
	cfg := defaults()
	if err := cfg.setupDirectories(); err != nil {
		cfg.Logger.Error("Failed to create application directories", "error", err)
	}
	return cfg
}

// Load reads overrides from path. An empty path means DefaultPath, which may
// be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var f File
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		cfg.apply(f)
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	cfg.Logger = logger

	if err := cfg.setupDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if err := c.Defaults.Validate(); err != nil {
		return err
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be at least 1, got %d", c.MaxWorkers)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.LogFormat)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(getAppDataDir(), "config.yaml")
}

// NewLogger builds a slog logger writing to w.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(level string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

func defaults() *Config {
	workers := runtime.NumCPU()
	if workers > common.MaxConcurrencyLimit {
		workers = common.MaxConcurrencyLimit
	}

	return &Config{
		WorkingDir: filepath.Join(os.TempDir(), "kleinimg"),
		AppDataDir: getAppDataDir(),
		Logger:     slog.Default(),
		Defaults:   compression.DefaultOptions(),
		MaxWorkers: workers,
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

func (c *Config) apply(f File) {
	if f.AppDataDir != "" {
		c.AppDataDir = f.AppDataDir
	}
	c.DatabasePath = f.DatabasePath
	c.ImageDir = f.ImageDir
	if f.MaxWorkers != 0 {
		c.MaxWorkers = min(f.MaxWorkers, common.MaxConcurrencyLimit)
	}
	if f.Log.Level != "" {
		c.LogLevel = strings.ToLower(f.Log.Level)
	}
	if f.Log.Format != "" {
		c.LogFormat = strings.ToLower(f.Log.Format)
	}

	cf := f.Compression
	if cf.Quality != nil {
		c.Defaults.Quality = *cf.Quality
	}
	if cf.ResizeToFit != nil {
		c.Defaults.ResizeToFit = *cf.ResizeToFit
	}
	if cf.ConvertPNGs != nil {
		c.Defaults.ConvertPNGs = *cf.ConvertPNGs
	}
	if cf.Oversample != nil {
		c.Defaults.Oversample = *cf.Oversample
	}
}

func (c *Config) setupDirectories() error {
	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.AppDataDir, "database.sqlite3")
	}
	if c.ImageDir == "" {
		c.ImageDir = filepath.Join(c.AppDataDir, "images")
	}

	for _, dir := range []string{c.WorkingDir, c.AppDataDir, c.ImageDir} {
		if err := os.MkdirAll(dir, common.DefaultFilePermissions); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func getAppDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "kleinimg")
}
