package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"kleinimg/internal/common"
	"kleinimg/internal/config"
	"kleinimg/internal/container"
	"kleinimg/internal/database"
	"kleinimg/internal/session"
)

type rootOptions struct {
	configPath string
	workers    int
	wire       bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "kleinimg",
		Short: "Shrink the image fills of a design document",
		Long: `Scans the selected nodes of a JSON design document for image fills,
re-encodes each image at the size it is displayed at, and writes the smaller
images back into the document.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Config file (default: "+config.DefaultPath()+")")
	flags.IntVar(&opts.workers, "workers", 0, "Images compressed concurrently (default from config)")
	flags.BoolVar(&opts.wire, "wire", false, "Serialize core/host messages through the JSON protocol")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newScanCmd(opts),
		newCompressCmd(opts),
		newWatchCmd(opts),
		newStatsCmd(opts),
		newImportCmd(opts),
	)
	return cmd
}

func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.workers > 0 {
		cfg.MaxWorkers = min(o.workers, common.MaxConcurrencyLimit)
	}
	if o.verbose {
		logger, err := config.NewLogger(cmd.ErrOrStderr(), "debug", cfg.LogFormat)
		if err != nil {
			return nil, err
		}
		cfg.Logger, cfg.LogLevel = logger, "debug"
	}
	return cfg, nil
}

func (o *rootOptions) open(cmd *cobra.Command, extra ...container.Option) (*container.Container, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return container.New(cfg, db, append([]container.Option{container.WithWire(o.wire)}, extra...)...)
}

// scanDocument opens path, optionally replaces its selection, and waits for
// the scan to finish.
func scanDocument(ctx context.Context, w *container.Workspace, path string, selection []string) (session.Snapshot, error) {
	if err := w.OpenDocument(ctx, path); err != nil {
		return session.Snapshot{}, err
	}
	if len(selection) > 0 {
		if err := w.SetSelection(selection); err != nil {
			return session.Snapshot{}, err
		}
	}
	if err := w.Scan(); err != nil {
		return session.Snapshot{}, err
	}
	snap, err := w.Wait(ctx, session.Snapshot.ScanDone)
	if err != nil {
		return snap, fmt.Errorf("scan interrupted: %w", err)
	}
	return snap, nil
}
