package main

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"kleinimg/internal/common"
	"kleinimg/internal/container"
	compressionDomain "kleinimg/internal/domain/compression"
	"kleinimg/internal/session"
)

// scanReporter prints a line each time a scan finishes and signals scanned.
type scanReporter struct {
	out     io.Writer
	scanned chan struct{}

	mu       sync.Mutex
	scanning bool
}

func (r *scanReporter) ViewChanged(v compressionDomain.View) {
	r.mu.Lock()
	finished := r.scanning && !v.Scanning
	r.scanning = v.Scanning
	r.mu.Unlock()

	if !finished {
		return
	}
	fmt.Fprintf(r.out, "Scanned %d image fills (%s): %s\n", len(v.Rows), v.TotalSize, v.Status)
	select {
	case r.scanned <- struct{}{}:
	default:
	}
}

func (r *scanReporter) NodeFocused(string) {}

func (r *scanReporter) CompressFailed(f compressionDomain.CompressFailure) {
	fmt.Fprintf(r.out, "Failed to compress %s on %v: %s\n", shortHash(f.ImageHash), f.NodeIDs, f.Error)
}

func newWatchCmd(root *rootOptions) *cobra.Command {
	var auto bool

	cmd := &cobra.Command{
		Use:   "watch <document.json>",
		Short: "Rescan the document whenever it changes on disk",
		Long: `Keeps the document open and rescans it each time it is written. With
--auto every rescan is followed by compression and a save.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := root.open(cmd, container.WithWatch(true))
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			reporter := &scanReporter{out: cmd.OutOrStdout(), scanned: make(chan struct{}, 1)}
			w := c.GetWorkspace()
			w.AddListener(reporter)

			if _, err := scanDocument(ctx, w, args[0], nil); err != nil {
				return err
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-reporter.scanned:
				}
				if !auto {
					continue
				}
				if err := compressAndSave(cmd, w); err != nil {
					return err
				}
			}
		},
	}

	cmd.Flags().BoolVar(&auto, "auto", false, "Compress and save after every rescan")
	return cmd
}

func compressAndSave(cmd *cobra.Command, w *container.Workspace) error {
	err := w.Compress()
	if errors.Is(err, common.ErrNothingSelected) || errors.Is(err, common.ErrBusy) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := w.Wait(cmd.Context(), session.Snapshot.CompressDone); err != nil {
		return nil
	}
	if err := w.Save(); err != nil {
		return err
	}
	v := w.View()
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%.1f%%)\n", v.TotalSizeSaved, v.SavedPercent)
	return nil
}
