package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kleinimg/internal/common"
	"kleinimg/internal/compression"
	"kleinimg/internal/container"
	"kleinimg/internal/session"
)

func newCompressCmd(root *rootOptions) *cobra.Command {
	var (
		quality     int
		resize      bool
		convertPNGs bool
		selection   []string
		skip        []string
		dryRun      bool
		output      string
	)

	cmd := &cobra.Command{
		Use:   "compress <document.json>",
		Short: "Compress the image fills in the document selection and save it",
		Long: `Scans the selection, compresses every included image fill, and writes
the document back with the replaced fills, or to --output. Option flags apply to this run only
and are not saved as preferences.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			adjust := container.WithOptions(func(o *compression.Options) {
				if flags.Changed("quality") {
					o.Quality = quality
				}
				if flags.Changed("resize") {
					o.ResizeToFit = resize
				}
				if flags.Changed("convert-pngs") {
					o.ConvertPNGs = convertPNGs
				}
			})

			c, err := root.open(cmd, adjust)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			w := c.GetWorkspace()
			snap, err := scanDocument(cmd.Context(), w, args[0], selection)
			if err != nil {
				return err
			}
			if len(snap.Rows) == 0 {
				fmt.Fprintln(out, "No image fills in the selection")
				return nil
			}

			if len(skip) > 0 {
				if err := skipNodes(w, snap, skip); err != nil {
					return err
				}
			}

			if dryRun {
				view := w.View()
				printRows(out, view.Rows)
				printSummary(out, view)
				return nil
			}

			if err := w.Compress(); err != nil {
				if errors.Is(err, common.ErrNothingSelected) {
					fmt.Fprintln(out, "Nothing selected to compress")
					return nil
				}
				return err
			}
			if _, err := w.Wait(cmd.Context(), session.Snapshot.CompressDone); err != nil {
				return fmt.Errorf("compression interrupted: %w", err)
			}
			save := w.Save
			if output != "" {
				save = func() error { return w.SaveCopy(output) }
			}
			if err := save(); err != nil {
				return err
			}

			view := w.View()
			printRows(out, view.Rows)
			printSummary(out, view)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&quality, "quality", "q", common.DefaultQuality, "JPEG quality (1-100)")
	flags.BoolVar(&resize, "resize", common.DefaultResizeToFit, "Downscale images to their displayed size")
	flags.BoolVar(&convertPNGs, "convert-pngs", common.DefaultConvertPNGs, "Re-encode opaque PNGs as JPEG")
	flags.StringSliceVarP(&selection, "select", "s", nil, "Node ids to compress instead of the saved selection")
	flags.StringSliceVar(&skip, "skip", nil, "Node ids whose image fills are left untouched")
	flags.BoolVar(&dryRun, "dry-run", false, "Scan and list the rows without compressing")
	flags.StringVarP(&output, "output", "o", "", "Write the compressed document here and leave the input untouched")
	return cmd
}

// skipNodes excludes every row that fills one of nodeIDs.
func skipNodes(w *container.Workspace, snap session.Snapshot, nodeIDs []string) error {
	skip := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		skip[id] = true
	}
	for i, row := range snap.Rows {
		if !skip[row.NodeID] || !row.Included {
			continue
		}
		if err := w.Toggle(i); err != nil {
			return fmt.Errorf("failed to skip node %s: %w", row.NodeID, err)
		}
	}
	return nil
}
