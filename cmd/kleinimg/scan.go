package main

import (
	"github.com/spf13/cobra"
)

func newScanCmd(root *rootOptions) *cobra.Command {
	var selection []string

	cmd := &cobra.Command{
		Use:   "scan <document.json>",
		Short: "List the image fills in the document selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			w := c.GetWorkspace()
			if _, err := scanDocument(cmd.Context(), w, args[0], selection); err != nil {
				return err
			}

			view := w.View()
			printRows(cmd.OutOrStdout(), view.Rows)
			printSummary(cmd.OutOrStdout(), view)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&selection, "select", "s", nil, "Node ids to scan instead of the saved selection")
	return cmd
}
