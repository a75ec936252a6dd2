package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kleinimg/internal/common"
)

func newStatsCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show lifetime savings and recent compressions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			stats, err := c.GetStatisticsService().GetStats()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Images compressed: %d\n", stats.TotalImagesCompressed)
			fmt.Fprintf(out, "Data saved: %s\n", stats.TotalDataSavedLabel)

			if limit <= 0 {
				return nil
			}
			history, err := c.GetStatisticsService().History(limit)
			if err != nil {
				return err
			}
			if len(history) == 0 {
				return nil
			}

			fmt.Fprintln(out)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tCYCLE\tNODE\tIMAGE\tBEFORE\tAFTER")
			for _, r := range history {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.CreatedAt.Format("2006-01-02 15:04"),
					shortHash(r.CycleID),
					r.NodeID,
					shortHash(r.ImageHash),
					common.FormatSize(r.OriginalSize),
					common.FormatSize(r.CompressedSize))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Recent compressions to list (0 to hide)")
	return cmd
}
