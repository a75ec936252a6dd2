package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	compressionDomain "kleinimg/internal/domain/compression"
)

func printRows(w io.Writer, rows []compressionDomain.RowView) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNODE\tIMAGE\tPIXELS\tSIZE\tCOMPRESSED\tSTATE")
	for _, r := range rows {
		state := "included"
		switch {
		case r.Error != "":
			state = "failed: " + r.Error
		case r.Compressed:
			state = "compressed"
		case !r.Included:
			state = "skipped"
		}
		compressed := r.CompressedSize
		if compressed == "" {
			compressed = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%dx%d\t%s\t%s\t%s\n",
			r.Index, r.NodeID, shortHash(r.ImageHash), r.Width, r.Height, r.Size, compressed, state)
	}
	tw.Flush()
}

func printSummary(w io.Writer, v compressionDomain.View) {
	fmt.Fprintf(w, "%d image fills, %s total, %s selected\n", len(v.Rows), v.TotalSize, v.TotalSizeSelected)
	if v.NumCompressed > 0 {
		fmt.Fprintf(w, "Saved %s (%.1f%%)\n", v.TotalSizeSaved, v.SavedPercent)
	}
	fmt.Fprintln(w, v.Status)
}

func shortHash(h string) string {
	if len(h) > 10 {
		return h[:10]
	}
	return h
}
