package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kleinimg/internal/host"
)

func newImportCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <image>...",
		Short: "Add image files to the image store and print their hashes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			images, err := host.NewImageStore(cfg.ImageDir)
			if err != nil {
				return err
			}

			for _, path := range args {
				hash, err := images.Import(path)
				if err != nil {
					return fmt.Errorf("failed to import %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", hash, path)
			}
			return nil
		},
	}
	return cmd
}
