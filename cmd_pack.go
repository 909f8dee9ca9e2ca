package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joanet/controlplane/update"
	"github.com/spf13/cobra"
)

func packCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "bundle the install tree into a self-update archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := update.Pack(root)
			if err != nil {
				return fmt.Errorf("pack: %w", err)
			}

			name := fmt.Sprintf("netapi-%v.zip", currentVersion)
			dest := filepath.Join(root, name)
			if err := os.WriteFile(dest, archive, 0o644); err != nil {
				return fmt.Errorf("pack: write %q: %w", dest, err)
			}
			fmt.Println("packed:", dest)
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "install tree to archive")
	return cmd
}
