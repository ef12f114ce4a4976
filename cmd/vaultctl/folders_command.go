package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"image-vault/internal/collection"
)

func newFoldersCommand(ctx *commandContext) *cobra.Command {
	foldersCmd := &cobra.Command{
		Use:   "folders",
		Short: "Inspect and maintain cache folders",
	}
	foldersCmd.AddCommand(newFoldersListCommand(ctx))
	foldersCmd.AddCommand(newFoldersRecalcCommand(ctx))
	return foldersCmd
}

func newFoldersListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured cache folders and their usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.open(cmd.Context()); err != nil {
				return err
			}
			defer ctx.close()

			folders, err := ctx.db.ListCacheFolders(cmd.Context())
			if err != nil {
				return err
			}
			printFolders(cmd.OutOrStdout(), folders)
			return nil
		},
	}
}

func newFoldersRecalcCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recalc",
		Short: "Recompute folder usage from artifact metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.open(cmd.Context()); err != nil {
				return err
			}
			defer ctx.close()

			if err := ctx.db.RecomputeAllFolderStats(cmd.Context()); err != nil {
				return err
			}
			folders, err := ctx.db.ListCacheFolders(cmd.Context())
			if err != nil {
				return err
			}
			printFolders(cmd.OutOrStdout(), folders)
			return nil
		},
	}
}

func printFolders(out io.Writer, folders []collection.CacheFolder) {
	if len(folders) == 0 {
		fmt.Fprintln(out, "no cache folders configured")
		return
	}
	fmt.Fprintf(out, "%-20s %-8s %-10s %-12s %-8s %s\n", "NAME", "ACTIVE", "PRIORITY", "USED", "FILES", "PATH")
	for _, f := range folders {
		fmt.Fprintf(out, "%-20s %-8v %-10d %-12s %-8d %s\n",
			f.Name, f.Active, f.Priority, humanBytes(f.CurrentSize), f.FileCount, f.Path)
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
