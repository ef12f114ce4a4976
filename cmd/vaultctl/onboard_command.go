package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"image-vault/internal/collection"
	"image-vault/internal/onboarding"
)

func newOnboardCommand(ctx *commandContext) *cobra.Command {
	var recursive bool
	var prefix string
	var overwrite bool
	var resume bool
	var autoScan bool
	var enableCache bool
	var thumbWidth, thumbHeight int
	var cacheWidth, cacheHeight int

	cmd := &cobra.Command{
		Use:   "onboard <parent-path>",
		Short: "Discover and register image collections under a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.open(cmd.Context()); err != nil {
				return err
			}
			defer ctx.close()

			req := onboarding.Request{
				ParentPath:        args[0],
				IncludeSubfolders: recursive,
				CollectionPrefix:  prefix,
				OverwriteExisting: overwrite,
				ResumeIncomplete:  resume,
				AutoScan:          autoScan,
				EnableCache:       enableCache,
				ThumbnailWidth:    thumbWidth,
				ThumbnailHeight:   thumbHeight,
				CacheWidth:        cacheWidth,
				CacheHeight:       cacheHeight,
			}

			result, err := ctx.orchestrator().Onboard(cmd.Context(), req)
			if err != nil {
				return err
			}
			printBulkResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Descend into subdirectories looking for leaf collections")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only onboard candidates whose name contains this text")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Force-rescan collections that already exist")
	cmd.Flags().BoolVar(&resume, "resume", false, "Queue only missing artifacts for incomplete collections")
	cmd.Flags().BoolVar(&autoScan, "auto-scan", true, "Scan collections for images after registering them")
	cmd.Flags().BoolVar(&enableCache, "enable-cache", false, "Generate full-view cache images as well as thumbnails")
	cmd.Flags().IntVar(&thumbWidth, "thumb-width", 0, "Thumbnail width (default 200)")
	cmd.Flags().IntVar(&thumbHeight, "thumb-height", 0, "Thumbnail height (default 200)")
	cmd.Flags().IntVar(&cacheWidth, "cache-width", 0, "Cache image width (default 1280)")
	cmd.Flags().IntVar(&cacheHeight, "cache-height", 0, "Cache image height (default 1280)")

	return cmd
}

func printBulkResult(out io.Writer, result *collection.BulkResult) {
	for _, res := range result.Results {
		fmt.Fprintf(out, "  %-10s %-30s %s\n", res.Outcome, res.Name, res.Message)
	}
	fmt.Fprintf(out, "\n%d created, %d updated, %d rescanned, %d resumed, %d skipped, %d failed\n",
		result.Created, result.Updated, result.Rescanned, result.Resumed, result.Skipped, result.Failed)
	for _, e := range result.Errors {
		fmt.Fprintf(out, "error: %s\n", e)
	}
}
