package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var dbPath string
	var foldersFile string
	var fallbackDir string

	ctx := newCommandContext(&dbPath, &foldersFile, &fallbackDir)

	rootCmd := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Manage image collections and their cache folders",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "/database/vault.db", "Path to the vault database")
	rootCmd.PersistentFlags().StringVar(&foldersFile, "folders-file", "/config/cache-folders.toml", "Cache folder configuration file")
	rootCmd.PersistentFlags().StringVar(&fallbackDir, "fallback-dir", "/cache", "Fallback directory for cache images")

	rootCmd.AddCommand(newOnboardCommand(ctx))
	rootCmd.AddCommand(newSweepCommand(ctx))
	rootCmd.AddCommand(newFoldersCommand(ctx))

	return rootCmd
}
