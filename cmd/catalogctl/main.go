package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "catalogctl",
		Short:        "Resolve WMS catalog items from the command line",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newResolveCmd())
	rootCmd.AddCommand(newMetadataCmd())
	rootCmd.AddCommand(newURLsCmd())
	return rootCmd
}
