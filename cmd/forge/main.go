package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"

	flagDir      string
	flagProvider string
	flagModel    string
	flagDebug    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "forge",
		Short: "Multi-agent project builder",
		Long: `Forge turns a natural-language request into a working project tree.
An architect agent plans the file manifest, coder agents generate the files
in parallel, and committed results are materialized to disk incrementally.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", ".", "project directory")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "model provider: ollama or gemini")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "model for both planner and coder agents")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newInstallCmd())
	rootCmd.AddCommand(newHistoryCmd())

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("forge version %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
