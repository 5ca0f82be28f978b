package cmd

import (
	"context" // Cancellation propagated from main
	"fmt"     // Printing errors to stderr
	"os"      // Exit codes

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0" // version of the docworker CLI
	configFile string    // --config, empty searches the default locations
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a docworker YAML config file")
}

// rootCmd runs the worker when invoked without a subcommand.
var rootCmd = &cobra.Command{
	Use:     "docworker",
	Short:   "Document job queue worker",
	Long:    "docworker consumes document job payloads from a Redis list and reports a summary of each job.",
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker(cmd)
	},
	SilenceUsage: true,
}

// Execute runs the root command with ctx. Any returned error is printed and
// the process exits with status 1; that only happens for configuration and
// usage errors.
func Execute(ctx context.Context) {
	rootCmd.SetContext(ctx)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
