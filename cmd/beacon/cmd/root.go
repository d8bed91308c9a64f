// Package cmd contains the beacon CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	format  string
	verbose bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "beacon",
	Short: "Beacon - telemetry export pipeline",
	Long: `Beacon records traces, spans, events, metrics, and logs and delivers
them to an OTLP-style HTTP collector through a durable at-least-once queue.

Examples:
  # Apply the database schema
  beacon migrate up

  # Run the delivery worker until interrupted
  beacon worker

  # Show queue depth and dead-letter counts
  beacon status

  # Process one batch immediately
  beacon drain
`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&format, "output", "o", "", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(drainCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd prints version info.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("beacon version 0.1.0")
	},
}
