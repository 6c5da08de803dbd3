// Package cmd defines the recap command line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/recaplabs/recap/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "recap",
	Short: "Recap - conversational question answering over your documents",
	Long: `Recap answers questions about documents you have ingested.

Documents are indexed per folder; every conversation thread is bound to
one folder and answers cite the passages they were grounded on.

Run "recap serve" to start the HTTP service, or "recap ingest" to index
documents into a folder.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// newLogger builds the process logger honoring the --verbose flag.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: !isTerminal()})
}

func isTerminal() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
