package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/recaplabs/recap/internal/app"
	"github.com/recaplabs/recap/internal/config"
)

var ingestFolderID string

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Index documents into a folder",
	Long: `Ingest loads the given files or directories, splits them into
chunks, and writes them to the vector index under the folder given by
--folder. Supported formats: PDF, plain text, Markdown.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, args)
	},
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFolderID, "folder", "f", "", "folder to index into (required)")
	_ = ingestCmd.MarkFlagRequired("folder")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, paths []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger()
	ctx := cmd.Context()

	pipeline, err := app.SetupIngest(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing ingestion: %w", err)
	}

	total := 0
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		var n int
		if info.IsDir() {
			n, err = pipeline.IngestDir(ctx, path, ingestFolderID)
		} else {
			n, err = pipeline.IngestFile(ctx, path, ingestFolderID)
		}
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		total += n
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks into folder %s\n", total, ingestFolderID)
	return nil
}
