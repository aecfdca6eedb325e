package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/author-index/internal/export"
	"github.com/rohmanhakim/author-index/internal/storage"
	"github.com/rohmanhakim/author-index/pkg/uuidutil"
)

var (
	exportOutput string
	exportDB     string
	exportRunID  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSONL export from SQLite with per-row schema validation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunExport()
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output JSONL path")
	exportCmd.Flags().StringVar(&exportDB, "db", "author-index.db", "SQLite DB path")
	exportCmd.Flags().StringVar(&exportRunID, "run-id", "", "optional explicit run ID for logging")
	exportCmd.MarkFlagRequired("output")
}

func RunExport() error {
	runID := exportRunID
	if runID == "" {
		runID = uuidutil.NewV4()
	}

	store, err := storage.Open(exportDB, storage.WithSink(rootSink))
	if err != nil {
		reportFailure("export", runID, err)
		return err
	}
	defer store.Close()

	f, err := os.Create(exportOutput)
	if err != nil {
		reportFailure("export", runID, err)
		return err
	}
	defer f.Close()

	count, err := export.Export(context.Background(), store, f, rootSink, runID)
	if err != nil {
		reportFailure("export", runID, err)
		return err
	}

	emitCLIEvent(rootSink, "export", runID, map[string]any{
		"output":        exportOutput,
		"db":            exportDB,
		"exported_rows": count,
	}, false)
	return nil
}
