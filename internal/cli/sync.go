package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/author-index/internal/config"
	"github.com/rohmanhakim/author-index/internal/pipeline"
	"github.com/rohmanhakim/author-index/internal/storage"
	"github.com/rohmanhakim/author-index/pkg/uuidutil"
)

var (
	syncSourceID string
	syncSeed     string
	syncDB       string
	syncRunID    string
	syncDryRun   bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the discover/fetch/parse/extract/store pipeline for one source",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunSync()
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncSourceID, "source-id", "", "source ID, e.g. rss:example_feed")
	syncCmd.Flags().StringVar(&syncSeed, "seed", "", "seed input (URL or local file path)")
	syncCmd.Flags().StringVar(&syncDB, "db", "author-index.db", "SQLite DB path")
	syncCmd.Flags().StringVar(&syncRunID, "run-id", "", "optional explicit run ID")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "discover/fetch/parse/extract only, skip storage writes")
	syncCmd.MarkFlagRequired("source-id")
	syncCmd.MarkFlagRequired("seed")
}

func RunSync() error {
	runID := syncRunID
	if runID == "" {
		runID = uuidutil.NewV4()
	}

	cfg, err := config.WithDefault().WithDBPath(syncDB).WithDryRun(syncDryRun).Build()
	if err != nil {
		reportFailure("sync", runID, err)
		return err
	}

	discoverer, err := buildDiscoverer(syncSourceID, cfg.UserAgent(), cfg.FetchTimeout(), rootSink)
	if err != nil {
		reportFailure("sync", runID, err)
		return err
	}
	fetchStage, err := buildFetcher(cfg, rootSink)
	if err != nil {
		reportFailure("sync", runID, err)
		return err
	}

	var store *storage.Engine
	if !syncDryRun {
		store, err = storage.Open(cfg.DBPath(), storage.WithSink(rootSink))
		if err != nil {
			reportFailure("sync", runID, err)
			return err
		}
		defer store.Close()
	}

	var storeStage pipeline.Store
	if store != nil {
		storeStage = store
	}

	p := pipeline.New(
		discoverer,
		fetchStage,
		buildParser(),
		buildExtractor(cfg, syncSourceID),
		storeStage,
		pipeline.WithSink(rootSink),
		pipeline.WithRetry(buildRetryParam(cfg)),
	)

	runLog, _ := p.Run(context.Background(), syncSeed, syncSourceID, runID, syncDryRun)
	emitCLIEvent(rootSink, "sync", runID, map[string]any{
		"source_id": syncSourceID,
		"seed":      syncSeed,
		"db":        cfg.DBPath(),
		"status":    string(runLog.Status),
		"fetched":   runLog.FetchedCount,
		"new":       runLog.NewArticlesCount,
		"updated":   runLog.UpdatedArticlesCount,
		"errors":    runLog.ErrorCount,
		"note":      runLog.ErrorMessage,
	}, false)

	if runLog.Status != storage.RunStatusCompleted {
		os.Exit(1)
	}
	return nil
}
