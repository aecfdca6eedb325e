package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/author-index/internal/storage"
)

var (
	rollbackRunID string
	rollbackDB    string
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back all persisted artifacts for a run ID",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunRollback()
	},
}

func init() {
	rollbackCmd.Flags().StringVar(&rollbackRunID, "run", "", "run ID to rollback")
	rollbackCmd.Flags().StringVar(&rollbackDB, "db", "author-index.db", "SQLite DB path")
	rollbackCmd.MarkFlagRequired("run")
}

func RunRollback() error {
	store, err := storage.Open(rollbackDB, storage.WithSink(rootSink))
	if err != nil {
		reportFailure("rollback", rollbackRunID, err)
		return err
	}
	defer store.Close()

	summary, err := store.RollbackRun(context.Background(), rollbackRunID)
	if err != nil {
		reportFailure("rollback", rollbackRunID, err)
		return err
	}

	emitCLIEvent(rootSink, "rollback", rollbackRunID, map[string]any{
		"db":                      rollbackDB,
		"target_run_id":           rollbackRunID,
		"fetch_log_deleted":       summary.FetchLogDeleted,
		"evidence_deleted":        summary.EvidenceDeleted,
		"versions_deleted":        summary.VersionsDeleted,
		"merge_decisions_deleted": summary.MergeDecisionsDeleted,
		"articles_deleted":        summary.ArticlesDeleted,
		"articles_reverted":       summary.ArticlesReverted,
	}, false)
	return nil
}
