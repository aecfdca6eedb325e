package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command: every operation (sync, export, rollback,
// review-queue, review apply, validate-schemas) is a child command.
var rootCmd = &cobra.Command{
	Use:   "author-index",
	Short: "Compliance-first author indexing pipeline.",
	Long: `author-index discovers articles from RSS/Atom feeds, arXiv author
listings, and HTML author pages, fetches them under a strict robots/SSRF
policy, extracts evidence-backed claims, and stores a deduplicated
per-source author index in SQLite.

Every operation emits one structured JSON event per line so a run can be
audited after the fact without re-reading the database.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(reviewQueueCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(validateSchemasCmd)
}

// reportFailure emits a cli_error event for err; it does not exit. A RunE
// error exits 1 through cobra's own error path (see Execute), while sync and
// review-apply call reportFailure for a "completed with problems" result
// that isn't a Go error and then call os.Exit(1) themselves.
func reportFailure(command, runID string, err error) {
	emitCLIEvent(rootSink, command, runID, map[string]any{
		"error_type": fmt.Sprintf("%T", err),
		"error":      err.Error(),
	}, true)
}
