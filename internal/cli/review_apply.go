package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/author-index/internal/resolver"
	"github.com/rohmanhakim/author-index/internal/storage"
	"github.com/rohmanhakim/author-index/pkg/uuidutil"
)

var (
	reviewApplyDB        string
	reviewApplyRunID     string
	reviewApplyCreatedBy string
)

var reviewApplyCmd = &cobra.Command{
	Use:   "apply <review_file>",
	Short: "Apply decisions from a review queue JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunReviewApply(args[0])
	},
}

func init() {
	reviewApplyCmd.Flags().StringVar(&reviewApplyDB, "db", "author-index.db", "SQLite DB path")
	reviewApplyCmd.Flags().StringVar(&reviewApplyRunID, "run-id", "", "optional explicit run ID for this apply run")
	reviewApplyCmd.Flags().StringVar(&reviewApplyCreatedBy, "created-by", "manual-review", "human/operator identifier written to merge_decisions.created_by")
}

// applyCounters mirrors the Python CLI's five-way candidate-row tally:
// accepted, duplicates (already-applied), rejected, held (pending), and
// invalid (malformed row).
type applyCounters struct {
	accepted, duplicates, rejected, held, invalid int
}

func RunReviewApply(reviewFile string) error {
	if _, err := os.Stat(reviewFile); err != nil {
		return fmt.Errorf("review file not found: %s", reviewFile)
	}
	raw, err := os.ReadFile(reviewFile)
	if err != nil {
		return err
	}
	var file reviewQueueFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("invalid review file: %w", err)
	}

	runID := reviewApplyRunID
	if runID == "" {
		runID = uuidutil.NewV4()
	}

	store, err := storage.Open(reviewApplyDB, storage.WithSink(rootSink))
	if err != nil {
		reportFailure("review apply", runID, err)
		return err
	}
	defer store.Close()

	runLog := storage.RunLog{ID: runID, SourceID: "review:apply", StartedAt: time.Now(), Status: storage.RunStatusRunning}
	if err := store.CreateRunLog(context.Background(), runLog); err != nil {
		reportFailure("review apply", runID, err)
		return err
	}

	counters := applyCounters{}
	for _, item := range file.Candidates {
		applyOneCandidate(context.Background(), store, item, runID, &counters)
	}

	ended := time.Now()
	runLog.EndedAt = &ended
	runLog.ErrorCount = counters.invalid
	if counters.invalid > 0 {
		runLog.ErrorMessage = fmt.Sprintf("%d invalid candidate rows skipped", counters.invalid)
	}
	runLog.Status = storage.RunStatusCompleted
	if err := store.UpdateRunLog(context.Background(), runLog); err != nil {
		reportFailure("review apply", runID, err)
		return err
	}

	emitCLIEvent(rootSink, "review apply", runID, map[string]any{
		"db":          reviewApplyDB,
		"review_file": reviewFile,
		"accepted":    counters.accepted,
		"duplicates":  counters.duplicates,
		"rejected":    counters.rejected,
		"held":        counters.held,
		"invalid":     counters.invalid,
	}, false)

	if counters.invalid > 0 {
		os.Exit(1)
	}
	return nil
}

func applyOneCandidate(ctx context.Context, store *storage.Engine, item candidateWire, runID string, counters *applyCounters) {
	decision := strings.ToLower(strings.TrimSpace(item.Decision))
	switch decision {
	case string(resolver.DecisionReject):
		counters.rejected++
		return
	case "", "hold":
		counters.held++
		return
	case string(resolver.DecisionAccept):
		// falls through to the merge below
	default:
		counters.invalid++
		return
	}

	fromID := item.FromAuthor.ID
	toID := item.ToAuthor.ID
	if fromID == "" || toID == "" {
		counters.invalid++
		return
	}

	candidateID := item.ID
	if candidateID == "" {
		candidateID = fmt.Sprintf("%s:%s", fromID, toID)
	}

	criteria, _ := json.Marshal(map[string]any{
		"score":             item.Score,
		"confidence":        item.Confidence,
		"scoring_breakdown": item.ScoringBreakdown,
	})

	decisionRecord := storage.MergeDecision{
		ID:               candidateID,
		FromAuthorID:     fromID,
		ToAuthorID:       toID,
		EvidenceIDs:      item.Evidence,
		DecisionCriteria: string(criteria),
		CreatedAt:        time.Now(),
		CreatedBy:        reviewApplyCreatedBy,
		RunID:            runID,
	}

	applied, err := store.ApplyMergeDecision(ctx, decisionRecord)
	if err != nil {
		counters.invalid++
		return
	}
	if applied {
		counters.accepted++
	} else {
		counters.duplicates++
	}
}
