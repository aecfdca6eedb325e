package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/author-index/internal/resolver"
	"github.com/rohmanhakim/author-index/internal/storage"
	"github.com/rohmanhakim/author-index/pkg/uuidutil"
)

var (
	reviewQueueOutput   string
	reviewQueueDB       string
	reviewQueueRunID    string
	reviewQueueMinScore float64
)

var reviewQueueCmd = &cobra.Command{
	Use:   "review-queue",
	Short: "Generate a merge-candidate review queue JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunReviewQueue()
	},
}

func init() {
	reviewQueueCmd.Flags().StringVar(&reviewQueueOutput, "output", "review.json", "output review JSON path")
	reviewQueueCmd.Flags().StringVar(&reviewQueueDB, "db", "author-index.db", "SQLite DB path")
	reviewQueueCmd.Flags().StringVar(&reviewQueueRunID, "run-id", "", "optional explicit run ID for logging")
	reviewQueueCmd.Flags().Float64Var(&reviewQueueMinScore, "min-score", resolver.DefaultMinScore, "minimum candidate score included in the review queue")
}

func RunReviewQueue() error {
	runID := reviewQueueRunID
	if runID == "" {
		runID = uuidutil.NewV4()
	}

	store, err := storage.Open(reviewQueueDB, storage.WithSink(rootSink))
	if err != nil {
		reportFailure("review-queue", runID, err)
		return err
	}
	defer store.Close()

	profiles, err := store.ListResolutionAuthorProfiles(context.Background())
	if err != nil {
		reportFailure("review-queue", runID, err)
		return err
	}

	authors := make([]resolver.Author, 0, len(profiles))
	for _, p := range profiles {
		authors = append(authors, resolver.Author{
			ID:            p.ID,
			CanonicalName: p.CanonicalName,
			SourceID:      p.SourceID,
			Domains:       p.Domains,
			Accounts:      p.Accounts,
			ProfileURLs:   p.ProfileURLs,
		})
	}

	candidates := resolver.BuildCandidates(authors, reviewQueueMinScore)
	wireCandidates := make([]candidateWire, 0, len(candidates))
	for _, c := range candidates {
		wireCandidates = append(wireCandidates, toCandidateWire(c))
	}

	payload := reviewQueueFile{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339Nano),
		MinScore:    reviewQueueMinScore,
		Candidates:  wireCandidates,
	}

	if dir := filepath.Dir(reviewQueueOutput); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			reportFailure("review-queue", runID, err)
			return err
		}
	}

	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		reportFailure("review-queue", runID, err)
		return err
	}
	if err := os.WriteFile(reviewQueueOutput, append(body, '\n'), 0o644); err != nil {
		reportFailure("review-queue", runID, err)
		return err
	}

	emitCLIEvent(rootSink, "review-queue", runID, map[string]any{
		"db":              reviewQueueDB,
		"output":          reviewQueueOutput,
		"min_score":       reviewQueueMinScore,
		"candidate_count": len(wireCandidates),
	}, false)
	return nil
}
