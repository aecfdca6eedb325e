package cmd

// Test helper functions to set flag values from tests without going
// through actual CLI argument parsing, matching the one the original
// single-command crawler CLI used for its own flags.

func SetSyncFlagsForTest(sourceID, seed, db, runID string, dryRun bool) {
	syncSourceID, syncSeed, syncDB, syncRunID, syncDryRun = sourceID, seed, db, runID, dryRun
}

func ResetSyncFlags() {
	syncSourceID, syncSeed, syncDB, syncRunID, syncDryRun = "", "", "", "", false
}

func SetExportFlagsForTest(output, db, runID string) {
	exportOutput, exportDB, exportRunID = output, db, runID
}

func ResetExportFlags() {
	exportOutput, exportDB, exportRunID = "", "", ""
}

func SetRollbackFlagsForTest(run, db string) {
	rollbackRunID, rollbackDB = run, db
}

func ResetRollbackFlags() {
	rollbackRunID, rollbackDB = "", ""
}

func SetReviewQueueFlagsForTest(output, db, runID string, minScore float64) {
	reviewQueueOutput, reviewQueueDB, reviewQueueRunID, reviewQueueMinScore = output, db, runID, minScore
}

func ResetReviewQueueFlags() {
	reviewQueueOutput, reviewQueueDB, reviewQueueRunID, reviewQueueMinScore = "review.json", "", "", 0
}

func SetReviewApplyFlagsForTest(db, runID, createdBy string) {
	reviewApplyDB, reviewApplyRunID, reviewApplyCreatedBy = db, runID, createdBy
}

func ResetReviewApplyFlags() {
	reviewApplyDB, reviewApplyRunID, reviewApplyCreatedBy = "", "", "manual-review"
}
