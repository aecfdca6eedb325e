package cmd

import "github.com/spf13/cobra"

// reviewCmd groups manual-review operations; "apply" is its only child
// today, mirroring the review queue's generate/apply split.
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Manual review operations",
}

func init() {
	reviewCmd.AddCommand(reviewApplyCmd)
}
