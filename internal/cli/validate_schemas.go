package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rohmanhakim/author-index/internal/export"
	"github.com/rohmanhakim/author-index/pkg/uuidutil"
)

var validateSchemasCmd = &cobra.Command{
	Use:   "validate-schemas",
	Short: "Validate the embedded article/evidence JSON schemas against fixture data",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunValidateSchemas()
	},
}

func RunValidateSchemas() error {
	runID := uuidutil.NewV4()
	if err := export.ValidateSchemas(); err != nil {
		reportFailure("validate-schemas", runID, err)
		return err
	}
	emitCLIEvent(rootSink, "validate-schemas", runID, map[string]any{}, false)
	return nil
}
