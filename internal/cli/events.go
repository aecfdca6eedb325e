package cmd

import (
	"os"

	"github.com/rohmanhakim/author-index/internal/metadata"
)

// rootSink writes every CLI-level structured event to stdout, one JSON
// object per line, the same wire format internal/pipeline and
// internal/export use for their own events.
var rootSink metadata.Sink = metadata.NewRecorder(os.Stdout)

// emitCLIEvent stamps command onto fields and records eventType through
// sink. errorEvent selects metadata.EventCLIError regardless of the
// caller-supplied eventType, so reportFailure and the *_completed emitters
// can share one function without the caller juggling two signatures.
func emitCLIEvent(sink metadata.Sink, command, runID string, fields map[string]any, errorEvent bool) {
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload[string(metadata.AttrCommand)] = command

	eventType := metadata.EventCLIError
	if !errorEvent {
		eventType = completedEventFor(command)
	}
	id := runID
	sink.RecordEvent(eventType, &id, payload)
}

func completedEventFor(command string) string {
	switch command {
	case "sync":
		return metadata.EventCLISyncCompleted
	case "export":
		return metadata.EventCLIExportCompleted
	case "rollback":
		return metadata.EventCLIRollbackCompleted
	case "review-queue":
		return metadata.EventCLIReviewQueueCompleted
	case "review apply":
		return metadata.EventCLIReviewApplyCompleted
	case "validate-schemas":
		return metadata.EventCLIValidateSchemasResult
	default:
		return metadata.EventCLIError
	}
}
