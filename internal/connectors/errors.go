package connectors

import (
	"fmt"

	"github.com/rohmanhakim/author-index/internal/metadata"
	"github.com/rohmanhakim/author-index/pkg/failure"
)

// DiscoverErrorCause enumerates why a Discover call failed.
type DiscoverErrorCause string

const (
	ErrCauseUnsupportedSeed DiscoverErrorCause = "seed is neither a local path nor an http(s) URL"
	ErrCauseLoadFailed      DiscoverErrorCause = "seed could not be loaded"
	ErrCauseParseFailed     DiscoverErrorCause = "seed content could not be parsed"
)

// DiscoverError is always fatal: a discover() failure aborts the whole
// run rather than being skipped per-URL, since there is no URL yet to
// skip past.
type DiscoverError struct {
	Cause   DiscoverErrorCause
	Message string
}

func (e *DiscoverError) Error() string {
	return fmt.Sprintf("discover error: %s: %s", e.Cause, e.Message)
}

func (e *DiscoverError) Severity() failure.Severity {
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*DiscoverError)(nil)

func mapDiscoverErrorToMetadataCause(err *DiscoverError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseLoadFailed:
		return metadata.CauseNetworkFailure
	case ErrCauseParseFailed, ErrCauseUnsupportedSeed:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}

// recordDiscoverError emits a pipeline_stage_error event for a discover
// failure, the same self-logging discipline internal/fetcher applies to
// its own blocked/unsafe outcomes.
func recordDiscoverError(sink metadata.Sink, runID, seed string, err *DiscoverError) {
	if sink == nil {
		return
	}
	sink.RecordEvent(metadata.EventPipelineStageErr, &runID, map[string]any{
		string(metadata.AttrStage):   "discover",
		string(metadata.AttrURL):     seed,
		string(metadata.AttrCause):   mapDiscoverErrorToMetadataCause(err).String(),
		string(metadata.AttrMessage): err.Error(),
	})
}
