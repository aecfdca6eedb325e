package extractor

import (
	"fmt"

	"github.com/rohmanhakim/author-index/internal/metadata"
	"github.com/rohmanhakim/author-index/pkg/failure"
)

type ExtractionErrorCause string

const (
	ErrCauseNoContent ExtractionErrorCause = "no content"
)

// ExtractionError is reserved for future fatal extraction conditions; the
// extractor itself is pure today and never returns one, but downstream
// callers that wrap Extract in a pipeline stage classify failures through
// this type to stay consistent with every other stage.
type ExtractionError struct {
	Message   string
	Retryable bool
	Cause     ExtractionErrorCause
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction error: %s", e.Cause)
}

func (e *ExtractionError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func mapExtractionErrorToMetadataCause(err *ExtractionError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseNoContent:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
