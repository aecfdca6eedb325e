package export

import (
	"fmt"

	"github.com/rohmanhakim/author-index/internal/metadata"
	"github.com/rohmanhakim/author-index/pkg/failure"
)

type ValidationErrorCause string

const (
	ErrCauseMissingEvidence      ValidationErrorCause = "claim has no backing evidence"
	ErrCauseFieldTooLong         ValidationErrorCause = "field exceeds length bound"
	ErrCauseInvalidVersion       ValidationErrorCause = "version below minimum"
	ErrCauseInvalidClaimPath     ValidationErrorCause = "claim_path not a recognized JSON Pointer"
	ErrCauseInvalidEvidence      ValidationErrorCause = "evidence_type not a recognized enum value"
	ErrCauseConfidenceOutOfRange ValidationErrorCause = "confidence outside [0.0, 1.0]"
	ErrCauseDuplicateKey         ValidationErrorCause = "canonical_url+source_id not unique"
	ErrCauseSerialization        ValidationErrorCause = "serialization failed"
)

// ValidationError is fatal by construction: a row that fails schema
// validation must abort the export, never be retried as-is.
type ValidationError struct {
	ArticleID string
	Cause     ValidationErrorCause
	Detail    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("export validation failed for article %s: %s: %s", e.ArticleID, e.Cause, e.Detail)
}

func (e *ValidationError) Severity() failure.Severity {
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*ValidationError)(nil)

func mapValidationErrorToMetadataCause(*ValidationError) metadata.ErrorCause {
	return metadata.CauseExportInvalid
}
