package metadata

/*
ErrorCause is a closed, canonical classification used exclusively for
observability (logging, metrics, reporting).

Rules:
  - ErrorCause is for observability only.
  - It must never be used to derive retry, continuation, or abort decisions.
  - Any use of metadata.ErrorCause outside logging, metrics, or reporting is a design violation.
  - ErrorCause MUST NOT influence control flow.
  - ErrorCause values MUST have stable, package-agnostic semantics.
  - Pipeline packages MAY map their local errors to ErrorCause, but MUST NOT
    invent new meanings.

If a failure does not clearly map to a defined cause, CauseUnknown MUST be used.
*/
type ErrorCause int

const (
	CauseUnknown ErrorCause = iota
	CauseNetworkFailure
	CausePolicyDisallow
	CauseContentInvalid
	CauseStorageFailure
	CauseInvariantViolation
	CauseSSRFBlocked
	CauseExportInvalid
)

func (c ErrorCause) String() string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	case CauseSSRFBlocked:
		return "ssrf_blocked"
	case CauseExportInvalid:
		return "export_invalid"
	default:
		return "unknown"
	}
}

// Event type names, one JSON object per line, per the structured-events
// contract: cli_*_completed, cli_error, pipeline_stage_error,
// pipeline_export_error, pipeline_run_error, robots_warning,
// robots_slowdown, plus fetch-log lines.
const (
	EventCLIError                 = "cli_error"
	EventCLISyncCompleted         = "cli_sync_completed"
	EventCLIExportCompleted       = "cli_export_completed"
	EventCLIRollbackCompleted     = "cli_rollback_completed"
	EventCLIReviewQueueCompleted  = "cli_review_queue_completed"
	EventCLIReviewApplyCompleted  = "cli_review_apply_completed"
	EventCLIValidateSchemasResult = "cli_validate_schemas_completed"
	EventPipelineStageErr         = "pipeline_stage_error"
	EventPipelineExportErr        = "pipeline_export_error"
	EventPipelineRunErr           = "pipeline_run_error"
	EventRobotsWarning            = "robots_warning"
	EventRobotsSlowdown           = "robots_slowdown"
	EventFetchLog                 = "fetch_log"
)

// AttributeKey enumerates the field names most handlers agree on. Callers
// may still pass arbitrary map keys for component-specific detail.
type AttributeKey string

const (
	AttrURL         AttributeKey = "url"
	AttrHost        AttributeKey = "host"
	AttrRunID       AttributeKey = "run_id"
	AttrCommand     AttributeKey = "command"
	AttrStage       AttributeKey = "stage"
	AttrErrorCode   AttributeKey = "error_code"
	AttrCause       AttributeKey = "cause"
	AttrMessage     AttributeKey = "message"
	AttrHTTPStatus  AttributeKey = "http_status"
	AttrArticleID   AttributeKey = "article_id"
	AttrCandidateID AttributeKey = "candidate_id"
)
