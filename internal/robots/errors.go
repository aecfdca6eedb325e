package robots

import (
	"fmt"

	"github.com/rohmanhakim/author-index/internal/metadata"
	"github.com/rohmanhakim/author-index/pkg/failure"
)

type RobotsErrorCause string

const (
	ErrCauseInvalidRobotsURL     RobotsErrorCause = "invalid robots.txt URL"
	ErrCausePreFetchFailure      RobotsErrorCause = "failed before making fetch"
	ErrCauseHTTPFetchFailure     RobotsErrorCause = "failed to fetch"
	ErrCauseHTTPTooManyRequests  RobotsErrorCause = "too many requests"
	ErrCauseHTTPTooManyRedirects RobotsErrorCause = "too many redirects"
	ErrCauseHTTPServerError      RobotsErrorCause = "http server error"
	ErrCauseHTTPUnexpectedStatus RobotsErrorCause = "unexpected http status"
	ErrCauseParseError           RobotsErrorCause = "failed to parse robots.txt"
)

// ErrBlockedByRobots is the error_code surfaced on Decision when a parsed
// robots.txt disallows the evaluated path for the configured user agent.
const ErrBlockedByRobots = "BLOCKED_BY_ROBOTS"

type RobotsError struct {
	Message   string
	Retryable bool
	Cause     RobotsErrorCause
}

func (e *RobotsError) Error() string {
	return fmt.Sprintf("robots error: %s", e.Cause)
}

func (e *RobotsError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapRobotsErrorToMetadataCause maps robots-local error semantics to the
// canonical metadata.ErrorCause table. Observational only: never branch
// control flow on the result.
func mapRobotsErrorToMetadataCause(err *RobotsError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseInvalidRobotsURL:
		return metadata.CauseInvariantViolation
	case ErrCausePreFetchFailure:
		return metadata.CauseUnknown
	case ErrCauseHTTPFetchFailure,
		ErrCauseHTTPTooManyRequests,
		ErrCauseHTTPTooManyRedirects,
		ErrCauseHTTPServerError,
		ErrCauseHTTPUnexpectedStatus:
		return metadata.CauseNetworkFailure
	case ErrCauseParseError:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
