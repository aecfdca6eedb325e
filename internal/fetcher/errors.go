package fetcher

import (
	"fmt"

	"github.com/rohmanhakim/author-index/internal/metadata"
	"github.com/rohmanhakim/author-index/pkg/failure"
)

type FetchErrorCause string

const (
	ErrCauseInvalidScheme    FetchErrorCause = "disallowed protocol"
	ErrCauseBlockedIP        FetchErrorCause = "resolved to blocked IP range"
	ErrCauseNoHostname       FetchErrorCause = "URL has no hostname"
	ErrCauseRobotsDisallow   FetchErrorCause = "disallowed by robots.txt"
	ErrCauseTimeout          FetchErrorCause = "timeout"
	ErrCauseNetworkFailure   FetchErrorCause = "network issues"
	ErrCauseRedirectExceeded FetchErrorCause = "redirect limit exceeded"
	ErrCauseRedirectUnsafe   FetchErrorCause = "redirect target is unsafe"
	ErrCauseBodyTooLarge     FetchErrorCause = "response body exceeds policy limit"
	ErrCauseReadBodyFailed   FetchErrorCause = "failed to read response body"
	ErrCausePoliteness       FetchErrorCause = "politeness gate wait was cancelled"
)

// FetchError is the classified error type for every non-response outcome.
// Its Code maps 1:1 onto ErrorCode and is what gets persisted on Log.
type FetchError struct {
	Message   string
	Retryable bool
	Cause     FetchErrorCause
	Code      ErrorCode
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetcher error: %s", e.Cause)
}

func (e *FetchError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapFetchErrorToMetadataCause maps fetcher-local error semantics to the
// canonical metadata.ErrorCause table. Observational only.
func mapFetchErrorToMetadataCause(err *FetchError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseInvalidScheme, ErrCauseBlockedIP, ErrCauseRedirectUnsafe:
		return metadata.CauseSSRFBlocked
	case ErrCauseRobotsDisallow:
		return metadata.CausePolicyDisallow
	case ErrCauseTimeout, ErrCauseNetworkFailure, ErrCauseRedirectExceeded:
		return metadata.CauseNetworkFailure
	case ErrCauseBodyTooLarge, ErrCauseReadBodyFailed:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
