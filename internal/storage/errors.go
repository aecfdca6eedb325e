package storage

import (
	"fmt"

	"github.com/rohmanhakim/author-index/internal/metadata"
	"github.com/rohmanhakim/author-index/pkg/failure"
)

type StorageErrorCause string

const (
	ErrCauseQueryFailure       StorageErrorCause = "query failed"
	ErrCauseTxFailure          StorageErrorCause = "transaction failed"
	ErrCauseNotFound           StorageErrorCause = "row not found"
	ErrCauseSerializationError StorageErrorCause = "serialization failed"
	ErrCauseSchemaInit         StorageErrorCause = "schema initialization failed"
)

type StorageError struct {
	Message   string
	Retryable bool
	Cause     StorageErrorCause
	ArticleID string
	RunID     string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %s", e.Cause, e.Message)
}

func (e *StorageError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapStorageErrorToMetadataCause maps storage-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapStorageErrorToMetadataCause(err *StorageError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseQueryFailure, ErrCauseTxFailure, ErrCauseSchemaInit:
		return metadata.CauseStorageFailure
	case ErrCauseSerializationError:
		return metadata.CauseInvariantViolation
	case ErrCauseNotFound:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
